package purchase

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/clinic-purchase/internal/bid"
)

const dateLayout = time.DateOnly

// Build assembles the rows for a new purchase order. The order gets a fresh
// identifier when none is supplied and its date defaults to today.
func Build(order OrderInput, items []ItemInput, today time.Time) (*Aggregate, error) {
	row, err := BuildOrder(order, today)
	if err != nil {
		return nil, err
	}
	linked, err := LinkItems(items, row.UUID)
	if err != nil {
		return nil, err
	}
	return &Aggregate{Order: row, Items: linked}, nil
}

// BuildOrder converts an order header to storage form.
func BuildOrder(in OrderInput, today time.Time) (OrderRow, error) {
	id, err := idOrNew(in.UUID, "purchase_order.uuid")
	if err != nil {
		return OrderRow{}, err
	}
	creditor, err := parseID(in.CreditorUUID, "purchase_order.creditor_uuid")
	if err != nil {
		return OrderRow{}, err
	}
	var paid *bid.BID
	if in.PaidUUID != "" {
		p, err := parseID(in.PaidUUID, "purchase_order.paid_uuid")
		if err != nil {
			return OrderRow{}, err
		}
		paid = &p
	}
	date, err := normalizeDate(in.PurchaseDate, today)
	if err != nil {
		return OrderRow{}, &ValidationError{Field: "purchase_order.purchase_date", Reason: err.Error()}
	}
	for _, err := range []error{
		checkMoney("purchase_order.cost", in.Cost),
		checkMoney("purchase_order.discount", in.Discount),
		checkInt4("purchase_order.emitter_id", in.EmitterID),
		checkInt4("purchase_order.purchaser_id", in.PurchaserID),
		checkOptInt4("purchase_order.confirmed_by", in.ConfirmedBy),
		checkOptInt4("purchase_order.receiver_id", in.ReceiverID),
	} {
		if err != nil {
			return OrderRow{}, err
		}
	}

	return OrderRow{
		UUID:          id,
		Reference:     in.Reference,
		Cost:          in.Cost,
		Discount:      in.Discount,
		PurchaseDate:  date,
		Paid:          in.Paid,
		CreditorUUID:  creditor,
		PaidUUID:      paid,
		Note:          in.Note,
		Confirmed:     in.Confirmed,
		Closed:        in.Closed,
		IsDirect:      in.IsDirect,
		IsDonation:    in.IsDonation,
		EmitterID:     in.EmitterID,
		IsAuthorized:  in.IsAuthorized,
		IsValidate:    in.IsValidate,
		ConfirmedBy:   in.ConfirmedBy,
		IsIntegration: in.IsIntegration,
		PurchaserID:   in.PurchaserID,
		ReceiverID:    in.ReceiverID,
	}, nil
}

// LinkItems converts purchase lines to storage form and stamps each with the
// owning purchase. Items without an identifier get a new one. The total of
// each line is computed as quantity * unit price; a supplied total that
// disagrees is rejected.
func LinkItems(items []ItemInput, purchaseID bid.BID) ([]ItemRow, error) {
	rows := make([]ItemRow, 0, len(items))
	for i, item := range items {
		field := func(name string) string {
			return fmt.Sprintf("purchase_item[%d].%s", i, name)
		}

		id, err := idOrNew(item.UUID, field("uuid"))
		if err != nil {
			return nil, err
		}
		inventory, err := parseID(item.InventoryUUID, field("inventory_uuid"))
		if err != nil {
			return nil, err
		}
		if item.Quantity <= 0 {
			return nil, &ValidationError{Field: field("quantity"), Reason: "must be greater than 0"}
		}
		if err := checkInt4(field("quantity"), item.Quantity); err != nil {
			return nil, err
		}
		if item.UnitPrice.IsNegative() {
			return nil, &ValidationError{Field: field("unit_price"), Reason: "must not be negative"}
		}
		if err := checkMoney(field("unit_price"), item.UnitPrice); err != nil {
			return nil, err
		}

		total := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if err := checkMoney(field("total"), total); err != nil {
			return nil, err
		}
		if item.Total != nil && !item.Total.Equal(total) {
			return nil, &ValidationError{
				Field:  field("total"),
				Reason: fmt.Sprintf("%s does not equal quantity * unit_price (%s)", item.Total, total),
			}
		}

		rows = append(rows, ItemRow{
			UUID:          id,
			PurchaseUUID:  purchaseID,
			InventoryUUID: inventory,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Total:         total,
		})
	}
	return rows, nil
}

func idOrNew(text, field string) (bid.BID, error) {
	if text == "" {
		return bid.New(), nil
	}
	return parseID(text, field)
}

func parseID(text, field string) (bid.BID, error) {
	if text == "" {
		return bid.Nil, &ValidationError{Field: field, Reason: "is required"}
	}
	id, err := bid.FromText(text)
	if err != nil {
		return bid.Nil, &ValidationError{Field: field, Reason: "malformed identifier"}
	}
	return id, nil
}

// normalizeDate accepts a calendar date or an RFC 3339 timestamp and returns
// the calendar date at midnight UTC. An empty value yields today's date.
func normalizeDate(s string, today time.Time) (time.Time, error) {
	if s == "" {
		return dateOf(today), nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Errorf("expected %s or RFC 3339, got %q", dateLayout, s)
	}
	return dateOf(t), nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
