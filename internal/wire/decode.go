// Package wire encodes and decodes the JSON payloads of the purchase API.
package wire

import (
	"bytes"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/clinic-purchase/internal/domain/purchase"
)

// CreateRequest is the body of POST /purchase. Order is nil and Items is
// nil when the corresponding attribute is absent or null.
type CreateRequest struct {
	Order *purchase.OrderInput
	Items []purchase.ItemInput
}

// DecodeCreateRequest parses {"purchase_order": {...}, "purchase_item": [...]}.
// Malformed input yields a *purchase.ValidationError.
func DecodeCreateRequest(data []byte) (*CreateRequest, error) {
	if err := singleValue(data); err != nil {
		return nil, asValidation(err)
	}
	var req CreateRequest
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "purchase_order":
			if d.Next() == jx.Null {
				return d.Null()
			}
			order, err := decodeOrder(d)
			if err != nil {
				return err
			}
			req.Order = order
			return nil
		case "purchase_item":
			if d.Next() == jx.Null {
				return d.Null()
			}
			items := []purchase.ItemInput{}
			if err := d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d, len(items))
				if err != nil {
					return err
				}
				items = append(items, item)
				return nil
			}); err != nil {
				return err
			}
			req.Items = items
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, asValidation(err)
	}
	return &req, nil
}

func decodeOrder(d *jx.Decoder) (*purchase.OrderInput, error) {
	var o purchase.OrderInput
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "uuid":
			o.UUID, err = optString(d)
		case "reference":
			o.Reference, err = optString(d)
		case "cost":
			o.Cost, err = decodeDecimal(d)
		case "discount":
			o.Discount, err = decodeDecimal(d)
		case "purchase_date":
			o.PurchaseDate, err = optString(d)
		case "paid":
			o.Paid, err = d.Bool()
		case "creditor_uuid":
			o.CreditorUUID, err = optString(d)
		case "paid_uuid":
			o.PaidUUID, err = optString(d)
		case "note":
			o.Note, err = optString(d)
		case "confirmed":
			o.Confirmed, err = d.Bool()
		case "closed":
			o.Closed, err = d.Bool()
		case "is_direct":
			o.IsDirect, err = d.Bool()
		case "is_donation":
			o.IsDonation, err = d.Bool()
		case "emitter_id":
			o.EmitterID, err = d.Int()
		case "is_authorized":
			o.IsAuthorized, err = d.Bool()
		case "is_validate":
			o.IsValidate, err = d.Bool()
		case "confirmed_by":
			o.ConfirmedBy, err = optInt(d)
		case "is_integration":
			o.IsIntegration, err = d.Bool()
		case "purchaser_id":
			o.PurchaserID, err = d.Int()
		case "receiver_id":
			o.ReceiverID, err = optInt(d)
		default:
			return unknownField("purchase_order." + key)
		}
		return fieldError("purchase_order."+key, err)
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func decodeItem(d *jx.Decoder, idx int) (purchase.ItemInput, error) {
	var it purchase.ItemInput
	prefix := fmt.Sprintf("purchase_item[%d].", idx)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "uuid":
			it.UUID, err = optString(d)
		case "inventory_uuid":
			it.InventoryUUID, err = optString(d)
		case "quantity":
			it.Quantity, err = d.Int()
		case "unit_price":
			it.UnitPrice, err = decodeDecimal(d)
		case "total":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var total decimal.Decimal
			total, err = decodeDecimal(d)
			it.Total = &total
		case "purchase_uuid":
			// Always stamped with the owning order.
			return d.Skip()
		default:
			return unknownField(prefix + key)
		}
		return fieldError(prefix+key, err)
	})
	return it, err
}

// DecodePatch parses the body of PUT /purchase/{uuid}.
func DecodePatch(data []byte) (purchase.Patch, error) {
	if err := singleValue(data); err != nil {
		return purchase.Patch{}, asValidation(err)
	}
	var p purchase.Patch
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "uuid":
			return &purchase.ValidationError{Field: key, Reason: "cannot be changed"}
		case "reference":
			p.Reference, err = ptr(d, optString)
		case "cost":
			p.Cost, err = ptr(d, decodeDecimal)
		case "discount":
			p.Discount, err = ptr(d, decodeDecimal)
		case "purchase_date":
			p.PurchaseDate, err = ptr(d, optString)
		case "paid":
			p.Paid, err = ptr(d, (*jx.Decoder).Bool)
		case "creditor_uuid":
			p.CreditorUUID, err = ptr(d, optString)
		case "paid_uuid":
			p.PaidUUID, err = nullable(d, (*jx.Decoder).Str)
		case "note":
			p.Note, err = ptr(d, optString)
		case "confirmed":
			p.Confirmed, err = ptr(d, (*jx.Decoder).Bool)
		case "closed":
			p.Closed, err = ptr(d, (*jx.Decoder).Bool)
		case "is_direct":
			p.IsDirect, err = ptr(d, (*jx.Decoder).Bool)
		case "is_donation":
			p.IsDonation, err = ptr(d, (*jx.Decoder).Bool)
		case "emitter_id":
			p.EmitterID, err = ptr(d, (*jx.Decoder).Int)
		case "is_authorized":
			p.IsAuthorized, err = ptr(d, (*jx.Decoder).Bool)
		case "is_validate":
			p.IsValidate, err = ptr(d, (*jx.Decoder).Bool)
		case "confirmed_by":
			p.ConfirmedBy, err = nullable(d, (*jx.Decoder).Int)
		case "is_integration":
			p.IsIntegration, err = ptr(d, (*jx.Decoder).Bool)
		case "purchaser_id":
			p.PurchaserID, err = ptr(d, (*jx.Decoder).Int)
		case "receiver_id":
			p.ReceiverID, err = nullable(d, (*jx.Decoder).Int)
		default:
			return unknownField(key)
		}
		return fieldError(key, err)
	})
	if err != nil {
		return purchase.Patch{}, asValidation(err)
	}
	return p, nil
}

// singleValue rejects input with anything but whitespace after the first
// JSON value.
func singleValue(data []byte) error {
	raw, err := jx.DecodeBytes(data).Raw()
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) != len(bytes.TrimSpace(data)) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// ptr decodes a value for a NOT NULL column; null is rejected.
func ptr[T any](d *jx.Decoder, dec func(*jx.Decoder) (T, error)) (*T, error) {
	if d.Next() == jx.Null {
		return nil, errors.New("must not be null")
	}
	v, err := dec(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func nullable[T any](d *jx.Decoder, dec func(*jx.Decoder) (T, error)) (purchase.Nullable[T], error) {
	if d.Next() == jx.Null {
		if err := d.Null(); err != nil {
			return purchase.Nullable[T]{}, err
		}
		return purchase.Null[T](), nil
	}
	v, err := dec(d)
	if err != nil {
		return purchase.Nullable[T]{}, err
	}
	return purchase.NewNullable(v), nil
}

func optString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func optInt(d *jx.Decoder) (*int, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.Errorf("expected number, got %s", d.Next())
	}
}

func unknownField(name string) error {
	return &purchase.ValidationError{Field: name, Reason: "unknown field"}
}

func fieldError(name string, err error) error {
	if err == nil {
		return nil
	}
	var vErr *purchase.ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	return &purchase.ValidationError{Field: name, Reason: err.Error()}
}

func asValidation(err error) error {
	var vErr *purchase.ValidationError
	if errors.As(err, &vErr) {
		return vErr
	}
	return &purchase.ValidationError{Reason: "malformed JSON: " + err.Error()}
}
