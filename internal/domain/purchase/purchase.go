package purchase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/clinic-purchase/internal/bid"
)

// OrderInput is the client-supplied purchase header. Identifier fields are
// in textual form; the builder converts them.
type OrderInput struct {
	UUID          string          `json:"uuid"`
	Reference     string          `json:"reference"`
	Cost          decimal.Decimal `json:"cost"`
	Discount      decimal.Decimal `json:"discount"`
	PurchaseDate  string          `json:"purchase_date"`
	Paid          bool            `json:"paid"`
	CreditorUUID  string          `json:"creditor_uuid" validate:"required"`
	PaidUUID      string          `json:"paid_uuid"`
	Note          string          `json:"note"`
	Confirmed     bool            `json:"confirmed"`
	Closed        bool            `json:"closed"`
	IsDirect      bool            `json:"is_direct"`
	IsDonation    bool            `json:"is_donation"`
	EmitterID     int             `json:"emitter_id" validate:"required,lte=2147483647"`
	IsAuthorized  bool            `json:"is_authorized"`
	IsValidate    bool            `json:"is_validate"`
	ConfirmedBy   *int            `json:"confirmed_by" validate:"omitempty,lte=2147483647"`
	IsIntegration bool            `json:"is_integration"`
	PurchaserID   int             `json:"purchaser_id" validate:"required,lte=2147483647"`
	ReceiverID    *int            `json:"receiver_id" validate:"omitempty,lte=2147483647"`
}

// ItemInput is a client-supplied purchase line. Total is optional; when set
// it must agree with Quantity * UnitPrice.
type ItemInput struct {
	UUID          string           `json:"uuid"`
	InventoryUUID string           `json:"inventory_uuid" validate:"required"`
	Quantity      int              `json:"quantity" validate:"gt=0,lte=2147483647"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	Total         *decimal.Decimal `json:"total"`
}

// OrderRow is the purchase header in storage form.
type OrderRow struct {
	UUID          bid.BID
	Reference     string
	Cost          decimal.Decimal
	Discount      decimal.Decimal
	PurchaseDate  time.Time
	Paid          bool
	CreditorUUID  bid.BID
	PaidUUID      *bid.BID
	Note          string
	Confirmed     bool
	Closed        bool
	IsDirect      bool
	IsDonation    bool
	EmitterID     int
	IsAuthorized  bool
	IsValidate    bool
	ConfirmedBy   *int
	IsIntegration bool
	PurchaserID   int
	ReceiverID    *int
}

// ItemRow is a purchase line in storage form, linked to its order.
type ItemRow struct {
	UUID          bid.BID
	PurchaseUUID  bid.BID
	InventoryUUID bid.BID
	Quantity      int
	UnitPrice     decimal.Decimal
	Total         decimal.Decimal
}

// Aggregate is an order header with the items it owns, ready to be written
// in a single transaction.
type Aggregate struct {
	Order OrderRow
	Items []ItemRow
}

// Summary is the list projection of a purchase order, joined with creditor,
// purchaser and emitter display data.
type Summary struct {
	UUID            string
	Reference       string
	Cost            decimal.Decimal
	Discount        decimal.Decimal
	PurchaseDate    time.Time
	Paid            bool
	CreditorText    string
	PurchaserName   string
	PurchaserPrenom string
	EmitterFirst    string
	EmitterLast     string
}

// DetailSummary extends Summary with audit and workflow fields.
type DetailSummary struct {
	Summary

	CreditorUUID  string
	Timestamp     time.Time
	Note          string
	PaidUUID      *string
	Confirmed     bool
	Closed        bool
	IsDirect      bool
	IsDonation    bool
	EmitterID     int
	IsAuthorized  bool
	IsValidate    bool
	ConfirmedBy   *int
	IsIntegration bool
	PurchaserID   int
	ReceiverID    *int
}

// ItemView is a purchase line joined with its inventory label.
type ItemView struct {
	PurchaseUUID  string
	UUID          string
	Quantity      int
	UnitPrice     decimal.Decimal
	Total         decimal.Decimal
	InventoryText string
}

// Detail is the fully joined purchase order with its items in insertion order.
type Detail struct {
	DetailSummary

	Items []ItemView
}

// Projection selects the shape of a purchase list.
type Projection int

const (
	// ProjectionSummary lists Summary rows.
	ProjectionSummary Projection = iota
	// ProjectionComplete lists DetailSummary rows.
	ProjectionComplete
)

// ParseProjection maps the "complete" query parameter to a Projection.
func ParseProjection(complete string) (Projection, error) {
	switch complete {
	case "", "0":
		return ProjectionSummary, nil
	case "1":
		return ProjectionComplete, nil
	default:
		return 0, &ValidationError{Field: "complete", Reason: "must be 0 or 1"}
	}
}

func (p Projection) String() string {
	switch p {
	case ProjectionSummary:
		return "summary"
	case ProjectionComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Repository defines persistence operations for purchase orders.
type Repository interface {
	// Create writes the order header and all of its items atomically.
	Create(ctx context.Context, agg *Aggregate) error
	// FindHeader returns ErrNotFound when no order has the identifier.
	FindHeader(ctx context.Context, id bid.BID) (*DetailSummary, error)
	FindItems(ctx context.Context, id bid.BID) ([]ItemView, error)
	// Update applies the assignments to the header and reports whether a row matched.
	Update(ctx context.Context, id bid.BID, set []Assignment) (bool, error)
	ListSummaries(ctx context.Context) ([]Summary, error)
	ListDetailed(ctx context.Context) ([]DetailSummary, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	References(ctx context.Context) ([]string, error)
}
