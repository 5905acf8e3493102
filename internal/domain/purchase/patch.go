package purchase

import (
	"time"

	"github.com/shopspring/decimal"
)

// Nullable is a patch value for a column that accepts NULL. The zero value
// leaves the column untouched.
type Nullable[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// NewNullable returns a Nullable that sets the column to v.
func NewNullable[T any](v T) Nullable[T] {
	return Nullable[T]{Value: v, Set: true}
}

// Null returns a Nullable that clears the column.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true, Null: true}
}

// Patch is a partial update of a purchase header. Nil fields are left
// untouched. Items cannot be changed through a patch.
//
// Workflow flags are overwritten as given; no transition between flag
// combinations is rejected.
type Patch struct {
	Reference     *string
	Cost          *decimal.Decimal
	Discount      *decimal.Decimal
	PurchaseDate  *string
	Paid          *bool
	CreditorUUID  *string
	PaidUUID      Nullable[string]
	Note          *string
	Confirmed     *bool
	Closed        *bool
	IsDirect      *bool
	IsDonation    *bool
	EmitterID     *int
	IsAuthorized  *bool
	IsValidate    *bool
	ConfirmedBy   Nullable[int]
	IsIntegration *bool
	PurchaserID   *int
	ReceiverID    Nullable[int]
}

// Assignment is a single "column = value" of an UPDATE. Identifier values
// are bid.BID; a nil Value writes NULL.
type Assignment struct {
	Column string
	Value  any
}

// Assignments maps the patch to storage assignments in a stable column order.
func (p Patch) Assignments() ([]Assignment, error) {
	for _, err := range []error{
		checkOptInt4("emitter_id", p.EmitterID),
		checkOptInt4("purchaser_id", p.PurchaserID),
		checkNullableInt4("confirmed_by", p.ConfirmedBy),
		checkNullableInt4("receiver_id", p.ReceiverID),
	} {
		if err != nil {
			return nil, err
		}
	}

	var set []Assignment
	add := func(column string, v any) {
		set = append(set, Assignment{Column: column, Value: v})
	}

	if p.Reference != nil {
		add("reference", *p.Reference)
	}
	if p.Cost != nil {
		if err := checkMoney("cost", *p.Cost); err != nil {
			return nil, err
		}
		add("cost", *p.Cost)
	}
	if p.Discount != nil {
		if err := checkMoney("discount", *p.Discount); err != nil {
			return nil, err
		}
		add("discount", *p.Discount)
	}
	if p.PurchaseDate != nil {
		if *p.PurchaseDate == "" {
			return nil, &ValidationError{Field: "purchase_date", Reason: "must not be empty"}
		}
		d, err := normalizeDate(*p.PurchaseDate, time.Time{})
		if err != nil {
			return nil, &ValidationError{Field: "purchase_date", Reason: err.Error()}
		}
		add("purchase_date", d)
	}
	if p.Paid != nil {
		add("paid", *p.Paid)
	}
	if p.CreditorUUID != nil {
		id, err := parseID(*p.CreditorUUID, "creditor_uuid")
		if err != nil {
			return nil, err
		}
		add("creditor_uuid", id)
	}
	if p.PaidUUID.Set {
		if p.PaidUUID.Null {
			add("paid_uuid", nil)
		} else {
			id, err := parseID(p.PaidUUID.Value, "paid_uuid")
			if err != nil {
				return nil, err
			}
			add("paid_uuid", id)
		}
	}
	if p.Note != nil {
		add("note", *p.Note)
	}
	addBool := func(column string, v *bool) {
		if v != nil {
			add(column, *v)
		}
	}
	addBool("confirmed", p.Confirmed)
	addBool("closed", p.Closed)
	addBool("is_direct", p.IsDirect)
	addBool("is_donation", p.IsDonation)
	if p.EmitterID != nil {
		add("emitter_id", *p.EmitterID)
	}
	addBool("is_authorized", p.IsAuthorized)
	addBool("is_validate", p.IsValidate)
	addNullableInt(add, "confirmed_by", p.ConfirmedBy)
	addBool("is_integration", p.IsIntegration)
	if p.PurchaserID != nil {
		add("purchaser_id", *p.PurchaserID)
	}
	addNullableInt(add, "receiver_id", p.ReceiverID)

	return set, nil
}

func addNullableInt(add func(string, any), column string, v Nullable[int]) {
	if !v.Set {
		return
	}
	if v.Null {
		add(column, nil)
		return
	}
	add(column, v.Value)
}

func checkNullableInt4(field string, v Nullable[int]) error {
	if !v.Set || v.Null {
		return nil
	}
	return checkInt4(field, v.Value)
}
