package wire

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/clinic-purchase/internal/domain/purchase"
)

// Error codes of the API error body.
const (
	CodeMissingInfo = "ERROR.ERR_MISSING_INFO"
	CodeNotFound    = "ERROR.ERR_NOT_FOUND"
	CodeInternal    = "ERROR.ERR_INTERNAL"
)

// EncodeCreated writes {"uuid": id}.
func EncodeCreated(e *jx.Encoder, id string) {
	e.ObjStart()
	e.FieldStart("uuid")
	e.Str(id)
	e.ObjEnd()
}

// EncodeError writes {"code": code, "reason": reason}.
func EncodeError(e *jx.Encoder, code, reason string) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(code)
	e.FieldStart("reason")
	e.Str(reason)
	e.ObjEnd()
}

// EncodeSummaries writes the summary list projection.
func EncodeSummaries(e *jx.Encoder, rows []purchase.Summary) {
	e.ArrStart()
	for i := range rows {
		e.ObjStart()
		summaryFields(e, &rows[i])
		e.ObjEnd()
	}
	e.ArrEnd()
}

// EncodeDetailSummaries writes the complete list projection.
func EncodeDetailSummaries(e *jx.Encoder, rows []purchase.DetailSummary) {
	e.ArrStart()
	for i := range rows {
		e.ObjStart()
		detailSummaryFields(e, &rows[i])
		e.ObjEnd()
	}
	e.ArrEnd()
}

// EncodeDetail writes a single order with its items.
func EncodeDetail(e *jx.Encoder, d *purchase.Detail) {
	e.ObjStart()
	detailSummaryFields(e, &d.DetailSummary)
	e.FieldStart("items")
	e.ArrStart()
	for i := range d.Items {
		encodeItem(e, &d.Items[i])
	}
	e.ArrEnd()
	e.ObjEnd()
}

func summaryFields(e *jx.Encoder, s *purchase.Summary) {
	e.FieldStart("uuid")
	e.Str(s.UUID)
	e.FieldStart("reference")
	e.Str(s.Reference)
	e.FieldStart("cost")
	encodeDecimal(e, s.Cost)
	e.FieldStart("discount")
	encodeDecimal(e, s.Discount)
	e.FieldStart("purchase_date")
	e.Str(s.PurchaseDate.Format(time.DateOnly))
	e.FieldStart("paid")
	e.Bool(s.Paid)
	e.FieldStart("text")
	e.Str(s.CreditorText)
	e.FieldStart("name")
	e.Str(s.PurchaserName)
	e.FieldStart("prenom")
	e.Str(s.PurchaserPrenom)
	e.FieldStart("first")
	e.Str(s.EmitterFirst)
	e.FieldStart("last")
	e.Str(s.EmitterLast)
}

func detailSummaryFields(e *jx.Encoder, s *purchase.DetailSummary) {
	summaryFields(e, &s.Summary)
	e.FieldStart("creditor_uuid")
	e.Str(s.CreditorUUID)
	e.FieldStart("timestamp")
	e.Str(s.Timestamp.UTC().Format(time.RFC3339))
	e.FieldStart("note")
	e.Str(s.Note)
	e.FieldStart("paid_uuid")
	if s.PaidUUID != nil {
		e.Str(*s.PaidUUID)
	} else {
		e.Null()
	}
	e.FieldStart("confirmed")
	e.Bool(s.Confirmed)
	e.FieldStart("closed")
	e.Bool(s.Closed)
	e.FieldStart("is_direct")
	e.Bool(s.IsDirect)
	e.FieldStart("is_donation")
	e.Bool(s.IsDonation)
	e.FieldStart("emitter_id")
	e.Int(s.EmitterID)
	e.FieldStart("is_authorized")
	e.Bool(s.IsAuthorized)
	e.FieldStart("is_validate")
	e.Bool(s.IsValidate)
	e.FieldStart("confirmed_by")
	encodeOptInt(e, s.ConfirmedBy)
	e.FieldStart("is_integration")
	e.Bool(s.IsIntegration)
	e.FieldStart("purchaser_id")
	e.Int(s.PurchaserID)
	e.FieldStart("receiver_id")
	encodeOptInt(e, s.ReceiverID)
}

func encodeItem(e *jx.Encoder, it *purchase.ItemView) {
	e.ObjStart()
	e.FieldStart("purchase_uuid")
	e.Str(it.PurchaseUUID)
	e.FieldStart("uuid")
	e.Str(it.UUID)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("unit_price")
	encodeDecimal(e, it.UnitPrice)
	e.FieldStart("total")
	encodeDecimal(e, it.Total)
	e.FieldStart("text")
	e.Str(it.InventoryText)
	e.ObjEnd()
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.String()))
}

func encodeOptInt(e *jx.Encoder, v *int) {
	if v == nil {
		e.Null()
		return
	}
	e.Int(*v)
}
