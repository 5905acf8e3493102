package postgres

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/xenking/clinic-purchase/internal/bid"
	"github.com/xenking/clinic-purchase/internal/domain/purchase"
)

const (
	insertPurchaseSQL = `INSERT INTO purchase (uuid, reference, cost, discount, purchase_date, paid,
		creditor_uuid, note, paid_uuid, confirmed, closed, is_direct, is_donation, emitter_id,
		is_authorized, is_validate, confirmed_by, is_integration, purchaser_id, receiver_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	insertPurchaseItemsPrefix = `INSERT INTO purchase_item (uuid, inventory_uuid, quantity, unit_price, total, purchase_uuid) VALUES `

	summaryColumns = `p.uuid, p.reference, p.cost, p.discount, p.purchase_date, p.paid,
		c.text, e.name, e.prenom, u.first, u.last`

	detailColumns = summaryColumns + `, p.creditor_uuid, p.timestamp, p.note, p.paid_uuid,
		p.confirmed, p.closed, p.is_direct, p.is_donation, p.emitter_id, p.is_authorized,
		p.is_validate, p.confirmed_by, p.is_integration, p.purchaser_id, p.receiver_id`

	purchaseJoins = `FROM purchase p
		JOIN creditor c ON c.uuid = p.creditor_uuid
		JOIN employee e ON e.id = p.purchaser_id
		JOIN users u ON u.id = p.emitter_id`

	getPurchaseSQL = `SELECT ` + detailColumns + ` ` + purchaseJoins + ` WHERE p.uuid = $1`

	listPurchaseSummariesSQL = `SELECT ` + summaryColumns + ` ` + purchaseJoins + ` ORDER BY p.seq`

	listPurchaseDetailsSQL = `SELECT ` + detailColumns + ` ` + purchaseJoins + ` ORDER BY p.seq`

	getPurchaseItemsSQL = `SELECT pi.purchase_uuid, pi.uuid, pi.quantity, pi.unit_price, pi.total, i.text
		FROM purchase_item pi
		JOIN inventory i ON i.uuid = pi.inventory_uuid
		WHERE pi.purchase_uuid = $1
		ORDER BY pi.seq`

	referenceExistsSQL = `SELECT EXISTS (SELECT 1 FROM purchase WHERE reference = $1)`

	listReferencesSQL = `SELECT reference FROM purchase ORDER BY seq`

	itemColumns = 6
	// maxBindParams is the extended protocol limit on parameters per statement.
	maxBindParams = 65535
	// maxItemsPerStatement keeps a multi-row item INSERT under maxBindParams.
	maxItemsPerStatement = maxBindParams / itemColumns
)

// updatableColumns are the purchase columns a patch may assign.
var updatableColumns = map[string]struct{}{
	"reference": {}, "cost": {}, "discount": {}, "purchase_date": {}, "paid": {},
	"creditor_uuid": {}, "paid_uuid": {}, "note": {}, "confirmed": {}, "closed": {},
	"is_direct": {}, "is_donation": {}, "emitter_id": {}, "is_authorized": {},
	"is_validate": {}, "confirmed_by": {}, "is_integration": {}, "purchaser_id": {},
	"receiver_id": {},
}

var _ purchase.Repository = (*PurchaseRepository)(nil)

// PurchaseRepository implements purchase.Repository backed by PostgreSQL.
type PurchaseRepository struct {
	db *Gateway
}

// NewPurchaseRepository returns a PurchaseRepository that uses the given gateway.
func NewPurchaseRepository(db *Gateway) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Create inserts the order header and bulk-inserts its items in one
// transaction. Large orders are split into several item statements.
func (r *PurchaseRepository) Create(ctx context.Context, agg *purchase.Aggregate) error {
	if err := r.createTx(agg).Execute(ctx); err != nil {
		return errors.Wrapf(err, "creating purchase %s", agg.Order.UUID)
	}
	return nil
}

func (r *PurchaseRepository) createTx(agg *purchase.Aggregate) *Transaction {
	o := agg.Order
	tx := r.db.Begin().
		AddQuery(insertPurchaseSQL,
			uuidArg(o.UUID), o.Reference, o.Cost, o.Discount, o.PurchaseDate, o.Paid,
			uuidArg(o.CreditorUUID), o.Note, nullUUIDArg(o.PaidUUID), o.Confirmed, o.Closed,
			o.IsDirect, o.IsDonation, o.EmitterID, o.IsAuthorized, o.IsValidate,
			o.ConfirmedBy, o.IsIntegration, o.PurchaserID, o.ReceiverID,
		)
	for items := range slices.Chunk(agg.Items, maxItemsPerStatement) {
		sql, args := insertItemsStatement(items)
		tx.AddQuery(sql, args...)
	}
	return tx
}

// insertItemsStatement builds a single multi-row INSERT for items. Callers
// keep len(items) at or below maxItemsPerStatement.
func insertItemsStatement(items []purchase.ItemRow) (string, []any) {
	var b strings.Builder
	b.WriteString(insertPurchaseItemsPrefix)

	args := make([]any, 0, len(items)*itemColumns)
	for i, it := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * itemColumns
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args,
			uuidArg(it.UUID), uuidArg(it.InventoryUUID), it.Quantity,
			it.UnitPrice, it.Total, uuidArg(it.PurchaseUUID),
		)
	}
	return b.String(), args
}

// FindHeader returns the joined header of one purchase order.
func (r *PurchaseRepository) FindHeader(ctx context.Context, id bid.BID) (*purchase.DetailSummary, error) {
	rows, err := r.db.Query(ctx, "get purchase", getPurchaseSQL, uuidArg(id))
	if err != nil {
		return nil, err
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDetailSummary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, purchase.ErrNotFound
		}
		return nil, storageError("get purchase", err)
	}
	return &d, nil
}

// FindItems returns the items of one purchase order in insertion order.
func (r *PurchaseRepository) FindItems(ctx context.Context, id bid.BID) ([]purchase.ItemView, error) {
	rows, err := r.db.Query(ctx, "get purchase items", getPurchaseItemsSQL, uuidArg(id))
	if err != nil {
		return nil, err
	}

	items, err := pgx.CollectRows(rows, scanItemView)
	if err != nil {
		return nil, storageError("get purchase items", err)
	}
	return items, nil
}

// Update assigns the given columns of one purchase header.
func (r *PurchaseRepository) Update(ctx context.Context, id bid.BID, set []purchase.Assignment) (bool, error) {
	if len(set) == 0 {
		return false, errors.New("empty update")
	}

	var b strings.Builder
	b.WriteString("UPDATE purchase SET ")
	args := make([]any, 0, len(set)+1)
	for i, a := range set {
		if _, ok := updatableColumns[a.Column]; !ok {
			return false, errors.Errorf("column %q is not updatable", a.Column)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = $%d", a.Column, i+1)
		args = append(args, assignmentArg(a.Value))
	}
	fmt.Fprintf(&b, " WHERE uuid = $%d", len(set)+1)
	args = append(args, uuidArg(id))

	tag, err := r.db.Exec(ctx, "update purchase", b.String(), args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListSummaries returns the summary projection of every purchase order.
func (r *PurchaseRepository) ListSummaries(ctx context.Context) ([]purchase.Summary, error) {
	rows, err := r.db.Query(ctx, "list purchases", listPurchaseSummariesSQL)
	if err != nil {
		return nil, err
	}

	list, err := pgx.CollectRows(rows, scanSummary)
	if err != nil {
		return nil, storageError("list purchases", err)
	}
	return list, nil
}

// ListDetailed returns the complete projection of every purchase order.
func (r *PurchaseRepository) ListDetailed(ctx context.Context) ([]purchase.DetailSummary, error) {
	rows, err := r.db.Query(ctx, "list detailed purchases", listPurchaseDetailsSQL)
	if err != nil {
		return nil, err
	}

	list, err := pgx.CollectRows(rows, scanDetailSummary)
	if err != nil {
		return nil, storageError("list detailed purchases", err)
	}
	return list, nil
}

// ReferenceExists reports whether a purchase with the reference is stored.
func (r *PurchaseRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	rows, err := r.db.Query(ctx, "check reference", referenceExistsSQL, reference)
	if err != nil {
		return false, err
	}

	ok, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, storageError("check reference", err)
	}
	return ok, nil
}

// References returns every stored purchase reference.
func (r *PurchaseRepository) References(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, "list references", listReferencesSQL)
	if err != nil {
		return nil, err
	}

	refs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storageError("list references", err)
	}
	return refs, nil
}

// summaryFields holds scan targets shared by both projections.
type summaryFields struct {
	uuid     pgtype.UUID
	s        purchase.Summary
	cost     decimal.Decimal
	discount decimal.Decimal
	date     time.Time
}

func (f *summaryFields) targets() []any {
	return []any{
		&f.uuid, &f.s.Reference, &f.cost, &f.discount, &f.date, &f.s.Paid,
		&f.s.CreditorText, &f.s.PurchaserName, &f.s.PurchaserPrenom,
		&f.s.EmitterFirst, &f.s.EmitterLast,
	}
}

func (f *summaryFields) summary() (purchase.Summary, error) {
	id, err := textID(f.uuid)
	if err != nil {
		return purchase.Summary{}, err
	}
	f.s.UUID = id
	f.s.Cost = f.cost
	f.s.Discount = f.discount
	f.s.PurchaseDate = f.date
	return f.s, nil
}

func scanSummary(row pgx.CollectableRow) (purchase.Summary, error) {
	var f summaryFields
	if err := row.Scan(f.targets()...); err != nil {
		return purchase.Summary{}, err
	}
	return f.summary()
}

func scanDetailSummary(row pgx.CollectableRow) (purchase.DetailSummary, error) {
	var (
		f           summaryFields
		d           purchase.DetailSummary
		creditor    pgtype.UUID
		paid        pgtype.UUID
		emitter     int32
		confirmedBy pgtype.Int4
		purchaser   int32
		receiver    pgtype.Int4
	)
	targets := append(f.targets(),
		&creditor, &d.Timestamp, &d.Note, &paid, &d.Confirmed, &d.Closed,
		&d.IsDirect, &d.IsDonation, &emitter, &d.IsAuthorized, &d.IsValidate,
		&confirmedBy, &d.IsIntegration, &purchaser, &receiver,
	)
	if err := row.Scan(targets...); err != nil {
		return d, err
	}

	s, err := f.summary()
	if err != nil {
		return d, err
	}
	d.Summary = s
	if d.CreditorUUID, err = textID(creditor); err != nil {
		return d, err
	}
	if paid.Valid {
		text, err := textID(paid)
		if err != nil {
			return d, err
		}
		d.PaidUUID = &text
	}
	d.EmitterID = int(emitter)
	d.PurchaserID = int(purchaser)
	d.ConfirmedBy = intPtr(confirmedBy)
	d.ReceiverID = intPtr(receiver)
	return d, nil
}

func scanItemView(row pgx.CollectableRow) (purchase.ItemView, error) {
	var (
		it           purchase.ItemView
		purchaseUUID pgtype.UUID
		itemUUID     pgtype.UUID
		quantity     int32
	)
	if err := row.Scan(&purchaseUUID, &itemUUID, &quantity, &it.UnitPrice, &it.Total, &it.InventoryText); err != nil {
		return it, err
	}

	var err error
	if it.PurchaseUUID, err = textID(purchaseUUID); err != nil {
		return it, err
	}
	if it.UUID, err = textID(itemUUID); err != nil {
		return it, err
	}
	it.Quantity = int(quantity)
	return it, nil
}

// uuidArg maps a binary identifier to the driver's UUID value.
func uuidArg(id bid.BID) pgtype.UUID {
	return pgtype.UUID{Bytes: [16]byte(id), Valid: true}
}

func nullUUIDArg(id *bid.BID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return uuidArg(*id)
}

func assignmentArg(v any) any {
	switch v := v.(type) {
	case bid.BID:
		return uuidArg(v)
	case nil:
		return nil
	default:
		return v
	}
}

// textID maps a driver UUID back to the textual identifier.
func textID(u pgtype.UUID) (string, error) {
	if !u.Valid {
		return "", errors.New("unexpected NULL identifier")
	}
	return bid.ToText(u.Bytes[:])
}

func intPtr(v pgtype.Int4) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}
