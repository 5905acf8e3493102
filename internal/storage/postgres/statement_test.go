package postgres

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/clinic-purchase/internal/bid"
	"github.com/xenking/clinic-purchase/internal/domain/purchase"
)

func TestInsertItemsStatement(t *testing.T) {
	purchaseID := bid.New()
	items := []purchase.ItemRow{
		{UUID: bid.New(), PurchaseUUID: purchaseID, InventoryUUID: bid.New(), Quantity: 2, UnitPrice: decimal.NewFromInt(50), Total: decimal.NewFromInt(100)},
		{UUID: bid.New(), PurchaseUUID: purchaseID, InventoryUUID: bid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(3), Total: decimal.NewFromInt(3)},
	}

	sql, args := insertItemsStatement(items)

	assert.Equal(t, insertPurchaseItemsPrefix+"($1, $2, $3, $4, $5, $6), ($7, $8, $9, $10, $11, $12)", sql)
	require.Len(t, args, 12)
	assert.Equal(t, uuidArg(items[0].UUID), args[0])
	assert.Equal(t, uuidArg(items[0].InventoryUUID), args[1])
	assert.Equal(t, 2, args[2])
	assert.Equal(t, uuidArg(purchaseID), args[5])
	assert.Equal(t, uuidArg(items[1].UUID), args[6])
}

func TestUUIDArgRoundTrip(t *testing.T) {
	id := bid.New()

	text, err := textID(uuidArg(id))
	require.NoError(t, err)
	assert.Equal(t, id.String(), text)

	_, err = textID(pgtype.UUID{})
	require.Error(t, err)
}

func TestNullUUIDArg(t *testing.T) {
	assert.False(t, nullUUIDArg(nil).Valid)

	id := bid.New()
	assert.Equal(t, uuidArg(id), nullUUIDArg(&id))
}

func TestAssignmentArg(t *testing.T) {
	id := bid.New()

	assert.Equal(t, uuidArg(id), assignmentArg(id))
	assert.Nil(t, assignmentArg(nil))
	assert.Equal(t, "note", assignmentArg("note"))
}

func TestUpdate_RejectsUnknownColumn(t *testing.T) {
	repo := NewPurchaseRepository(NewGateway(nil))

	_, err := repo.Update(context.Background(), bid.New(), []purchase.Assignment{
		{Column: "uuid; DROP TABLE purchase", Value: "x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not updatable")
}

func TestTransaction_EmptyIsNoop(t *testing.T) {
	tx := NewGateway(nil).Begin()
	assert.Zero(t, tx.Len())
	require.NoError(t, tx.Execute(context.Background()))
}

func TestErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: CodeForeignKeyViolation, Message: "violates foreign key constraint"}

	err := storageError("get purchase", pgErr)
	var sErr *StorageError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, CodeForeignKeyViolation, sErr.Code)
	assert.True(t, HasCode(err, CodeForeignKeyViolation))
	assert.Contains(t, err.Error(), "sqlstate 23503")

	txErr := error(&TransactionError{Statement: 1, Code: sqlState(pgErr), Err: pgErr})
	assert.True(t, HasCode(errors.Wrap(txErr, "creating purchase"), CodeForeignKeyViolation))
	assert.Contains(t, txErr.Error(), "statement 1")

	commitErr := &TransactionError{Statement: -1, Err: errors.New("conn closed")}
	assert.Contains(t, commitErr.Error(), "commit")

	assert.NoError(t, storageError("noop", nil))
}

func TestCreateTx_SplitsLargeOrders(t *testing.T) {
	repo := NewPurchaseRepository(NewGateway(nil))
	purchaseID := bid.New()
	newAgg := func(n int) *purchase.Aggregate {
		items := make([]purchase.ItemRow, n)
		for i := range items {
			items[i] = purchase.ItemRow{
				UUID:         bid.New(),
				PurchaseUUID: purchaseID,
				Quantity:     1,
				UnitPrice:    decimal.NewFromInt(1),
				Total:        decimal.NewFromInt(1),
			}
		}
		return &purchase.Aggregate{Order: purchase.OrderRow{UUID: purchaseID}, Items: items}
	}

	tests := []struct {
		items      int
		statements int
	}{
		{items: 0, statements: 1},
		{items: 1, statements: 2},
		{items: maxItemsPerStatement, statements: 2},
		{items: maxItemsPerStatement + 1, statements: 3},
		{items: 11000, statements: 3},
	}
	for _, tt := range tests {
		tx := repo.createTx(newAgg(tt.items))
		require.Equal(t, tt.statements, tx.Len(), "%d items", tt.items)

		written := 0
		for _, st := range tx.stmts[1:] {
			assert.LessOrEqual(t, len(st.args), maxBindParams)
			written += len(st.args) / itemColumns
		}
		assert.Equal(t, tt.items, written)
	}
}
