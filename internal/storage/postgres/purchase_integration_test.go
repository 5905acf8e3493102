//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/clinic-purchase/internal/bid"
	"github.com/xenking/clinic-purchase/internal/domain/purchase"
)

const (
	seedCreditor  = "0b8e6f1b-1c0e-4f67-8d24-3a36d7f3c0a1"
	seedInventory = "6f3b4c2d-9a1e-4d5f-8b7c-1e2d3f4a5b6c"
)

// newTestPool starts a throwaway PostgreSQL container, applies the schema
// and seeds one row of each lookup table.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("clinic_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))

	err = NewReferenceRepository(NewGateway(pool)).Upsert(ctx, ReferenceData{
		Creditors: []Creditor{{UUID: seedCreditor, Text: "Pharmacie Centrale"}},
		Employees: []Employee{{ID: 1, Name: "Mukendi", Prenom: "Jean"}},
		Users:     []User{{ID: 1, First: "Ada", Last: "Lovelace"}},
		Inventory: []InventoryItem{{UUID: seedInventory, Text: "Paracetamol 500mg"}},
	})
	require.NoError(t, err)

	return pool
}

func newIntegrationService(t *testing.T, pool *pgxpool.Pool) *purchase.Service {
	t.Helper()

	svc, err := purchase.NewService(NewPurchaseRepository(NewGateway(pool)))
	require.NoError(t, err)
	return svc
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()

	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT count(*) FROM "+table).Scan(&n))
	return n
}

func testOrder(reference string) *purchase.OrderInput {
	return &purchase.OrderInput{
		Reference:    reference,
		Cost:         decimal.NewFromInt(100),
		Discount:     decimal.Zero,
		PurchaseDate: "2024-03-14",
		CreditorUUID: seedCreditor,
		EmitterID:    1,
		PurchaserID:  1,
	}
}

func TestPurchaseRepository_CreateReadList(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	svc := newIntegrationService(t, pool)

	id, err := svc.Create(ctx, testOrder("PO-1"), []purchase.ItemInput{
		{InventoryUUID: seedInventory, Quantity: 2, UnitPrice: decimal.NewFromInt(50)},
	})
	require.NoError(t, err)

	detail, err := svc.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, detail.UUID)
	assert.Equal(t, "Pharmacie Centrale", detail.CreditorText)
	assert.Equal(t, "Mukendi", detail.PurchaserName)
	assert.Equal(t, "Lovelace", detail.EmitterLast)
	assert.Nil(t, detail.PaidUUID)
	assert.True(t, time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC).Equal(detail.PurchaseDate))
	require.Len(t, detail.Items, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(detail.Items[0].Total))
	assert.Equal(t, "Paracetamol 500mg", detail.Items[0].InventoryText)

	list, err := svc.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "PO-1", list[0].Reference)

	detailed, err := svc.ListDetailed(ctx)
	require.NoError(t, err)
	require.Len(t, detailed, 1)
	assert.Equal(t, seedCreditor, detailed[0].CreditorUUID)
}

func TestPurchaseRepository_ItemFailureRollsBackHeader(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	svc := newIntegrationService(t, pool)

	order := testOrder("PO-2")
	order.UUID = bid.New().String()

	_, err := svc.Create(ctx, order, []purchase.ItemInput{
		{InventoryUUID: seedInventory, Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
		{InventoryUUID: bid.New().String(), Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
	})

	var txErr *TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, 1, txErr.Statement)
	assert.Equal(t, CodeForeignKeyViolation, txErr.Code)

	assert.Zero(t, countRows(t, pool, "purchase"))
	assert.Zero(t, countRows(t, pool, "purchase_item"))

	_, err = svc.Read(ctx, order.UUID)
	var nfErr *purchase.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestPurchaseRepository_EmptyItemsWritesNothing(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	svc := newIntegrationService(t, pool)

	_, err := svc.Create(ctx, testOrder("PO-3"), nil)

	var vErr *purchase.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Zero(t, countRows(t, pool, "purchase"))
}

func TestPurchaseRepository_DuplicateID(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	svc := newIntegrationService(t, pool)

	order := testOrder("PO-4")
	order.UUID = bid.New().String()
	items := []purchase.ItemInput{{InventoryUUID: seedInventory, Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}

	_, err := svc.Create(ctx, order, items)
	require.NoError(t, err)

	_, err = svc.Create(ctx, order, items)
	var txErr *TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, CodeUniqueViolation, txErr.Code)
	assert.Equal(t, 1, countRows(t, pool, "purchase"))
}

func TestPurchaseRepository_UpdateNote(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	svc := newIntegrationService(t, pool)

	id, err := svc.Create(ctx, testOrder("PO-5"), []purchase.ItemInput{
		{InventoryUUID: seedInventory, Quantity: 2, UnitPrice: decimal.NewFromInt(50)},
		{InventoryUUID: seedInventory, Quantity: 4, UnitPrice: decimal.RequireFromString("2.5")},
	})
	require.NoError(t, err)

	before, err := svc.Read(ctx, id)
	require.NoError(t, err)

	note := "x"
	after, err := svc.Update(ctx, id, purchase.Patch{Note: &note})
	require.NoError(t, err)

	assert.Equal(t, "x", after.Note)
	assert.Equal(t, before.Items, after.Items)
	assert.Equal(t, before.Reference, after.Reference)
	assert.True(t, before.Cost.Equal(after.Cost))
	assert.Equal(t, before.Timestamp, after.Timestamp)
}

func TestPurchaseRepository_UpdateNullable(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	svc := newIntegrationService(t, pool)

	order := testOrder("PO-6")
	confirmer := 1
	order.ConfirmedBy = &confirmer
	id, err := svc.Create(ctx, order, []purchase.ItemInput{
		{InventoryUUID: seedInventory, Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
	})
	require.NoError(t, err)

	paid := bid.New().String()
	after, err := svc.Update(ctx, id, purchase.Patch{
		ConfirmedBy: purchase.Null[int](),
		PaidUUID:    purchase.NewNullable(paid),
	})
	require.NoError(t, err)
	assert.Nil(t, after.ConfirmedBy)
	require.NotNil(t, after.PaidUUID)
	assert.Equal(t, paid, *after.PaidUUID)
}

func TestPurchaseRepository_UpdateMissing(t *testing.T) {
	pool := newTestPool(t)
	svc := newIntegrationService(t, pool)

	note := "x"
	_, err := svc.Update(context.Background(), bid.New().String(), purchase.Patch{Note: &note})

	var nfErr *purchase.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestPurchaseRepository_References(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	svc := newIntegrationService(t, pool)

	for _, ref := range []string{"PO-A", "PO-B"} {
		_, err := svc.Create(ctx, testOrder(ref), []purchase.ItemInput{
			{InventoryUUID: seedInventory, Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
		})
		require.NoError(t, err)
	}

	refs, err := svc.References(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"PO-A", "PO-B"}, refs)

	ok, err := svc.ReferenceExists(ctx, "PO-B")
	require.NoError(t, err)
	assert.True(t, ok)
}
