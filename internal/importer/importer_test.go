package importer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/clinic-purchase/internal/domain/purchase"
)

type fakeService struct {
	mu        sync.Mutex
	stored    []string
	created   []string
	checked   []string
	createErr map[string]error
	refsErr   error
}

func (f *fakeService) Create(_ context.Context, order *purchase.OrderInput, items []purchase.ItemInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order == nil || len(items) == 0 {
		return "", &purchase.ValidationError{Field: "purchase_item", Reason: "at least one item is required"}
	}
	if err := f.createErr[order.Reference]; err != nil {
		return "", err
	}
	f.created = append(f.created, order.Reference)
	return "6f6f1a64-2b0c-4b47-9e3f-0d9b0a7f8a01", nil
}

func (f *fakeService) ReferenceExists(_ context.Context, reference string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, reference)
	return slices.Contains(f.stored, reference), nil
}

func (f *fakeService) References(context.Context) ([]string, error) {
	return f.stored, f.refsErr
}

func line(reference string) string {
	return `{"purchase_order": {"reference": "` + reference + `", "creditor_uuid": "0b8e6f1b-1c0e-4f67-8d24-3a36d7f3c0a1", "emitter_id": 1, "purchaser_id": 1},` +
		` "purchase_item": [{"inventory_uuid": "6f3b4c2d-9a1e-4d5f-8b7c-1e2d3f4a5b6c", "quantity": 1, "unit_price": 10}]}`
}

func sampleInput() string {
	return strings.Join([]string{
		line("PO-1"),
		line("PO-OLD"),
		"",
		line("PO-1"),
		`{"purchase_order": `,
		`{"purchase_order": {"reference": "PO-EMPTY"}, "purchase_item": []}`,
		line("PO-2"),
		line(""),
	}, "\n")
}

func TestImport(t *testing.T) {
	svc := &fakeService{stored: []string{"PO-OLD", "PO-ARCHIVED"}}
	im := New(svc, WithWorkers(3))

	summary, err := im.Import(context.Background(), strings.NewReader(sampleInput()))
	require.NoError(t, err)

	assert.Equal(t, Summary{Read: 7, Created: 3, Skipped: 2, Failed: 2}, summary)
	assert.ElementsMatch(t, []string{"PO-1", "PO-2", ""}, svc.created)
	assert.Contains(t, svc.checked, "PO-OLD")
	assert.NotContains(t, svc.checked, "", "records without reference are never checked")
}

func TestImportGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	_, err := gz.Write([]byte(sampleInput()))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "purchases.jsonl.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	svc := &fakeService{stored: []string{"PO-OLD"}}
	summary, err := New(svc).ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Created)
	assert.Equal(t, 2, summary.Skipped)
}

func TestImportCountsCreateFailures(t *testing.T) {
	svc := &fakeService{createErr: map[string]error{"PO-2": errors.New("duplicate key")}}
	input := strings.Join([]string{line("PO-1"), line("PO-2")}, "\n")

	summary, err := New(svc, WithWorkers(1)).Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, Summary{Read: 2, Created: 1, Failed: 1}, summary)
}

func TestImportReferencesError(t *testing.T) {
	svc := &fakeService{refsErr: errors.New("connection refused")}
	_, err := New(svc).Import(context.Background(), strings.NewReader(line("PO-1")))
	require.ErrorContains(t, err, "load references")
	assert.Empty(t, svc.created)
}

func TestImportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := &fakeService{}
	_, err := New(svc).Import(ctx, strings.NewReader(sampleInput()))
	require.ErrorIs(t, err, context.Canceled)
}

func TestImportFileMissing(t *testing.T) {
	_, err := New(&fakeService{}).ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
}
