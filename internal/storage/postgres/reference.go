package postgres

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/clinic-purchase/internal/bid"
)

const (
	upsertCreditorSQL = `INSERT INTO creditor (uuid, text) VALUES ($1, $2)
		ON CONFLICT (uuid) DO UPDATE SET text = EXCLUDED.text`

	upsertEmployeeSQL = `INSERT INTO employee (id, name, prenom) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, prenom = EXCLUDED.prenom`

	upsertUserSQL = `INSERT INTO users (id, first, last) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET first = EXCLUDED.first, last = EXCLUDED.last`

	upsertInventorySQL = `INSERT INTO inventory (uuid, text) VALUES ($1, $2)
		ON CONFLICT (uuid) DO UPDATE SET text = EXCLUDED.text`
)

// Creditor is a supplier purchase orders are addressed to.
type Creditor struct {
	UUID string `json:"uuid"`
	Text string `json:"text"`
}

// Employee is a purchaser or receiver of an order.
type Employee struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Prenom string `json:"prenom"`
}

// User is the application user that emits an order.
type User struct {
	ID    int    `json:"id"`
	First string `json:"first"`
	Last  string `json:"last"`
}

// InventoryItem is a stock article purchase lines refer to.
type InventoryItem struct {
	UUID string `json:"uuid"`
	Text string `json:"text"`
}

// ReferenceData is the set of lookup rows joined by purchase views.
type ReferenceData struct {
	Creditors []Creditor      `json:"creditors"`
	Employees []Employee      `json:"employees"`
	Users     []User          `json:"users"`
	Inventory []InventoryItem `json:"inventory"`
}

// ReferenceRepository writes lookup rows owned by other modules of the
// application. It exists for seeding and tests.
type ReferenceRepository struct {
	db *Gateway
}

// NewReferenceRepository returns a ReferenceRepository that uses the given gateway.
func NewReferenceRepository(db *Gateway) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// Upsert writes all rows of data in a single transaction.
func (r *ReferenceRepository) Upsert(ctx context.Context, data ReferenceData) error {
	tx := r.db.Begin()

	for _, c := range data.Creditors {
		id, err := bid.FromText(c.UUID)
		if err != nil {
			return errors.Wrapf(err, "creditor %q", c.Text)
		}
		tx.AddQuery(upsertCreditorSQL, uuidArg(id), c.Text)
	}
	for _, e := range data.Employees {
		tx.AddQuery(upsertEmployeeSQL, e.ID, e.Name, e.Prenom)
	}
	for _, u := range data.Users {
		tx.AddQuery(upsertUserSQL, u.ID, u.First, u.Last)
	}
	for _, it := range data.Inventory {
		id, err := bid.FromText(it.UUID)
		if err != nil {
			return errors.Wrapf(err, "inventory %q", it.Text)
		}
		tx.AddQuery(upsertInventorySQL, uuidArg(id), it.Text)
	}

	if err := tx.Execute(ctx); err != nil {
		return errors.Wrap(err, "upsert reference data")
	}
	return nil
}
