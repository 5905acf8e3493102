package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Gateway executes parameterized statements against a pool.
type Gateway struct {
	pool *pgxpool.Pool
}

// NewGateway returns a Gateway that uses the given pool.
func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{pool: pool}
}

// Exec runs a statement that returns no rows.
func (g *Gateway) Exec(ctx context.Context, op, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, err := g.pool.Exec(ctx, sql, args...)
	if err != nil {
		return tag, storageError(op, err)
	}
	return tag, nil
}

// Query runs a statement and returns its rows. Errors raised while reading
// the rows surface from the collector and should be passed through
// storageError by the caller.
func (g *Gateway) Query(ctx context.Context, op, sql string, args ...any) (pgx.Rows, error) {
	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageError(op, err)
	}
	return rows, nil
}

// Begin starts a new unit of work. Nothing is sent to the server until
// Execute is called.
func (g *Gateway) Begin() *Transaction {
	return &Transaction{pool: g.pool}
}

type statement struct {
	sql  string
	args []any
}

// Transaction queues statements and applies them atomically.
type Transaction struct {
	pool  *pgxpool.Pool
	stmts []statement
}

// AddQuery queues a statement.
func (t *Transaction) AddQuery(sql string, args ...any) *Transaction {
	t.stmts = append(t.stmts, statement{sql: sql, args: args})
	return t
}

// Len returns the number of queued statements.
func (t *Transaction) Len() int {
	return len(t.stmts)
}

// Execute runs all queued statements in one database transaction. Either
// every statement takes effect or none does; on failure the returned error
// is a *TransactionError.
func (t *Transaction) Execute(ctx context.Context) error {
	if len(t.stmts) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		for i, s := range t.stmts {
			if _, err := tx.Exec(ctx, s.sql, s.args...); err != nil {
				return &TransactionError{Statement: i, Code: sqlState(err), Err: err}
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}

	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return txErr
	}
	return &TransactionError{Statement: -1, Code: sqlState(err), Err: err}
}
