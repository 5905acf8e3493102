package postgres

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes inspected by callers.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
)

// StorageError is a failed statement outside a transaction: a connectivity
// problem or a constraint violation.
type StorageError struct {
	Op   string
	Code string // SQLSTATE, empty when the failure did not come from the server
	Err  error
}

func (e *StorageError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("storage: %s (sqlstate %s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// TransactionError is a transaction that was rolled back. Statement is the
// zero-based index of the failing statement, or -1 when begin or commit failed.
type TransactionError struct {
	Statement int
	Code      string
	Err       error
}

func (e *TransactionError) Error() string {
	where := "commit"
	if e.Statement >= 0 {
		where = fmt.Sprintf("statement %d", e.Statement)
	}
	if e.Code != "" {
		return fmt.Sprintf("transaction rolled back at %s (sqlstate %s): %v", where, e.Code, e.Err)
	}
	return fmt.Sprintf("transaction rolled back at %s: %v", where, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Code: sqlState(err), Err: err}
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given SQLSTATE.
func HasCode(err error, code string) bool {
	return sqlState(err) == code
}
