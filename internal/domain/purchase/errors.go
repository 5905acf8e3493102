package purchase

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by a Repository when no purchase order matches.
var ErrNotFound = errors.New("purchase not found")

// ValidationError reports a missing or malformed part of a request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError indicates that no purchase order has the requested identifier.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find a purchase with uuid %s", e.ID)
}

// Unwrap makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
