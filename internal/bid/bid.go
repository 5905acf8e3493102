// Package bid converts identifiers between their textual UUID form, used on
// the wire, and the fixed 16-byte form stored in the database.
package bid

import (
	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Size is the length of the binary form in bytes.
const Size = 16

// BID is the binary form of an identifier.
type BID [Size]byte

// Nil is the all-zero identifier.
var Nil BID

// ErrInvalid is returned for text or bytes that do not encode an identifier.
var ErrInvalid = errors.New("invalid identifier")

// New returns a random (version 4) identifier.
func New() BID {
	return BID(uuid.New())
}

// FromText parses the textual form. Upper-case, braced and urn:uuid: forms
// are accepted.
func FromText(text string) (BID, error) {
	u, err := uuid.Parse(text)
	if err != nil {
		return Nil, errors.Wrapf(ErrInvalid, "parse %q", text)
	}
	return BID(u), nil
}

// ToText formats a 16-byte slice as a canonical lower-case UUID string.
func ToText(b []byte) (string, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return "", errors.Wrapf(ErrInvalid, "decode %d bytes", len(b))
	}
	return u.String(), nil
}

// Normalize returns the canonical textual form of text.
func Normalize(text string) (string, error) {
	b, err := FromText(text)
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// String implements fmt.Stringer.
func (b BID) String() string {
	return uuid.UUID(b).String()
}

// IsNil reports whether b is the all-zero identifier.
func (b BID) IsNil() bool {
	return b == Nil
}
