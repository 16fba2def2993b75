// Package id defines TypeID-based identity types for Catcher entities.
//
// Event IDs are K-sortable (UUIDv7-based), globally unique, fixed-width and
// URL-safe in the format "prefix_suffix". Because the suffix is a
// lexicographically ordered encoding of the UUIDv7, IDs generated later
// compare greater as plain strings, which is what lets stores scan a stream
// in creation order using the ID as the sort key.
package id

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// PrefixEvent is the prefix of relayed event IDs.
const PrefixEvent Prefix = "evt"

// EventIDLen is the length of every event ID string: "evt_" plus a
// 26-character base32 suffix.
const EventIDLen = len(PrefixEvent) + 1 + 26

// ID is the primary identifier type for Catcher entities.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix or the entropy source
// fails; both are unrecoverable at the call site.
//
// The UUIDv7 comes from uuid.NewV7, whose timestamp and sequence bits
// strictly increase across calls in this process, so every ID sorts after
// all IDs generated before it.
func New(prefix Prefix) ID {
	u, err := uuid.NewV7()
	if err != nil {
		panic(fmt.Sprintf("id: generate %q: %v", prefix, err))
	}
	tid, err := typeid.FromBytes(string(prefix), u[:])
	if err != nil {
		panic(fmt.Sprintf("id: generate %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// NewEventID generates a new unique event ID.
func NewEventID() ID { return New(PrefixEvent) }

// Parse parses a TypeID string (e.g., "evt_01h455vb4pex5vsknk084sn02q")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// ParseEventID parses a string and validates the "evt" prefix.
func ParseEventID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEvent) }

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// Less reports whether i was generated before other.
func (i ID) Less(other ID) bool {
	return i.String() < other.String()
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
