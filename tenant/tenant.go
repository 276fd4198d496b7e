// Package tenant defines the tenant scope capability that every storage
// and engine operation requires.
//
// An ID can only be produced by Parse or MustParse, and the zero value is
// rejected by every store method. Code that forgets to thread a tenant
// scope therefore fails at the narrowest possible point instead of
// silently querying across tenants.
package tenant

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissing indicates an operation was attempted without a tenant scope.
var ErrMissing = errors.New("tenant: missing tenant scope")

// ID is an opaque, validated tenant identifier. The zero value is invalid.
type ID struct {
	value string
}

// Parse validates a raw tenant identifier. Leading/trailing whitespace is
// rejected rather than trimmed: an identifier that arrives padded points
// at a bug in the caller.
func Parse(raw string) (ID, error) {
	if raw == "" {
		return ID{}, ErrMissing
	}
	if strings.TrimSpace(raw) != raw {
		return ID{}, fmt.Errorf("tenant: identifier %q has surrounding whitespace", raw)
	}
	return ID{value: raw}, nil
}

// MustParse is like Parse but panics on error. Use for fixtures.
func MustParse(raw string) ID {
	id, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero reports whether the ID is the invalid zero value.
func (id ID) IsZero() bool { return id.value == "" }

// String returns the raw identifier.
func (id ID) String() string { return id.value }

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) { return []byte(id.value), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
