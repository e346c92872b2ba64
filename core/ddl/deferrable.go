package ddl

import (
	"errors"
	"fmt"
	"strings"
)

// Deferrable controls when a constraint is checked inside a transaction.
// The zero value means no deferrability clause is rendered at all.
type Deferrable int

const (
	DeferrableUnset Deferrable = iota
	NotDeferrable
	DeferrableImmediate
	DeferrableDeferred
)

// ErrInvalidDeferrable is returned for unrecognised deferrable modes.
var ErrInvalidDeferrable = errors.New("invalid deferrable mode")

// Valid reports whether d is one of the declared modes.
func (d Deferrable) Valid() bool {
	return d >= DeferrableUnset && d <= DeferrableDeferred
}

// IsSet reports whether a mode other than DeferrableUnset was chosen.
func (d Deferrable) IsSet() bool {
	return d != DeferrableUnset
}

// String returns the SQL clause for the mode.
func (d Deferrable) String() string {
	switch d {
	case DeferrableUnset:
		return ""
	case NotDeferrable:
		return "NOT DEFERRABLE"
	case DeferrableImmediate:
		return "DEFERRABLE INITIALLY IMMEDIATE"
	case DeferrableDeferred:
		return "DEFERRABLE INITIALLY DEFERRED"
	}
	return fmt.Sprintf("Deferrable(%d)", int(d))
}

// ParseDeferrable parses a mode from its SQL clause or short name
// ("not_deferrable", "immediate", "deferred"). Matching is case-insensitive.
func ParseDeferrable(s string) (Deferrable, error) {
	norm := strings.Join(strings.Fields(strings.ToUpper(strings.ReplaceAll(s, "_", " "))), " ")
	switch norm {
	case "":
		return DeferrableUnset, nil
	case "NOT DEFERRABLE":
		return NotDeferrable, nil
	case "IMMEDIATE", "DEFERRABLE INITIALLY IMMEDIATE":
		return DeferrableImmediate, nil
	case "DEFERRED", "DEFERRABLE INITIALLY DEFERRED":
		return DeferrableDeferred, nil
	}
	return DeferrableUnset, fmt.Errorf("%w: %q", ErrInvalidDeferrable, s)
}
