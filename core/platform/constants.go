package platform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stokaro/pgconstraints/core/schema"
	"github.com/stokaro/pgconstraints/core/schema/postgres"
)

const (
	Postgres = postgres.DialectName
)

// ErrUnsupportedDialect is returned for dialects without exclusion constraints
// and constraint triggers.
var ErrUnsupportedDialect = errors.New("unsupported dialect")

// NormalizeDialect maps driver and dialect aliases to a canonical name. It
// returns an empty string for unknown dialects.
func NormalizeDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "pgx", "postgresql", "postgres", "pq":
		return Postgres
	default:
		return ""
	}
}

// NewEditor returns the schema editor for a dialect.
func NewEditor(dialect string) (schema.Editor, error) {
	switch NormalizeDialect(dialect) {
	case Postgres:
		return postgres.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
}
