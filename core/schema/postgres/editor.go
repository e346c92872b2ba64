// Package postgres implements schema.Editor for PostgreSQL.
package postgres

import (
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/stokaro/pgconstraints/core/ddl"
	"github.com/stokaro/pgconstraints/core/expr"
	"github.com/stokaro/pgconstraints/core/schema"
)

const (
	// DialectName is the PostgreSQL dialect identifier
	DialectName = "postgres"

	deleteConstraintTemplate = "ALTER TABLE {table} DROP CONSTRAINT {name}"
)

// ErrUnsupportedValue is returned when a value has no literal representation.
var ErrUnsupportedValue = errors.New("unsupported value type")

var _ schema.Editor = (*Editor)(nil)

// Editor is the PostgreSQL schema editor. It is stateless and safe for
// concurrent use.
type Editor struct {
	compiler *expr.SQLCompiler
}

// New creates a PostgreSQL editor.
func New() *Editor {
	e := &Editor{}
	e.compiler = expr.NewCompiler(e.QuoteName)
	return e
}

// QuoteName quotes an identifier, doubling embedded double quotes.
func (e *Editor) QuoteName(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// QuoteValue renders v as a PostgreSQL literal.
func (e *Editor) QuoteValue(v any) (string, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return "", fmt.Errorf("failed to read driver value: %w", err)
		}
		return e.QuoteValue(dv)
	}

	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case []byte:
		return `'\x` + hex.EncodeToString(t) + `'::bytea`, nil
	case time.Time:
		return quoteString(t.Format(time.RFC3339Nano)), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return quoteFloat(rv.Float()), nil
	case reflect.String:
		return quoteString(rv.String()), nil
	case reflect.Slice, reflect.Array:
		return e.quoteArray(rv)
	}

	if s, ok := v.(fmt.Stringer); ok {
		return quoteString(s.String()), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func (e *Editor) quoteArray(rv reflect.Value) (string, error) {
	if rv.Len() == 0 {
		return "'{}'", nil
	}
	items := make([]string, rv.Len())
	for i := range items {
		item, err := e.QuoteValue(rv.Index(i).Interface())
		if err != nil {
			return "", err
		}
		items[i] = item
	}
	return "ARRAY[" + strings.Join(items, ", ") + "]", nil
}

// quoteString uses E'' syntax when the literal contains backslashes.
func quoteString(s string) string {
	return strings.TrimSpace(pq.QuoteLiteral(s))
}

func quoteFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "'NaN'"
	case math.IsInf(f, 1):
		return "'Infinity'"
	case math.IsInf(f, -1):
		return "'-Infinity'"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// DeferrableSQL renders the deferrability clause with a leading space.
func (e *Editor) DeferrableSQL(d ddl.Deferrable) string {
	if !d.IsSet() {
		return ""
	}
	return " " + d.String()
}

// DeleteConstraintSQL renders ALTER TABLE ... DROP CONSTRAINT.
func (e *Editor) DeleteConstraintSQL(table *ddl.Table, quotedName string) *ddl.Statement {
	return ddl.NewStatement(deleteConstraintTemplate, map[string]any{
		"table": table,
		"name":  quotedName,
	})
}

// Table builds the quoted table reference for m.
func (e *Editor) Table(m *schema.Model) *ddl.Table {
	return ddl.NewTable(m.Schema, m.Table, e.QuoteName)
}

// Compiler returns the expression compiler using PostgreSQL identifier quoting.
func (e *Editor) Compiler() expr.Compiler {
	return e.compiler
}
