// Package schema defines the schema-editing contract constraint builders
// depend on: identifier and literal quoting, deferrability clauses, the
// generic constraint drop statement and access to the expression compiler.
package schema

import (
	"github.com/stokaro/pgconstraints/core/ddl"
	"github.com/stokaro/pgconstraints/core/expr"
)

// Editor renders dialect-specific fragments for constraint DDL.
//
// Implementations must be safe for concurrent use; the PostgreSQL editor is
// stateless.
type Editor interface {
	// QuoteName quotes an identifier.
	QuoteName(name string) string
	// QuoteValue renders a Go value as a literal, escaping every special
	// character of the dialect.
	QuoteValue(v any) (string, error)
	// DeferrableSQL renders the deferrability clause with a leading space, or
	// the empty string when d is unset.
	DeferrableSQL(d ddl.Deferrable) string
	// DeleteConstraintSQL is the generic ALTER TABLE ... DROP CONSTRAINT
	// statement, the same one used to drop CHECK constraints.
	DeleteConstraintSQL(table *ddl.Table, quotedName string) *ddl.Statement
	// Table builds the table reference for a model.
	Table(m *Model) *ddl.Table
	// Compiler returns the expression compiler bound to this dialect.
	Compiler() expr.Compiler
}

// Model describes the table a constraint is attached to. It is supplied per
// call and never stored on constraints.
type Model struct {
	Schema string `yaml:"schema,omitempty" json:"schema,omitempty"`
	Table  string `yaml:"table" json:"table"`
	// Columns optionally lists the table columns; when present, expressions
	// referring to other columns fail to compile.
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`
}

// NewModel creates a model for a table in the default schema.
func NewModel(table string, columns ...string) *Model {
	return &Model{Table: table, Columns: columns}
}

// Query returns the resolution context for expressions on this table.
func (m *Model) Query() *expr.Query {
	return &expr.Query{Table: m.Table, Columns: m.Columns}
}

// QualifiedName returns schema.table, or the bare table name.
func (m *Model) QualifiedName() string {
	if m.Schema == "" {
		return m.Table
	}
	return m.Schema + "." + m.Table
}
