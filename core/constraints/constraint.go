// Package constraints builds PostgreSQL exclusion constraints and constraint
// triggers.
//
// Both kinds are immutable values validated at construction. They render
// their CREATE and DROP statements through a schema.Editor, which supplies
// identifier quoting, literal quoting and the expression compiler. Literal
// arguments are always inlined because neither kind of DDL accepts bind
// parameters.
package constraints

import (
	"github.com/stokaro/pgconstraints/core/ddl"
	"github.com/stokaro/pgconstraints/core/expr"
	"github.com/stokaro/pgconstraints/core/schema"
)

// Constraint is implemented by every constraint kind of this package.
type Constraint interface {
	// Name returns the constraint name, unique within its table.
	Name() string
	// CreateSQL renders the statement adding the constraint to the table.
	CreateSQL(m *schema.Model, e schema.Editor) (*ddl.Statement, error)
	// RemoveSQL renders the statement dropping the constraint.
	RemoveSQL(m *schema.Model, e schema.Editor) *ddl.Statement
	// Deconstruct returns the arguments that rebuild an equal constraint.
	Deconstruct() Deconstruction
	// Equal reports structural equality.
	Equal(other Constraint) bool
	String() string
}

var (
	_ Constraint = (*ExclusionConstraint)(nil)
	_ Constraint = (*ConstraintTrigger)(nil)
)

// compileInline compiles x against q and inlines its arguments as literals.
// Compilation errors are returned unchanged.
func compileInline(e schema.Editor, x expr.Expression, q *expr.Query) (string, error) {
	sql, args, err := e.Compiler().Compile(x, q)
	if err != nil {
		return "", err
	}
	return expr.Inline(sql, args, e.QuoteValue)
}

func equalCondition(a, b *expr.Q) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// validateCondition rejects condition trees that can never compile.
func validateCondition(name string, q *expr.Q) error {
	if q != nil && len(q.Children) == 0 {
		return newValidationError(name, "condition must not be empty")
	}
	return nil
}
