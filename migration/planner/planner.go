// Package planner turns constraint diffs into ordered DDL statements for a
// database dialect.
package planner

import (
	"fmt"

	"github.com/stokaro/pgconstraints/core/ddl"
	"github.com/stokaro/pgconstraints/core/platform"
	"github.com/stokaro/pgconstraints/migration/planner/dialects/postgres"
	"github.com/stokaro/pgconstraints/migration/schemadiff/types"
)

// Planner generates the statements applying a diff.
type Planner interface {
	GenerateMigration(diff *types.ConstraintDiff) ([]*ddl.Statement, error)
}

// GetPlanner returns the planner for a dialect.
func GetPlanner(dialect string) (Planner, error) {
	switch platform.NormalizeDialect(dialect) {
	case platform.Postgres:
		return postgres.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", platform.ErrUnsupportedDialect, dialect)
}

// GenerateSchemaDiffSQLStatements renders the statements applying diff as
// SQL text, in execution order.
func GenerateSchemaDiffSQLStatements(diff *types.ConstraintDiff, dialect string) ([]string, error) {
	p, err := GetPlanner(dialect)
	if err != nil {
		return nil, err
	}
	statements, err := p.GenerateMigration(diff)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(statements))
	for i, stmt := range statements {
		out[i] = stmt.String()
	}
	return out, nil
}
