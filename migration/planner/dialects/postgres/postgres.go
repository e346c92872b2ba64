package postgres

import (
	"fmt"

	"github.com/stokaro/pgconstraints/core/ddl"
	"github.com/stokaro/pgconstraints/core/schema"
	editor "github.com/stokaro/pgconstraints/core/schema/postgres"
	"github.com/stokaro/pgconstraints/migration/schemadiff/types"
)

const (
	// DialectName is the PostgreSQL dialect identifier
	DialectName = editor.DialectName
)

// Planner implements PostgreSQL-specific migration planning functionality.
//
// The Planner converts a constraint diff into executable statements through a
// schema editor. Neither exclusion constraints nor constraint triggers can be
// altered in place, so a modified constraint is dropped and recreated.
//
// # Usage Example
//
//	planner := postgres.New()
//	diff := schemadiff.Compare(current, desired)
//	statements, err := planner.GenerateMigration(diff)
//
// # Thread Safety
//
// The Planner is stateless and safe for concurrent use across multiple goroutines.
type Planner struct {
	editor schema.Editor
}

// New creates a planner using the PostgreSQL schema editor.
func New() *Planner {
	return NewWithEditor(editor.New())
}

// NewWithEditor creates a planner rendering through e.
func NewWithEditor(e schema.Editor) *Planner {
	return &Planner{editor: e}
}

func (p *Planner) removeConstraints(result []*ddl.Statement, diff *types.ConstraintDiff) []*ddl.Statement {
	for _, ref := range diff.Removed {
		result = append(result, ref.Constraint.RemoveSQL(ref.Table, p.editor))
	}
	return result
}

func (p *Planner) recreateModifiedConstraints(result []*ddl.Statement, diff *types.ConstraintDiff) ([]*ddl.Statement, error) {
	for _, change := range diff.Modified {
		result = append(result, change.Old.Constraint.RemoveSQL(change.Old.Table, p.editor))
		stmt, err := change.New.Constraint.CreateSQL(change.New.Table, p.editor)
		if err != nil {
			return nil, fmt.Errorf("constraint %s: %w", change.Key(), err)
		}
		result = append(result, stmt)
	}
	return result, nil
}

func (p *Planner) addNewConstraints(result []*ddl.Statement, diff *types.ConstraintDiff) ([]*ddl.Statement, error) {
	for _, ref := range diff.Added {
		stmt, err := ref.Constraint.CreateSQL(ref.Table, p.editor)
		if err != nil {
			return nil, fmt.Errorf("constraint %s: %w", ref.Key(), err)
		}
		result = append(result, stmt)
	}
	return result, nil
}

// GenerateMigration returns the statements applying diff, in execution order:
//
//  1. Removed constraints are dropped (frees names reused by additions)
//  2. Modified constraints are dropped and recreated
//  3. Added constraints are created
//
// No statement is returned when any constraint fails to compile.
func (p *Planner) GenerateMigration(diff *types.ConstraintDiff) ([]*ddl.Statement, error) {
	var result []*ddl.Statement

	result = p.removeConstraints(result, diff)

	result, err := p.recreateModifiedConstraints(result, diff)
	if err != nil {
		return nil, err
	}

	result, err = p.addNewConstraints(result, diff)
	if err != nil {
		return nil, err
	}

	return result, nil
}
