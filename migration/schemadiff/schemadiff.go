package schemadiff

import (
	"log/slog"

	"github.com/stokaro/pgconstraints/config"
	"github.com/stokaro/pgconstraints/migration/history"
	difftypes "github.com/stokaro/pgconstraints/migration/schemadiff/types"
)

// Compare computes the changes that turn the current snapshot into the
// desired one using default options.
// This is a convenience function that uses default comparison options (ignores
// PostgreSQL's internal foreign key triggers).
// For custom configuration, use CompareWithOptions.
func Compare(current, desired *history.Snapshot) *difftypes.ConstraintDiff {
	return CompareWithOptions(current, desired, nil)
}

// CompareWithOptions computes the changes that turn the current snapshot into
// the desired one.
//
// Tables are matched by qualified name and constraints by name within their
// table. Constraints matching an ignore pattern are skipped on both sides.
//
// Parameters:
//   - current: Constraints already migrated (may be nil)
//   - desired: Constraints the database should end up with (may be nil)
//   - opts: Configuration options for comparison (can be nil for defaults)
//
// Example usage:
//
//	// Use default options
//	diff := schemadiff.CompareWithOptions(current, desired, nil)
//
//	// Leave legacy constraints alone
//	opts := config.WithAdditionalIgnoredConstraints("legacy_*")
//	diff := schemadiff.CompareWithOptions(current, desired, opts)
func CompareWithOptions(current, desired *history.Snapshot, opts *config.CompareOptions) *difftypes.ConstraintDiff {
	if opts == nil {
		opts = config.DefaultCompareOptions()
	}
	if current == nil {
		current = &history.Snapshot{}
	}
	if desired == nil {
		desired = &history.Snapshot{}
	}

	diff := &difftypes.ConstraintDiff{
		Added:    []difftypes.ConstraintRef{},
		Removed:  []difftypes.ConstraintRef{},
		Modified: []difftypes.ConstraintChange{},
	}

	for _, dt := range desired.Tables {
		table := dt.Model.QualifiedName()
		ct, _ := current.Table(table)
		for _, dc := range dt.Constraints {
			if opts.IsConstraintIgnored(table, dc.Name()) {
				slog.Debug("Skipping ignored constraint", "table", table, "constraint", dc.Name())
				continue
			}
			if ct == nil {
				diff.Added = append(diff.Added, difftypes.ConstraintRef{Table: dt.Model, Constraint: dc})
				continue
			}
			cc, ok := ct.Constraint(dc.Name())
			switch {
			case !ok:
				diff.Added = append(diff.Added, difftypes.ConstraintRef{Table: dt.Model, Constraint: dc})
			case !cc.Equal(dc):
				diff.Modified = append(diff.Modified, difftypes.ConstraintChange{
					Old: difftypes.ConstraintRef{Table: ct.Model, Constraint: cc},
					New: difftypes.ConstraintRef{Table: dt.Model, Constraint: dc},
				})
			}
		}
	}

	for _, ct := range current.Tables {
		table := ct.Model.QualifiedName()
		dt, _ := desired.Table(table)
		for _, cc := range ct.Constraints {
			if opts.IsConstraintIgnored(table, cc.Name()) {
				continue
			}
			if dt != nil {
				if _, ok := dt.Constraint(cc.Name()); ok {
					continue
				}
			}
			diff.Removed = append(diff.Removed, difftypes.ConstraintRef{Table: ct.Model, Constraint: cc})
		}
	}

	diff.Sort()
	return diff
}
