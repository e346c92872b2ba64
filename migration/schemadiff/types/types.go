package types

import (
	"fmt"
	"sort"

	"github.com/stokaro/pgconstraints/core/constraints"
	"github.com/stokaro/pgconstraints/core/schema"
)

// ConstraintDiff represents the differences between two constraint snapshots.
//
// The diff is organised by the action a migration must take:
//   - Added: constraints present only in the desired snapshot
//   - Removed: constraints present only in the current snapshot
//   - Modified: constraints present in both under the same name but not equal
//
// # Example Usage
//
//	diff := schemadiff.Compare(current, desired)
//	if diff.HasChanges() {
//		statements, err := planner.GenerateSchemaDiffSQLStatements(diff, "postgres")
//		// write statements to a migration file...
//	}
type ConstraintDiff struct {
	// Added contains constraints that exist in the desired snapshot
	// but not in the current one
	Added []ConstraintRef `json:"added"`

	// Removed contains constraints that exist in the current snapshot
	// but not in the desired one
	Removed []ConstraintRef `json:"removed"`

	// Modified contains constraints whose definition changed. PostgreSQL has
	// no ALTER form for either kind, so they are dropped and recreated.
	Modified []ConstraintChange `json:"modified"`
}

// ConstraintRef is a constraint together with the table it belongs to.
type ConstraintRef struct {
	Table      *schema.Model          `json:"table"`
	Constraint constraints.Constraint `json:"-"`
}

// Key returns "table.name" with the table schema-qualified when set.
func (r ConstraintRef) Key() string {
	return r.Table.QualifiedName() + "." + r.Constraint.Name()
}

// ConstraintChange is a constraint whose definition differs between
// snapshots. Old and New carry the same name.
type ConstraintChange struct {
	// Old is the table and constraint as currently recorded
	Old ConstraintRef `json:"old"`

	// New is the table and constraint as desired
	New ConstraintRef `json:"new"`
}

// Key returns the key of the desired constraint.
func (c ConstraintChange) Key() string {
	return c.New.Key()
}

// HasChanges returns true if the diff contains any change requiring a migration.
func (d *ConstraintDiff) HasChanges() bool {
	return len(d.Added) > 0 ||
		len(d.Removed) > 0 ||
		len(d.Modified) > 0
}

// Reverse returns the diff that undoes d. It is used to generate down
// migrations: additions become removals, removals become additions and every
// modification swaps its old and new definitions.
func (d *ConstraintDiff) Reverse() *ConstraintDiff {
	reversed := &ConstraintDiff{
		Added:    append([]ConstraintRef(nil), d.Removed...),
		Removed:  append([]ConstraintRef(nil), d.Added...),
		Modified: make([]ConstraintChange, len(d.Modified)),
	}
	for i, change := range d.Modified {
		reversed.Modified[i] = ConstraintChange{Old: change.New, New: change.Old}
	}
	return reversed
}

// Sort orders every category by table and constraint name so that
// generated migrations are deterministic.
func (d *ConstraintDiff) Sort() {
	sort.SliceStable(d.Added, func(i, j int) bool { return d.Added[i].Key() < d.Added[j].Key() })
	sort.SliceStable(d.Removed, func(i, j int) bool { return d.Removed[i].Key() < d.Removed[j].Key() })
	sort.SliceStable(d.Modified, func(i, j int) bool { return d.Modified[i].Key() < d.Modified[j].Key() })
}

// Summary returns one line per change, prefixed with + (added), - (removed)
// or ~ (modified).
//
// Example output:
//
//	+ events.no_overlap
//	~ records.audit_trigger
func (d *ConstraintDiff) Summary() []string {
	lines := make([]string, 0, len(d.Added)+len(d.Removed)+len(d.Modified))
	for _, r := range d.Removed {
		lines = append(lines, fmt.Sprintf("- %s", r.Key()))
	}
	for _, c := range d.Modified {
		lines = append(lines, fmt.Sprintf("~ %s", c.Key()))
	}
	for _, r := range d.Added {
		lines = append(lines, fmt.Sprintf("+ %s", r.Key()))
	}
	return lines
}

// DriftReport lists the differences between the desired constraints and the
// ones installed in a live database. Entries are "table.name" keys.
type DriftReport struct {
	// Missing constraints are desired but absent from the database
	Missing []string `json:"missing"`

	// Unexpected constraints exist in the database but are not desired
	Unexpected []string `json:"unexpected"`

	// Mismatched constraints exist on both sides with a different kind or
	// index method
	Mismatched []string `json:"mismatched"`
}

// HasDrift returns true if the database does not match the desired constraints.
func (r *DriftReport) HasDrift() bool {
	return len(r.Missing) > 0 ||
		len(r.Unexpected) > 0 ||
		len(r.Mismatched) > 0
}

// Sort orders every category by key.
func (r *DriftReport) Sort() {
	sort.Strings(r.Missing)
	sort.Strings(r.Unexpected)
	sort.Strings(r.Mismatched)
}

// Summary returns one line per difference, prefixed with + (missing from the
// database), - (unexpected in the database) or ~ (mismatched).
func (r *DriftReport) Summary() []string {
	lines := make([]string, 0, len(r.Missing)+len(r.Unexpected)+len(r.Mismatched))
	for _, k := range r.Unexpected {
		lines = append(lines, "- "+k)
	}
	for _, k := range r.Mismatched {
		lines = append(lines, "~ "+k)
	}
	for _, k := range r.Missing {
		lines = append(lines, "+ "+k)
	}
	return lines
}
