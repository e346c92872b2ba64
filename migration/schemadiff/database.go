package schemadiff

import (
	"log/slog"
	"strings"

	"github.com/stokaro/pgconstraints/config"
	"github.com/stokaro/pgconstraints/core/constraints"
	dbtypes "github.com/stokaro/pgconstraints/dbschema/types"
	"github.com/stokaro/pgconstraints/migration/history"
	difftypes "github.com/stokaro/pgconstraints/migration/schemadiff/types"
)

// CompareWithDatabase checks the constraints installed in a live database
// schema against the desired snapshot.
//
// Only desired tables without a schema, or with the schema that was read,
// take part. Constraints are matched by table and name; a constraint of the
// other kind, or an exclusion constraint backed by a different index method,
// is reported as mismatched. Internal triggers and constraints matching an
// ignore pattern are skipped on both sides.
//
// Example usage:
//
//	db, err := dbschema.ConnectToDatabase(ctx, url)
//	// handle err, defer db.Close()
//	live, err := db.Reader("public").ReadSchema(ctx)
//	// handle err
//	report := schemadiff.CompareWithDatabase(desired, live, nil)
//	if report.HasDrift() {
//		fmt.Println(strings.Join(report.Summary(), "\n"))
//	}
func CompareWithDatabase(desired *history.Snapshot, live *dbtypes.DBSchema, opts *config.CompareOptions) *difftypes.DriftReport {
	if opts == nil {
		opts = config.DefaultCompareOptions()
	}
	if desired == nil {
		desired = &history.Snapshot{}
	}
	if live == nil {
		live = &dbtypes.DBSchema{}
	}

	report := &difftypes.DriftReport{
		Missing:    []string{},
		Unexpected: []string{},
		Mismatched: []string{},
	}

	wanted := make(map[string]struct{})
	for _, dt := range desired.Tables {
		if dt.Model.Schema != "" && dt.Model.Schema != live.Schema {
			continue
		}
		table := dt.Model.Table
		for _, dc := range dt.Constraints {
			if isIgnored(opts, live.Schema, table, dc.Name()) {
				slog.Debug("Skipping ignored constraint", "table", table, "constraint", dc.Name())
				continue
			}
			key := table + "." + dc.Name()
			wanted[key] = struct{}{}

			lc, ok := live.Constraint(table, dc.Name())
			switch {
			case !ok:
				report.Missing = append(report.Missing, key)
			case !sameKind(dc, lc):
				report.Mismatched = append(report.Mismatched, key)
			}
		}
	}

	for table, names := range liveNames(live) {
		names = opts.FilterIgnoredConstraints(table, names)
		if live.Schema != "" {
			names = opts.FilterIgnoredConstraints(live.Schema+"."+table, names)
		}
		for _, name := range names {
			key := table + "." + name
			if _, ok := wanted[key]; !ok {
				report.Unexpected = append(report.Unexpected, key)
			}
		}
	}

	report.Sort()
	return report
}

func isIgnored(opts *config.CompareOptions, schemaName, table, name string) bool {
	if opts.IsConstraintIgnored(table, name) {
		return true
	}
	return schemaName != "" && opts.IsConstraintIgnored(schemaName+"."+table, name)
}

// liveNames groups the user-defined constraint names of live by table.
func liveNames(live *dbtypes.DBSchema) map[string][]string {
	names := make(map[string][]string)
	for _, lc := range live.Constraints {
		if lc.Internal {
			continue
		}
		names[lc.TableName] = append(names[lc.TableName], lc.Name)
	}
	return names
}

func sameKind(c constraints.Constraint, lc *dbtypes.DBConstraint) bool {
	switch t := c.(type) {
	case *constraints.ExclusionConstraint:
		if lc.Type != dbtypes.ConstraintTypeExclude {
			return false
		}
		if lc.UsingMethod == nil {
			return true
		}
		return strings.EqualFold(*lc.UsingMethod, string(t.IndexType()))
	case *constraints.ConstraintTrigger:
		return lc.Type == dbtypes.ConstraintTypeTrigger
	}
	return false
}
