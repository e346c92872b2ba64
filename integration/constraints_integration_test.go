//go:build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-extras/go-kit/must"

	"github.com/stokaro/pgconstraints/core/constraints"
	"github.com/stokaro/pgconstraints/core/ddl"
	"github.com/stokaro/pgconstraints/core/expr"
	"github.com/stokaro/pgconstraints/core/schema"
	"github.com/stokaro/pgconstraints/dbschema"
	"github.com/stokaro/pgconstraints/migration/generator"
	"github.com/stokaro/pgconstraints/migration/history"
	"github.com/stokaro/pgconstraints/migration/migrator"
	"github.com/stokaro/pgconstraints/migration/planner"
	"github.com/stokaro/pgconstraints/migration/schemadiff"
)

const testSchema = "pgconstraints_it"

func connect(c *qt.C) *dbschema.DatabaseConnection {
	c.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		c.Skip("Skipping PostgreSQL integration test: POSTGRES_TEST_DSN environment variable not set")
	}

	ctx := context.Background()
	conn, err := dbschema.ConnectToDatabase(ctx, dsn)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { conn.Close() })

	setup := []string{
		"DROP SCHEMA IF EXISTS " + testSchema + " CASCADE",
		"CREATE SCHEMA " + testSchema,
		"CREATE TABLE " + testSchema + ".events (id serial PRIMARY KEY, during tstzrange NOT NULL, status text NOT NULL)",
		"CREATE TABLE " + testSchema + ".records (id serial PRIMARY KEY, status text NOT NULL)",
		"CREATE FUNCTION " + testSchema + ".audit_fn() RETURNS trigger LANGUAGE plpgsql AS $$ BEGIN RETURN NULL; END $$",
	}
	for _, stmt := range setup {
		_, err := conn.ExecContext(ctx, stmt)
		c.Assert(err, qt.IsNil, qt.Commentf("statement: %s", stmt))
	}
	c.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), "DROP SCHEMA IF EXISTS "+testSchema+" CASCADE")
	})
	return conn
}

func desiredSnapshot() *history.Snapshot {
	noOverlap := must.Must(constraints.NewExclusionConstraint("no_overlap",
		[]constraints.ExclusionExpression{constraints.Exclude("during", "&&")},
		constraints.WithCondition(expr.Where("status", expr.Exact, "active")),
		constraints.WithDeferrable(ddl.DeferrableDeferred),
	))
	audit := must.Must(constraints.NewConstraintTrigger("audit_trigger",
		[]constraints.TriggerEvent{constraints.Update},
		expr.NewFunc(testSchema+".audit_fn"),
		constraints.WithTriggerCondition(expr.Where(expr.New("status"), expr.NotEqual, expr.Old("status"))),
	))
	return &history.Snapshot{Tables: []*history.Table{
		{Model: &schema.Model{Schema: testSchema, Table: "events"}, Constraints: []constraints.Constraint{noOverlap}},
		{Model: &schema.Model{Schema: testSchema, Table: "records"}, Constraints: []constraints.Constraint{audit}},
	}}
}

func apply(c *qt.C, conn *dbschema.DatabaseConnection, statements []string) {
	c.Helper()
	for _, stmt := range statements {
		_, err := conn.ExecContext(context.Background(), stmt)
		c.Assert(err, qt.IsNil, qt.Commentf("statement: %s", stmt))
	}
}

func TestConstraints_ApplyAndReadBack(t *testing.T) {
	c := qt.New(t)
	conn := connect(c)
	ctx := context.Background()
	desired := desiredSnapshot()

	diff := schemadiff.Compare(nil, desired)
	up, err := planner.GenerateSchemaDiffSQLStatements(diff, "postgres")
	c.Assert(err, qt.IsNil)
	c.Assert(up, qt.HasLen, 2)
	apply(c, conn, up)

	live, err := conn.Reader(testSchema).ReadSchema(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(live.Schema, qt.Equals, testSchema)

	report := schemadiff.CompareWithDatabase(desired, live, nil)
	c.Assert(report.HasDrift(), qt.IsFalse, qt.Commentf("drift: %v", report.Summary()))

	excl, ok := live.Constraint("events", "no_overlap")
	c.Assert(ok, qt.IsTrue)
	c.Assert(excl.UsingMethod, qt.IsNotNil)
	c.Assert(*excl.UsingMethod, qt.Equals, "gist")
	c.Assert(excl.WhereCondition, qt.IsNotNil)
	c.Assert(*excl.WhereCondition, qt.Contains, "status = 'active'")

	trg, ok := live.Constraint("records", "audit_trigger")
	c.Assert(ok, qt.IsTrue)
	c.Assert(trg.Definition, qt.Contains, "CREATE CONSTRAINT TRIGGER audit_trigger AFTER UPDATE")

	down, err := planner.GenerateSchemaDiffSQLStatements(diff.Reverse(), "postgres")
	c.Assert(err, qt.IsNil)
	apply(c, conn, down)

	live, err = conn.Reader(testSchema).ReadSchema(ctx)
	c.Assert(err, qt.IsNil)
	report = schemadiff.CompareWithDatabase(desired, live, nil)
	c.Assert(report.Missing, qt.DeepEquals, []string{"events.no_overlap", "records.audit_trigger"})
	c.Assert(report.Unexpected, qt.HasLen, 0)
}

func TestConstraints_ExclusionRejectsOverlap(t *testing.T) {
	c := qt.New(t)
	conn := connect(c)
	ctx := context.Background()

	diff := schemadiff.Compare(nil, desiredSnapshot())
	up, err := planner.GenerateSchemaDiffSQLStatements(diff, "postgres")
	c.Assert(err, qt.IsNil)
	apply(c, conn, up)

	insert := "INSERT INTO " + testSchema + ".events (during, status) VALUES (tstzrange('2024-01-01', '2024-01-02'), $1)"
	_, err = conn.ExecContext(ctx, insert, "active")
	c.Assert(err, qt.IsNil)

	// Rows outside the condition never conflict.
	_, err = conn.ExecContext(ctx, insert, "cancelled")
	c.Assert(err, qt.IsNil)

	_, err = conn.ExecContext(ctx, insert, "active")
	c.Assert(err, qt.ErrorMatches, `(?s).*conflicting key value violates exclusion constraint "no_overlap".*`)
}

func TestConstraints_GeneratedMigrationsApply(t *testing.T) {
	c := qt.New(t)
	conn := connect(c)
	ctx := context.Background()
	desired := desiredSnapshot()

	dir := c.TempDir()
	definitions := filepath.Join(dir, "constraints.yaml")
	c.Assert(history.Save(definitions, desired), qt.IsNil)
	migrations := filepath.Join(dir, "migrations")

	files, err := generator.GenerateMigration(generator.GenerateMigrationOptions{
		DefinitionsFile: definitions,
		StateFile:       filepath.Join(dir, "state.yaml"),
		MigrationName:   "add_constraints",
		OutputDir:       migrations,
		Dialect:         "postgres",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(files, qt.IsNotNil)

	m, err := migrator.NewFSMigrator(conn.DB(), os.DirFS(migrations))
	c.Assert(err, qt.IsNil)
	m = m.WithTable(testSchema + ".versions")

	c.Assert(m.MigrateUp(ctx), qt.IsNil)
	version, err := m.GetCurrentVersion(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(version, qt.Equals, files.Version)

	live, err := conn.Reader(testSchema).ReadSchema(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(schemadiff.CompareWithDatabase(desired, live, nil).HasDrift(), qt.IsFalse)

	c.Assert(m.MigrateDown(ctx), qt.IsNil)
	live, err = conn.Reader(testSchema).ReadSchema(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(live.Constraints, qt.HasLen, 0)
}
