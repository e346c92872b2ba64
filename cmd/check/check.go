// Package check implements the check command comparing the constraint
// definitions with a live database.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/pgconstraints/cmd/internal/cliutil"
	"github.com/stokaro/pgconstraints/config"
	"github.com/stokaro/pgconstraints/dbschema"
	dbtypes "github.com/stokaro/pgconstraints/dbschema/types"
	"github.com/stokaro/pgconstraints/migration/history"
	"github.com/stokaro/pgconstraints/migration/schemadiff"
)

const (
	databaseURLFlag = "database-url"
	dbSchemaFlag    = "db-schema"
	definitionsFlag = "definitions"
)

// SchemaReader reads the constraints of one database schema.
type SchemaReader func(ctx context.Context, dbURL, schema string) (*dbtypes.DBSchema, error)

// ErrDrift is returned when the database does not match the definitions.
var ErrDrift = errors.New("database constraints differ from the definitions")

var errDatabaseURLRequired = errors.New("database URL is required (use --database-url flag or PGCONSTRAINTS_DATABASE_URL)")

// NewCheckCommand creates the check command reading the database with the
// pgx driver.
func NewCheckCommand(settings func() *config.Settings) *cobra.Command {
	return NewCheckCommandWithReader(settings, ReadDatabase)
}

// NewCheckCommandWithReader creates the check command with a custom schema
// reader.
func NewCheckCommandWithReader(settings func() *config.Settings, read SchemaReader) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		databaseURLFlag: &cobraflags.StringFlag{
			Name:  databaseURLFlag,
			Value: "",
			Usage: "PostgreSQL connection URL (defaults to the configured database URL)",
		},
		dbSchemaFlag: &cobraflags.StringFlag{
			Name:  dbSchemaFlag,
			Value: "",
			Usage: "Database schema to read (defaults to the configured schema)",
		},
		definitionsFlag: &cobraflags.StringFlag{
			Name:  definitionsFlag,
			Value: "",
			Usage: "YAML file with the desired constraint definitions",
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the definitions with the constraints installed in a database",
		Long: `Read the exclusion constraints and constraint triggers of a database schema
and compare them with the definitions file. The command fails when a
constraint is missing, unexpected or of a different kind.

Examples:
  pgconstraints check --database-url postgres://localhost/app
  PGCONSTRAINTS_DATABASE_URL=postgres://localhost/app pgconstraints check --db-schema booking`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := settings()
			return run(cmd, read, s,
				cliutil.String(cmd, databaseURLFlag, s.DatabaseURL),
				cliutil.String(cmd, dbSchemaFlag, s.DatabaseSchema),
				cliutil.String(cmd, definitionsFlag, s.Definitions),
			)
		},
	}

	cobraflags.RegisterMap(checkCmd, flags)
	return checkCmd
}

// ReadDatabase connects to dbURL and reads the constraints of schema.
func ReadDatabase(ctx context.Context, dbURL, schema string) (*dbtypes.DBSchema, error) {
	conn, err := dbschema.ConnectToDatabase(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	info := conn.Info()
	slog.Debug("Connected to database", "version", info.Version, "schema", info.Schema)
	return conn.Reader(schema).ReadSchema(ctx)
}

func run(cmd *cobra.Command, read SchemaReader, s *config.Settings, dbURL, schema, definitions string) error {
	if dbURL == "" {
		return errDatabaseURLRequired
	}

	data, err := os.ReadFile(definitions)
	if err != nil {
		return fmt.Errorf("error reading constraint definitions: %w", err)
	}
	desired, err := history.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("error parsing constraint definitions %s: %w", definitions, err)
	}

	live, err := read(cmd.Context(), dbURL, schema)
	if err != nil {
		return fmt.Errorf("error reading database constraints: %w", err)
	}

	report := schemadiff.CompareWithDatabase(desired, live, s.CompareOptions())
	out := cmd.OutOrStdout()
	if !report.HasDrift() {
		fmt.Fprintf(out, "Schema %s matches %s.\n", live.Schema, definitions)
		return nil
	}

	fmt.Fprintf(out, "Schema %s differs from %s:\n", live.Schema, definitions)
	for _, line := range report.Summary() {
		fmt.Fprintf(out, "  %s\n", line)
	}
	return ErrDrift
}
