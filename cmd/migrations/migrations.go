// Package migrations implements the migrations command inspecting generated
// migration files and applying them to a database.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/pgconstraints/cmd/internal/cliutil"
	"github.com/stokaro/pgconstraints/config"
	"github.com/stokaro/pgconstraints/dbschema"
	"github.com/stokaro/pgconstraints/migration/migrator"
)

const (
	dirFlag         = "dir"
	directionFlag   = "direction"
	databaseURLFlag = "database-url"
	toFlag          = "to"
)

// Opener opens a verified database handle.
type Opener func(ctx context.Context, dbURL string) (*sql.DB, error)

var errDatabaseURLRequired = errors.New("database URL is required (use --database-url flag or PGCONSTRAINTS_DATABASE_URL)")

// NewMigrationsCommand creates the migrations command.
func NewMigrationsCommand(settings func() *config.Settings) *cobra.Command {
	return NewMigrationsCommandWithOpener(settings, Open)
}

// NewMigrationsCommandWithOpener creates the migrations command with a
// custom database opener.
func NewMigrationsCommandWithOpener(settings func() *config.Settings, open Opener) *cobra.Command {
	migrationsCmd := &cobra.Command{
		Use:   "migrations [list|show|status|up|down]",
		Short: "Inspect and apply generated migration files",
		Long: `Inspect generated migration files and apply them to a database.

Applied versions are recorded in the ` + migrator.DefaultTable + ` table.

Examples:
  pgconstraints migrations list
  pgconstraints migrations up --database-url postgres://localhost/app
  pgconstraints migrations down --to 0`,
	}

	migrationsCmd.AddCommand(newListCommand(settings))
	migrationsCmd.AddCommand(newShowCommand(settings))
	migrationsCmd.AddCommand(newStatusCommand(settings, open))
	migrationsCmd.AddCommand(newApplyCommand(settings, open, migrator.DirectionUp))
	migrationsCmd.AddCommand(newApplyCommand(settings, open, migrator.DirectionDown))
	return migrationsCmd
}

// Open connects with the pgx driver and returns the verified handle.
func Open(ctx context.Context, dbURL string) (*sql.DB, error) {
	conn, err := dbschema.ConnectToDatabase(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	info := conn.Info()
	slog.Debug("Connected to database", "version", info.Version, "schema", info.Schema)
	return conn.DB(), nil
}

func dirFlags() map[string]cobraflags.Flag {
	return map[string]cobraflags.Flag{
		dirFlag: &cobraflags.StringFlag{
			Name:  dirFlag,
			Value: "",
			Usage: "Migrations directory (defaults to the configured migrations directory)",
		},
	}
}

func newListCommand(settings func() *config.Settings) *cobra.Command {
	flags := dirFlags()
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List migrations in version order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, err := load(cmd, settings())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range provider.Migrations() {
				fmt.Fprintf(out, "%010d  %s\n", m.Version, m.Description)
			}
			return nil
		},
	}
	cobraflags.RegisterMap(listCmd, flags)
	return listCmd
}

func newShowCommand(settings func() *config.Settings) *cobra.Command {
	flags := dirFlags()
	flags[directionFlag] = &cobraflags.StringFlag{
		Name:  directionFlag,
		Value: migrator.DirectionUp,
		Usage: "Script to print: up or down",
	}

	showCmd := &cobra.Command{
		Use:   "show VERSION",
		Short: "Print the SQL of a migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid migration version %q", args[0])
			}
			provider, err := load(cmd, settings())
			if err != nil {
				return err
			}
			for _, m := range provider.Migrations() {
				if m.Version != version {
					continue
				}
				sql, err := m.SQL(cliutil.String(cmd, directionFlag, migrator.DirectionUp))
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), sql)
				return nil
			}
			return fmt.Errorf("migration %s not found", args[0])
		},
	}
	cobraflags.RegisterMap(showCmd, flags)
	return showCmd
}

func dbFlags() map[string]cobraflags.Flag {
	flags := dirFlags()
	flags[databaseURLFlag] = &cobraflags.StringFlag{
		Name:  databaseURLFlag,
		Value: "",
		Usage: "PostgreSQL connection URL (defaults to the configured database URL)",
	}
	return flags
}

func newStatusCommand(settings func() *config.Settings, open Opener) *cobra.Command {
	flags := dbFlags()
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, closeDB, err := newMigrator(cmd, settings(), open)
			if err != nil {
				return err
			}
			defer closeDB()

			status, err := m.GetMigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			pending := "none"
			if status.HasPendingChanges {
				versions := make([]string, len(status.PendingMigrations))
				for i, v := range status.PendingMigrations {
					versions[i] = strconv.Itoa(v)
				}
				pending = strings.Join(versions, ", ")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Current version: %d\n", status.CurrentVersion)
			fmt.Fprintf(out, "Total migrations: %d\n", status.TotalMigrations)
			fmt.Fprintf(out, "Pending migrations: %s\n", pending)
			return nil
		},
	}
	cobraflags.RegisterMap(statusCmd, flags)
	return statusCmd
}

func newApplyCommand(settings func() *config.Settings, open Opener, direction string) *cobra.Command {
	flags := dbFlags()
	flags[toFlag] = &cobraflags.StringFlag{
		Name:  toFlag,
		Value: "",
		Usage: "Target version (defaults to the latest version for up and the previous version for down)",
	}

	short := "Apply pending migrations"
	if direction == migrator.DirectionDown {
		short = "Revert the latest migration"
	}

	applyCmd := &cobra.Command{
		Use:   direction,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := -1
			if to := cliutil.String(cmd, toFlag, ""); to != "" {
				v, err := strconv.Atoi(to)
				if err != nil || v < 0 {
					return fmt.Errorf("invalid migration version %q", to)
				}
				target = v
			}

			m, closeDB, err := newMigrator(cmd, settings(), open)
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			switch {
			case target >= 0:
				err = m.MigrateTo(ctx, target)
			case direction == migrator.DirectionUp:
				err = m.MigrateUp(ctx)
			default:
				err = m.MigrateDown(ctx)
			}
			if err != nil {
				return err
			}

			version, err := m.GetCurrentVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d\n", version)
			return nil
		},
	}
	cobraflags.RegisterMap(applyCmd, flags)
	return applyCmd
}

func newMigrator(cmd *cobra.Command, s *config.Settings, open Opener) (*migrator.Migrator, func(), error) {
	dbURL := cliutil.String(cmd, databaseURLFlag, s.DatabaseURL)
	if dbURL == "" {
		return nil, nil, errDatabaseURLRequired
	}
	provider, err := load(cmd, s)
	if err != nil {
		return nil, nil, err
	}
	db, err := open(cmd.Context(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return migrator.NewMigrator(db, provider), func() { db.Close() }, nil
}

func load(cmd *cobra.Command, s *config.Settings) (*migrator.FSMigrationProvider, error) {
	dir := cliutil.String(cmd, dirFlag, s.MigrationsDir)
	provider, err := migrator.NewFSMigrationProvider(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("error loading migrations from %s: %w", dir, err)
	}
	return provider, nil
}
