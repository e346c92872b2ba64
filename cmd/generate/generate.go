// Package generate implements the generate command writing migration files.
package generate

import (
	"errors"
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/pgconstraints/cmd/internal/cliutil"
	"github.com/stokaro/pgconstraints/config"
	"github.com/stokaro/pgconstraints/migration/generator"
)

// Migration generation flags
const (
	nameFlag        = "name"
	outputDirFlag   = "output-dir"
	definitionsFlag = "definitions"
	stateFlag       = "state"
	dialectFlag     = "dialect"
)

// NewGenerateCommand creates the generate command and its subcommands.
func NewGenerateCommand(settings func() *config.Settings) *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate [migration|empty]",
		Short: "Generate migration files for constraint changes",
		Long: `Generate up and down migration files.

Available subcommands:
  migration  - Generate a migration from the difference between the migrated state and the definitions
  empty      - Generate empty migration files for manual editing

Examples:
  pgconstraints generate migration --name add_room_overlap
  pgconstraints generate empty --name backfill_rooms`,
	}

	generateCmd.AddCommand(newMigrationCommand(settings))
	generateCmd.AddCommand(newEmptyCommand(settings))
	return generateCmd
}

// newMigrationCommand creates the migration subcommand generating a migration from the diff
func newMigrationCommand(settings func() *config.Settings) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		nameFlag: &cobraflags.StringFlag{
			Name:  nameFlag,
			Value: "",
			Usage: "Name for the migration (required)",
		},
		outputDirFlag: &cobraflags.StringFlag{
			Name:  outputDirFlag,
			Value: "",
			Usage: "Directory where migration files will be saved (defaults to the configured migrations directory)",
		},
		definitionsFlag: &cobraflags.StringFlag{
			Name:  definitionsFlag,
			Value: "",
			Usage: "YAML file with the desired constraint definitions",
		},
		stateFlag: &cobraflags.StringFlag{
			Name:  stateFlag,
			Value: "",
			Usage: "YAML file recording the constraints already migrated",
		},
		dialectFlag: &cobraflags.StringFlag{
			Name:  dialectFlag,
			Value: "",
			Usage: "Database dialect (postgres)",
		},
	}

	migrationCmd := &cobra.Command{
		Use:   "migration",
		Short: "Generate a migration for the constraint changes",
		Long: `Compare the migrated state with the constraint definitions and write up and
down migration files for the difference. The state file is updated to match
the definitions once the files are written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := settings()
			opts := generator.GenerateMigrationOptions{
				DefinitionsFile: cliutil.String(cmd, definitionsFlag, s.Definitions),
				StateFile:       cliutil.String(cmd, stateFlag, s.State),
				MigrationName:   cliutil.String(cmd, nameFlag, ""),
				OutputDir:       cliutil.String(cmd, outputDirFlag, s.MigrationsDir),
				Dialect:         cliutil.String(cmd, dialectFlag, s.Dialect),
				CompareOptions:  s.CompareOptions(),
			}
			return migrationCommand(cmd, opts)
		},
	}

	cobraflags.RegisterMap(migrationCmd, flags)
	return migrationCmd
}

// newEmptyCommand creates the empty subcommand for hand-written migrations
func newEmptyCommand(settings func() *config.Settings) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		nameFlag: &cobraflags.StringFlag{
			Name:  nameFlag,
			Value: "",
			Usage: "Name for the migration (required)",
		},
		outputDirFlag: &cobraflags.StringFlag{
			Name:  outputDirFlag,
			Value: "",
			Usage: "Directory where migration files will be saved (defaults to the configured migrations directory)",
		},
	}

	emptyCmd := &cobra.Command{
		Use:   "empty",
		Short: "Generate empty migration files for manual editing",
		Long: `Generate empty skeleton migration files with proper timestamps and naming conventions.

Use them for statements the definitions file cannot express, such as
backfilling rows before a new exclusion constraint is added.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := generator.GenerateEmptyMigrationOptions{
				MigrationName: cliutil.String(cmd, nameFlag, ""),
				OutputDir:     cliutil.String(cmd, outputDirFlag, settings().MigrationsDir),
			}
			return emptyCommand(cmd, opts)
		},
	}

	cobraflags.RegisterMap(emptyCmd, flags)
	return emptyCmd
}

var errNameRequired = errors.New("migration name is required (use --name flag)")

func migrationCommand(cmd *cobra.Command, opts generator.GenerateMigrationOptions) error {
	if opts.MigrationName == "" {
		return errNameRequired
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Generating migration: %s\n", opts.MigrationName)
	fmt.Fprintf(out, "Definitions: %s\n", opts.DefinitionsFile)
	fmt.Fprintf(out, "State: %s\n", opts.StateFile)
	fmt.Fprintln(out)

	files, err := generator.GenerateMigration(opts)
	if err != nil {
		return fmt.Errorf("error generating migration files: %w", err)
	}
	if files == nil {
		fmt.Fprintln(out, "No constraint changes detected.")
		return nil
	}

	fmt.Fprintln(out, "Changes:")
	for _, line := range files.Changes {
		fmt.Fprintf(out, "  %s\n", line)
	}
	printFiles(cmd, files)
	return nil
}

func emptyCommand(cmd *cobra.Command, opts generator.GenerateEmptyMigrationOptions) error {
	if opts.MigrationName == "" {
		return errNameRequired
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Generating empty migration: %s\n", opts.MigrationName)
	fmt.Fprintf(out, "Output directory: %s\n", opts.OutputDir)
	fmt.Fprintln(out)

	files, err := generator.GenerateEmptyMigration(opts)
	if err != nil {
		return fmt.Errorf("error generating migration files: %w", err)
	}

	printFiles(cmd, files)
	fmt.Fprintln(out, "You can now edit these files to add your custom SQL.")
	return nil
}

func printFiles(cmd *cobra.Command, files *generator.MigrationFiles) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Generated migration files:\n")
	fmt.Fprintf(out, "  UP:   %s\n", files.UpFile)
	fmt.Fprintf(out, "  DOWN: %s\n", files.DownFile)
	fmt.Fprintf(out, "  Version: %d\n", files.Version)
	fmt.Fprintln(out)
}
