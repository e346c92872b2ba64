// Package generator writes versioned up and down migration scripts for the
// constraint changes between the migrated state and the desired definitions.
package generator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stokaro/pgconstraints/config"
	"github.com/stokaro/pgconstraints/core/platform"
	"github.com/stokaro/pgconstraints/migration/history"
	"github.com/stokaro/pgconstraints/migration/migrator"
	"github.com/stokaro/pgconstraints/migration/planner"
	"github.com/stokaro/pgconstraints/migration/schemadiff"
	"github.com/stokaro/pgconstraints/migration/schemadiff/types"
)

// GenerateMigrationOptions contains options for migration generation
type GenerateMigrationOptions struct {
	// DefinitionsFile is the YAML snapshot describing the desired constraints
	DefinitionsFile string
	// StateFile is the YAML snapshot of the constraints already migrated. A
	// missing file means nothing has been migrated yet; it is rewritten after
	// the migration files are created.
	StateFile string
	// MigrationName is the name for the migration (optional, defaults to "migration")
	MigrationName string
	// OutputDir is the directory where migration files will be saved
	OutputDir string
	// Dialect selects the planner (optional, defaults to postgres)
	Dialect string
	// CompareOptions controls which constraints are ignored (optional)
	CompareOptions *config.CompareOptions
}

// GenerateEmptyMigrationOptions contains options for empty migration generation
type GenerateEmptyMigrationOptions struct {
	// MigrationName is the name for the migration (optional, defaults to "migration")
	MigrationName string
	// OutputDir is the directory where migration files will be saved
	OutputDir string
}

// MigrationFiles represents the generated migration files
type MigrationFiles struct {
	UpFile   string   // Path to the up migration file
	DownFile string   // Path to the down migration file
	Version  int      // Migration version (timestamp)
	Changes  []string // One line per constraint change, see types.ConstraintDiff.Summary
}

// Generator creates migration files.
type Generator struct {
	logger *slog.Logger
	now    func() time.Time
}

// New creates a generator logging to the default logger.
func New() *Generator {
	return &Generator{
		logger: slog.Default(),
		now:    time.Now,
	}
}

// WithLogger sets the logger for the generator
func (g *Generator) WithLogger(l *slog.Logger) *Generator {
	tmp := *g
	tmp.logger = l
	return &tmp
}

// GenerateMigration generates migration files with a default generator.
func GenerateMigration(opts GenerateMigrationOptions) (*MigrationFiles, error) {
	return New().GenerateMigration(opts)
}

// GenerateEmptyMigration generates empty migration files with a default generator.
func GenerateEmptyMigration(opts GenerateEmptyMigrationOptions) (*MigrationFiles, error) {
	return New().GenerateEmptyMigration(opts)
}

// GenerateMigration compares the migrated state with the desired definitions
// and writes up and down migration files for the difference. It returns nil
// files and a nil error when there is nothing to migrate.
func (g *Generator) GenerateMigration(opts GenerateMigrationOptions) (*MigrationFiles, error) {
	if opts.MigrationName == "" {
		opts.MigrationName = "migration"
	}
	if opts.Dialect == "" {
		opts.Dialect = platform.Postgres
	}

	// 1. Load the desired constraints
	data, err := os.ReadFile(opts.DefinitionsFile)
	if err != nil {
		return nil, fmt.Errorf("error reading constraint definitions: %w", err)
	}
	desired, err := history.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing constraint definitions %s: %w", opts.DefinitionsFile, err)
	}

	// 2. Load the migrated state
	current, err := history.Load(opts.StateFile)
	if err != nil {
		return nil, fmt.Errorf("error loading migration state: %w", err)
	}

	// 3. Calculate the diff between desired and current constraints
	diff := schemadiff.CompareWithOptions(current, desired, opts.CompareOptions)
	if !diff.HasChanges() {
		g.logger.Debug("No constraint changes detected", "definitions", opts.DefinitionsFile)
		return nil, nil
	}

	// 4. Generate up and down SQL
	upSQL, err := g.generateMigrationSQL(diff, opts.Dialect, "UP")
	if err != nil {
		return nil, fmt.Errorf("error generating up migration SQL: %w", err)
	}
	downSQL, err := g.generateMigrationSQL(diff.Reverse(), opts.Dialect, "DOWN")
	if err != nil {
		return nil, fmt.Errorf("error generating down migration SQL: %w", err)
	}

	// 5. Create migration files
	version := migrator.GetNextMigrationVersion()
	g.logger.Debug("Generated migration version", "version", version)

	files, err := createMigrationFiles(opts.OutputDir, version, opts.MigrationName, upSQL, downSQL)
	if err != nil {
		return nil, fmt.Errorf("error creating migration files: %w", err)
	}
	files.Changes = diff.Summary()

	// 6. Record the desired constraints as migrated
	if err := history.Save(opts.StateFile, desired); err != nil {
		return nil, fmt.Errorf("error saving migration state: %w", err)
	}

	g.logger.Info("Generated migration", "version", files.Version, "up", files.UpFile, "down", files.DownFile, "changes", len(files.Changes))
	return files, nil
}

// GenerateEmptyMigration writes a pair of migration files containing only
// the header, for changes written by hand.
func (g *Generator) GenerateEmptyMigration(opts GenerateEmptyMigrationOptions) (*MigrationFiles, error) {
	if opts.MigrationName == "" {
		opts.MigrationName = "migration"
	}
	version := migrator.GetNextMigrationVersion()

	upSQL := g.header("Empty migration", "UP") + "-- Add your SQL here\n"
	downSQL := g.header("Empty migration rollback", "DOWN") + "-- Add your rollback SQL here\n"

	files, err := createMigrationFiles(opts.OutputDir, version, opts.MigrationName, upSQL, downSQL)
	if err != nil {
		return nil, fmt.Errorf("error creating migration files: %w", err)
	}
	g.logger.Info("Generated empty migration", "version", files.Version, "up", files.UpFile, "down", files.DownFile)
	return files, nil
}

func (g *Generator) header(title, direction string) string {
	return fmt.Sprintf("-- %s\n-- Generated on: %s\n-- Direction: %s\n\n",
		title, g.now().Format(time.RFC3339), direction)
}

// generateMigrationSQL renders the statements applying diff, preceded by a
// header and the list of changes.
func (g *Generator) generateMigrationSQL(diff *types.ConstraintDiff, dialect, direction string) (string, error) {
	statements, err := planner.GenerateSchemaDiffSQLStatements(diff, dialect)
	if err != nil {
		return "", err
	}

	title := "Migration generated from constraint differences"
	if direction == "DOWN" {
		title = "Migration rollback"
	}

	var sb strings.Builder
	sb.WriteString(g.header(title, direction))
	for _, line := range diff.Summary() {
		sb.WriteString("-- " + line + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Join(statements, ";\n\n"))
	sb.WriteString(";\n")
	return sb.String(), nil
}

// createMigrationFiles creates the up and down migration files. The version
// is bumped until no file in outputDir uses it.
func createMigrationFiles(outputDir string, version int, migrationName, upSQL, downSQL string) (*MigrationFiles, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	for {
		existing, err := filepath.Glob(filepath.Join(outputDir, fmt.Sprintf("%010d_*", version)))
		if err != nil {
			return nil, fmt.Errorf("failed to list migration files: %w", err)
		}
		if len(existing) == 0 {
			break
		}
		version++
	}

	upFilePath := filepath.Join(outputDir, migrator.GenerateMigrationFileName(version, migrationName, migrator.DirectionUp))
	downFilePath := filepath.Join(outputDir, migrator.GenerateMigrationFileName(version, migrationName, migrator.DirectionDown))

	if err := os.WriteFile(upFilePath, []byte(upSQL), 0644); err != nil { //nolint:gosec // 0644 is fine
		return nil, fmt.Errorf("failed to write up migration file: %w", err)
	}
	if err := os.WriteFile(downFilePath, []byte(downSQL), 0644); err != nil { //nolint:gosec // 0644 is fine
		return nil, fmt.Errorf("failed to write down migration file: %w", err)
	}

	return &MigrationFiles{
		UpFile:   upFilePath,
		DownFile: downFilePath,
		Version:  version,
	}, nil
}
