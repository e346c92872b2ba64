package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DefaultTable records the applied migration versions.
const DefaultTable = "pgconstraints_migrations"

// ErrNoPreviousMigration is returned when rolling back with nothing applied.
var ErrNoPreviousMigration = errors.New("no previous migrations exist")

// MigrationStatus represents the current state of migrations
type MigrationStatus struct {
	CurrentVersion    int   `json:"current_version"`
	PendingMigrations []int `json:"pending_migrations"`
	TotalMigrations   int   `json:"total_migrations"`
	HasPendingChanges bool  `json:"has_pending_changes"`
}

// Migrator applies migrations to a PostgreSQL database. Each migration runs
// in its own transaction together with the update of the version table.
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	table    string
	logger   *slog.Logger
}

// NewFSMigrator creates a migrator for the migration files found in fsys.
func NewFSMigrator(db *sql.DB, fsys fs.FS) (*Migrator, error) {
	provider, err := NewFSMigrationProvider(fsys)
	if err != nil {
		return nil, err
	}
	return NewMigrator(db, provider), nil
}

// NewMigrator creates a migrator for the given provider.
func NewMigrator(db *sql.DB, provider MigrationProvider) *Migrator {
	return &Migrator{
		db:       db,
		provider: provider,
		table:    pgx.Identifier{DefaultTable}.Sanitize(),
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger for the migrator
func (m *Migrator) WithLogger(l *slog.Logger) *Migrator {
	tmp := *m
	tmp.logger = l
	return &tmp
}

// WithTable records versions in another table. The name may be
// schema-qualified ("schema.table").
func (m *Migrator) WithTable(name string) *Migrator {
	tmp := *m
	tmp.table = pgx.Identifier(strings.Split(name, ".")).Sanitize()
	return &tmp
}

// MigrationProvider returns the migration provider
func (m *Migrator) MigrationProvider() MigrationProvider {
	return m.provider
}

// Initialize creates the version table if it doesn't exist
func (m *Migrator) Initialize(ctx context.Context) error {
	query := "CREATE TABLE IF NOT EXISTS " + m.table + " (\n" +
		"\tversion BIGINT PRIMARY KEY,\n" +
		"\tdescription TEXT NOT NULL,\n" +
		"\tapplied_at TIMESTAMPTZ NOT NULL DEFAULT now()\n" +
		")"
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest applied version, or 0.
func (m *Migrator) GetCurrentVersion(ctx context.Context) (int, error) {
	if err := m.Initialize(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM "+m.table).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// GetAppliedMigrations returns the applied versions in ascending order.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) ([]int, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, "SELECT version FROM "+m.table+" ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []int
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied = append(applied, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migration rows: %w", err)
	}
	return applied, nil
}

// GetMigrationStatus compares the applied version with the provided migrations.
func (m *Migrator) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	current, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	migrations := m.provider.Migrations()
	pending := []int{}
	for _, migration := range migrations {
		if migration.Version > current {
			pending = append(pending, migration.Version)
		}
	}

	return &MigrationStatus{
		CurrentVersion:    current,
		PendingMigrations: pending,
		TotalMigrations:   len(migrations),
		HasPendingChanges: len(pending) > 0,
	}, nil
}

// MigrateUp applies every pending migration.
func (m *Migrator) MigrateUp(ctx context.Context) error {
	current, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}
	return m.migrateUpTo(ctx, current, -1)
}

// MigrateDown reverts the most recently applied migration.
func (m *Migrator) MigrateDown(ctx context.Context) error {
	current, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}
	if current == 0 {
		return ErrNoPreviousMigration
	}

	target := 0
	for _, migration := range m.provider.Migrations() {
		if migration.Version >= current {
			break
		}
		target = migration.Version
	}
	return m.migrateDownTo(ctx, current, target)
}

// MigrateTo migrates up or down until target is the current version. A
// target of 0 reverts every migration.
func (m *Migrator) MigrateTo(ctx context.Context, target int) error {
	current, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}

	switch {
	case target == current:
		m.logger.Info("Already at target version", "version", target)
		return nil
	case target > current:
		return m.migrateUpTo(ctx, current, target)
	default:
		return m.migrateDownTo(ctx, current, target)
	}
}

// migrateUpTo applies migrations newer than current up to target; a negative
// target means no limit.
func (m *Migrator) migrateUpTo(ctx context.Context, current, target int) error {
	migrations := m.provider.Migrations()
	m.logger.Info("Migrating up", "currentVersion", current, "targetVersion", target, "totalMigrations", len(migrations))

	for _, migration := range migrations {
		if migration.Version <= current || (target >= 0 && migration.Version > target) {
			continue
		}

		m.logger.Info("Applying migration", "version", migration.Version, "description", migration.Description)
		err := m.inTx(ctx, migration.Up, "INSERT INTO "+m.table+" (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description)
		if err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
		m.logger.Info("Applied migration", "version", migration.Version, "description", migration.Description)
	}
	return nil
}

func (m *Migrator) migrateDownTo(ctx context.Context, current, target int) error {
	migrations := slices.Clone(m.provider.Migrations())
	slices.Reverse(migrations)
	m.logger.Info("Migrating down", "currentVersion", current, "targetVersion", target, "totalMigrations", len(migrations))

	for _, migration := range migrations {
		if migration.Version <= target || migration.Version > current {
			continue
		}

		m.logger.Info("Rolling back migration", "version", migration.Version, "description", migration.Description)
		err := m.inTx(ctx, migration.Down, "DELETE FROM "+m.table+" WHERE version = $1", migration.Version)
		if err != nil {
			return fmt.Errorf("failed to revert migration %d: %w", migration.Version, err)
		}
		m.logger.Info("Rolled back migration", "version", migration.Version, "description", migration.Description)
	}
	return nil
}

// inTx runs script and the version bookkeeping statement in one transaction.
func (m *Migrator) inTx(ctx context.Context, script, record string, args ...any) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if !isBlank(script) {
		if _, err := tx.ExecContext(ctx, script); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isBlank reports whether script holds only whitespace and line comments.
func isBlank(script string) bool {
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
