package migrator

import (
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"sort"
)

// MigrationProvider provides a list of migrations
type MigrationProvider interface {
	// Migrations provides a list of migrations sorted by version in ascending order
	Migrations() []*Migration
}

// RegisteredMigrationProvider is a simple in-memory implementation of MigrationProvider
type RegisteredMigrationProvider struct {
	migrations []*Migration
	sorted     bool
}

// NewRegisteredMigrationProvider creates an in-memory provider. Migrations are
// sorted by version when read.
func NewRegisteredMigrationProvider(migrations ...*Migration) *RegisteredMigrationProvider {
	return &RegisteredMigrationProvider{
		migrations: migrations,
	}
}

// Register adds a migration to the provider
func (p *RegisteredMigrationProvider) Register(migration *Migration) {
	p.migrations = append(p.migrations, migration)
	p.sorted = false
}

// Migrations returns the list of migrations sorted by version in ascending order
func (p *RegisteredMigrationProvider) Migrations() []*Migration {
	if !p.sorted {
		sortMigrations(p.migrations)
		p.sorted = true
	}
	return p.migrations
}

// FSMigrationProvider loads migration scripts from a filesystem. Files not
// following the NNNNNNNNNN_name.(up|down).sql convention are skipped.
type FSMigrationProvider struct {
	fsys       fs.FS
	migrations []*Migration
}

// NewFSMigrationProvider scans fsys and reads every migration script. Every
// version must have both an up and a down file.
func NewFSMigrationProvider(fsys fs.FS) (*FSMigrationProvider, error) {
	p := &FSMigrationProvider{fsys: fsys}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// Migrations returns the loaded migrations sorted by version in ascending order.
func (p *FSMigrationProvider) Migrations() []*Migration {
	return p.migrations
}

type scripts struct {
	migration *Migration
	up, down  bool
}

func (p *FSMigrationProvider) load() error {
	found := make(map[int]*scripts) // version -> scripts

	err := fs.WalkDir(p.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		file, err := ParseMigrationFileName(d.Name())
		if err != nil {
			slog.Debug("Skipping non-migration file", "path", path)
			return nil
		}

		sql, err := fs.ReadFile(p.fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read migration file: %w", err)
		}

		s, ok := found[file.Version]
		if !ok {
			s = &scripts{migration: &Migration{
				Version:     file.Version,
				Description: describe(file.Name),
			}}
			found[file.Version] = s
		}

		switch file.Direction {
		case DirectionUp:
			s.migration.Up = string(sql)
			s.up = true
		case DirectionDown:
			s.migration.Down = string(sql)
			s.down = true
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan migrations directory: %w", err)
	}

	var incomplete []int
	for version, s := range found {
		if !s.up || !s.down {
			incomplete = append(incomplete, version)
		}
	}
	if len(incomplete) > 0 {
		sort.Ints(incomplete)
		return fmt.Errorf("incomplete migrations found (missing up or down files): %v", incomplete)
	}

	p.migrations = make([]*Migration, 0, len(found))
	for _, version := range slices.Sorted(maps.Keys(found)) {
		p.migrations = append(p.migrations, found[version].migration)
	}
	return nil
}

func sortMigrations(migrations []*Migration) {
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
}
