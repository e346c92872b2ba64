// Package history stores constraint definitions as YAML snapshots.
//
// A snapshot lists tables and the exclusion constraints and constraint
// triggers attached to them. The same document format is used for the
// desired definitions a developer edits and for the recorded state the
// generator writes after each migration, so that the next migration is the
// diff between the two.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/stokaro/pgconstraints/core/constraints"
	"github.com/stokaro/pgconstraints/core/schema"
)

// Table is a table with its constraints.
type Table struct {
	Model       *schema.Model
	Constraints []constraints.Constraint
}

// Constraint returns the constraint with the given name.
func (t *Table) Constraint(name string) (constraints.Constraint, bool) {
	for _, c := range t.Constraints {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Snapshot is the set of constraint definitions of a database.
type Snapshot struct {
	Tables []*Table
}

// Table returns the table with the given qualified name (schema.table, or
// the bare table name for the default schema).
func (s *Snapshot) Table(qualifiedName string) (*Table, bool) {
	for _, t := range s.Tables {
		if t.Model.QualifiedName() == qualifiedName {
			return t, true
		}
	}
	return nil, false
}

// Sort orders tables by qualified name and constraints by name.
func (s *Snapshot) Sort() {
	sort.SliceStable(s.Tables, func(i, j int) bool {
		return s.Tables[i].Model.QualifiedName() < s.Tables[j].Model.QualifiedName()
	})
	for _, t := range s.Tables {
		sort.SliceStable(t.Constraints, func(i, j int) bool {
			return t.Constraints[i].Name() < t.Constraints[j].Name()
		})
	}
}

type document struct {
	Version int             `yaml:"version"`
	Tables  []tableDocument `yaml:"tables"`
}

type tableDocument struct {
	schema.Model `yaml:",inline"`
	Constraints  []*Record `yaml:"constraints,omitempty"`
}

const documentVersion = 1

// Marshal renders the snapshot as YAML. Tables and constraints are written
// in name order so that equal snapshots produce identical documents.
func Marshal(s *Snapshot) ([]byte, error) {
	sorted := &Snapshot{Tables: make([]*Table, len(s.Tables))}
	for i, t := range s.Tables {
		sorted.Tables[i] = &Table{Model: t.Model, Constraints: append([]constraints.Constraint(nil), t.Constraints...)}
	}
	sorted.Sort()

	doc := document{Version: documentVersion, Tables: make([]tableDocument, 0, len(sorted.Tables))}
	for _, t := range sorted.Tables {
		td := tableDocument{Model: *t.Model}
		for _, c := range t.Constraints {
			r, err := Encode(c)
			if err != nil {
				return nil, fmt.Errorf("failed to encode constraint %s on %s: %w", c.Name(), t.Model.QualifiedName(), err)
			}
			td.Constraints = append(td.Constraints, r)
		}
		doc.Tables = append(doc.Tables, td)
	}
	return yaml.Marshal(doc)
}

// Unmarshal parses a YAML snapshot and validates every constraint in it.
func Unmarshal(data []byte) (*Snapshot, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", doc.Version)
	}

	s := &Snapshot{}
	seen := make(map[string]bool, len(doc.Tables))
	for _, td := range doc.Tables {
		if td.Table == "" {
			return nil, errors.New("table name must not be empty")
		}
		model := td.Model
		if seen[model.QualifiedName()] {
			return nil, fmt.Errorf("duplicate table %s", model.QualifiedName())
		}
		seen[model.QualifiedName()] = true

		t := &Table{Model: &model}
		names := make(map[string]bool, len(td.Constraints))
		for _, r := range td.Constraints {
			c, err := r.Constraint()
			if err != nil {
				return nil, fmt.Errorf("table %s: %w", model.QualifiedName(), err)
			}
			if names[c.Name()] {
				return nil, fmt.Errorf("table %s: duplicate constraint %s", model.QualifiedName(), c.Name())
			}
			names[c.Name()] = true
			t.Constraints = append(t.Constraints, c)
		}
		s.Tables = append(s.Tables, t)
	}
	return s, nil
}

// Load reads a snapshot file. A missing file is an empty snapshot.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return Unmarshal(data)
}

// Save writes a snapshot file, creating its directory when needed.
func Save(path string, s *Snapshot) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil { //nolint:gosec // 0644 is fine
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return nil
}
