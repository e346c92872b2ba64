// Package config provides configuration for constraint diffing and migration
// generation.
//
// CompareOptions is the programmatic API used when the module is embedded as
// a library. Settings is what the command line tool loads from a config file
// and PGCONSTRAINTS_* environment variables.
package config

import (
	"path"
	"strings"
)

// CompareOptions contains configuration options for snapshot comparison.
// These options control which constraints are left out of the diff.
type CompareOptions struct {
	// IgnoredConstraints lists glob patterns (path.Match syntax) of
	// constraints that are never created or dropped by generated migrations.
	// A pattern without a dot matches the constraint name; a pattern with a
	// dot matches "table.name" or "schema.table.name".
	//
	// Common patterns include:
	// - RI_ConstraintTrigger_*: internal triggers backing foreign keys
	IgnoredConstraints []string
}

// DefaultCompareOptions returns the default comparison options. PostgreSQL
// implements foreign keys with internal constraint triggers, which are
// ignored.
func DefaultCompareOptions() *CompareOptions {
	return &CompareOptions{
		IgnoredConstraints: []string{
			"RI_ConstraintTrigger_*", // foreign key triggers managed by PostgreSQL
		},
	}
}

// WithIgnoredConstraints returns a new CompareOptions with the specified patterns.
// This completely replaces the default ignore list.
//
// Example:
//
//	opts := config.WithIgnoredConstraints("legacy_*", "audit.audit_trigger")
func WithIgnoredConstraints(patterns ...string) *CompareOptions {
	return &CompareOptions{
		IgnoredConstraints: patterns,
	}
}

// WithAdditionalIgnoredConstraints returns a new CompareOptions that includes
// the default patterns plus the additional ones specified.
//
// Example:
//
//	opts := config.WithAdditionalIgnoredConstraints("legacy_*")
//	// Result: ["RI_ConstraintTrigger_*", "legacy_*"]
func WithAdditionalIgnoredConstraints(patterns ...string) *CompareOptions {
	defaults := DefaultCompareOptions()
	all := make([]string, len(defaults.IgnoredConstraints)+len(patterns))
	copy(all, defaults.IgnoredConstraints)
	copy(all[len(defaults.IgnoredConstraints):], patterns)

	return &CompareOptions{
		IgnoredConstraints: all,
	}
}

// IsConstraintIgnored reports whether the constraint name on the given table
// (bare or schema-qualified) matches one of the ignore patterns. Malformed
// patterns never match.
func (c *CompareOptions) IsConstraintIgnored(table, name string) bool {
	if c == nil {
		return false
	}
	qualified := table + "." + name
	for _, pattern := range c.IgnoredConstraints {
		subject := name
		if strings.Contains(pattern, ".") {
			subject = qualified
		}
		if ok, err := path.Match(pattern, subject); err == nil && ok {
			return true
		}
	}
	return false
}

// FilterIgnoredConstraints removes ignored constraint names from the provided
// slice and returns a new slice containing only the names to compare.
func (c *CompareOptions) FilterIgnoredConstraints(table string, names []string) []string {
	filtered := make([]string, 0, len(names))
	for _, name := range names {
		if !c.IsConstraintIgnored(table, name) {
			filtered = append(filtered, name)
		}
	}
	return filtered
}
