// Package ddl provides the statement values produced by constraint builders.
//
// A Statement keeps its template and named parts separately so that table
// references inside it can be inspected after it was built.
package ddl

import (
	"fmt"
	"sort"
	"strings"
)

// Statement is an executable DDL unit. Templates reference parts with {key}
// slots; parts are strings or fmt.Stringer values such as *Table.
//
// Statements are immutable.
type Statement struct {
	template string
	parts    map[string]any
}

// NewStatement creates a statement from a template and its parts.
//
// Example:
//
//	stmt := NewStatement("DROP TRIGGER {name} ON {table}", map[string]any{
//		"name":  `"audit_trigger"`,
//		"table": NewTable("", "records", quote),
//	})
func NewStatement(template string, parts map[string]any) *Statement {
	copied := make(map[string]any, len(parts))
	for k, v := range parts {
		copied[k] = v
	}
	return &Statement{template: template, parts: copied}
}

// Template returns the statement template.
func (s *Statement) Template() string {
	return s.template
}

// Part returns the named part.
func (s *Statement) Part(key string) (any, bool) {
	v, ok := s.parts[key]
	return v, ok
}

// Keys returns the part names in sorted order.
func (s *Statement) Keys() []string {
	keys := make([]string, 0, len(s.parts))
	for k := range s.parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the final SQL text. Slots without a matching part are left
// as they are.
func (s *Statement) String() string {
	var sb strings.Builder
	t := s.template
	for {
		open := strings.IndexByte(t, '{')
		if open < 0 {
			sb.WriteString(t)
			break
		}
		end := strings.IndexByte(t[open:], '}')
		if end < 0 {
			sb.WriteString(t)
			break
		}
		end += open
		sb.WriteString(t[:open])
		key := t[open+1 : end]
		if v, ok := s.parts[key]; ok {
			sb.WriteString(partString(v))
		} else {
			sb.WriteString(t[open : end+1])
		}
		t = t[end+1:]
	}
	return sb.String()
}

// ReferencesTable reports whether any table part refers to the given table.
// An empty schema matches tables in any schema.
func (s *Statement) ReferencesTable(schema, name string) bool {
	for _, v := range s.parts {
		if t, ok := v.(*Table); ok && t.References(schema, name) {
			return true
		}
	}
	return false
}

func partString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
