package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stokaro/pgconstraints/dbschema/types"
)

// Reader reads exclusion constraints and constraint triggers from PostgreSQL
type Reader struct {
	db     *sql.DB
	schema string
}

// NewPostgreSQLReader creates a new PostgreSQL reader for one schema
func NewPostgreSQLReader(db *sql.DB, schema string) *Reader {
	if schema == "" {
		schema = "public"
	}
	return &Reader{
		db:     db,
		schema: schema,
	}
}

// ReadSchema reads every exclusion constraint and constraint trigger of the
// reader's schema, ordered by table and name within each kind.
func (r *Reader) ReadSchema(ctx context.Context) (*types.DBSchema, error) {
	schema := &types.DBSchema{Schema: r.schema}

	excludes, err := r.readExcludeConstraints(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read exclusion constraints: %w", err)
	}
	schema.Constraints = append(schema.Constraints, excludes...)

	triggers, err := r.readConstraintTriggers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read constraint triggers: %w", err)
	}
	schema.Constraints = append(schema.Constraints, triggers...)

	return schema, nil
}

func (r *Reader) readExcludeConstraints(ctx context.Context) ([]types.DBConstraint, error) {
	excludeQuery := `
		SELECT
			c.conname AS constraint_name,
			cl.relname AS table_name,
			pg_get_constraintdef(c.oid) AS constraint_definition
		FROM pg_constraint c
		JOIN pg_class cl ON c.conrelid = cl.oid
		JOIN pg_namespace n ON cl.relnamespace = n.oid
		WHERE c.contype = 'x'  -- 'x' = exclusion constraint
		AND n.nspname = $1
		ORDER BY cl.relname, c.conname`

	rows, err := r.db.QueryContext(ctx, excludeQuery, r.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query EXCLUDE constraints: %w", err)
	}
	defer rows.Close()

	var constraints []types.DBConstraint
	for rows.Next() {
		constraint := types.DBConstraint{Type: types.ConstraintTypeExclude}
		if err := rows.Scan(&constraint.Name, &constraint.TableName, &constraint.Definition); err != nil {
			return nil, fmt.Errorf("failed to scan EXCLUDE constraint: %w", err)
		}
		r.enhanceExcludeConstraint(&constraint)
		constraints = append(constraints, constraint)
	}
	return constraints, rows.Err()
}

func (r *Reader) readConstraintTriggers(ctx context.Context) ([]types.DBConstraint, error) {
	triggerQuery := `
		SELECT
			t.tgname AS trigger_name,
			cl.relname AS table_name,
			pg_get_triggerdef(t.oid) AS trigger_definition,
			t.tgisinternal AS internal
		FROM pg_trigger t
		JOIN pg_class cl ON t.tgrelid = cl.oid
		JOIN pg_namespace n ON cl.relnamespace = n.oid
		WHERE t.tgconstraint <> 0  -- constraint triggers only
		AND n.nspname = $1
		ORDER BY cl.relname, t.tgname`

	rows, err := r.db.QueryContext(ctx, triggerQuery, r.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query constraint triggers: %w", err)
	}
	defer rows.Close()

	var constraints []types.DBConstraint
	for rows.Next() {
		constraint := types.DBConstraint{Type: types.ConstraintTypeTrigger}
		if err := rows.Scan(&constraint.Name, &constraint.TableName, &constraint.Definition, &constraint.Internal); err != nil {
			return nil, fmt.Errorf("failed to scan constraint trigger: %w", err)
		}
		constraints = append(constraints, constraint)
	}
	return constraints, rows.Err()
}

// enhanceExcludeConstraint fills the parsed parts of an EXCLUDE definition.
func (r *Reader) enhanceExcludeConstraint(constraint *types.DBConstraint) {
	parsed, err := r.ParseExcludeConstraintDefinition(constraint.Definition)
	if err != nil {
		slog.Warn("Failed to parse EXCLUDE constraint definition", "constraint", constraint.Name, "table", constraint.TableName, "error", err)
		return
	}

	if parsed.UsingMethod != "" {
		constraint.UsingMethod = &parsed.UsingMethod
	}
	if parsed.Elements != "" {
		constraint.ExcludeElements = &parsed.Elements
	}
	if parsed.WhereCondition != "" {
		constraint.WhereCondition = &parsed.WhereCondition
	}
}

// ExcludeConstraintDefinition represents the parsed components of an EXCLUDE constraint
type ExcludeConstraintDefinition struct {
	UsingMethod    string
	Elements       string
	WhereCondition string
}

// ParseExcludeConstraintDefinition parses an EXCLUDE constraint definition
// as returned by pg_get_constraintdef. Trailing deferrability clauses are
// not part of the WHERE condition.
//
// Example input: "EXCLUDE USING gist (room_id WITH =, during WITH &&) WHERE (is_active = true)"
func (r *Reader) ParseExcludeConstraintDefinition(definition string) (*ExcludeConstraintDefinition, error) {
	definition = strings.TrimSpace(definition)

	const prefix = "EXCLUDE USING"
	if !strings.HasPrefix(strings.ToUpper(definition), prefix) {
		return nil, fmt.Errorf("invalid EXCLUDE constraint definition: %s", definition)
	}
	remaining := strings.TrimSpace(definition[len(prefix):])

	parts := strings.Fields(remaining)
	if len(parts) == 0 || strings.HasPrefix(parts[0], "(") {
		return nil, fmt.Errorf("missing using method in EXCLUDE constraint: %s", definition)
	}
	usingMethod := parts[0]

	openParenIdx := strings.Index(remaining, "(")
	if openParenIdx == -1 {
		return nil, fmt.Errorf("missing opening parenthesis in EXCLUDE constraint: %s", definition)
	}
	elementsEndIdx := matchingParen(remaining, openParenIdx)
	if elementsEndIdx == -1 {
		return nil, fmt.Errorf("missing closing parenthesis in EXCLUDE constraint: %s", definition)
	}
	elements := strings.TrimSpace(remaining[openParenIdx+1 : elementsEndIdx])

	whereCondition := ""
	afterElements := strings.TrimSpace(remaining[elementsEndIdx+1:])
	if strings.HasPrefix(strings.ToUpper(afterElements), "WHERE") {
		whereClause := strings.TrimSpace(afterElements[len("WHERE"):])
		if strings.HasPrefix(whereClause, "(") {
			if end := matchingParen(whereClause, 0); end != -1 {
				whereClause = whereClause[1:end]
			}
		} else if idx := strings.Index(strings.ToUpper(whereClause), " DEFERRABLE"); idx != -1 {
			whereClause = whereClause[:idx]
		}
		whereCondition = strings.TrimSpace(whereClause)
	}

	return &ExcludeConstraintDefinition{
		UsingMethod:    usingMethod,
		Elements:       elements,
		WhereCondition: whereCondition,
	}, nil
}

// matchingParen returns the index of the parenthesis closing the one at open,
// or -1. Parentheses inside single-quoted literals are ignored.
func matchingParen(s string, open int) int {
	depth := 0
	quoted := false
	for i := open; i < len(s); i++ {
		switch {
		case s[i] == '\'':
			quoted = !quoted
		case quoted:
		case s[i] == '(':
			depth++
		case s[i] == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
