// Package types holds the constraint information read from a live database.
package types

// Constraint types reported by the reader.
const (
	ConstraintTypeExclude = "EXCLUDE"
	ConstraintTypeTrigger = "TRIGGER"
)

// DBSchema lists the exclusion constraints and constraint triggers of one
// database schema.
type DBSchema struct {
	Schema      string         `json:"schema"`
	Constraints []DBConstraint `json:"constraints"`
}

// Constraint returns the constraint with the given table and name.
func (s *DBSchema) Constraint(table, name string) (*DBConstraint, bool) {
	for i := range s.Constraints {
		if s.Constraints[i].TableName == table && s.Constraints[i].Name == name {
			return &s.Constraints[i], true
		}
	}
	return nil, false
}

// DBConstraint represents an exclusion constraint or a constraint trigger
type DBConstraint struct {
	Name       string `json:"name"`
	TableName  string `json:"table_name"`
	Type       string `json:"type"`       // EXCLUDE or TRIGGER
	Definition string `json:"definition"` // pg_get_constraintdef or pg_get_triggerdef output
	// Internal is set for triggers PostgreSQL creates itself, such as the
	// foreign key RI_ConstraintTrigger_* triggers.
	Internal bool `json:"internal"`

	UsingMethod     *string `json:"using_method"`     // For EXCLUDE constraints
	ExcludeElements *string `json:"exclude_elements"` // For EXCLUDE constraints
	WhereCondition  *string `json:"where_condition"`  // For EXCLUDE constraints
}

// DBInfo contains connection and metadata information
type DBInfo struct {
	Dialect string `json:"dialect"` // postgres
	Version string `json:"version"` // server_version
	Schema  string `json:"schema"`  // current_schema()
}
