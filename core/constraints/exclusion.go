package constraints

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/stokaro/pgconstraints/core/ddl"
	"github.com/stokaro/pgconstraints/core/expr"
	"github.com/stokaro/pgconstraints/core/schema"
)

// IndexType is the index access method backing an exclusion constraint.
type IndexType string

const (
	GiST   IndexType = "GIST"
	SPGiST IndexType = "SPGIST"
)

const (
	exclusionCreateTemplate     = "ALTER TABLE {table} ADD {constraint}"
	exclusionConstraintTemplate = "CONSTRAINT {name} EXCLUDE USING {index_type} ({expressions}){where}{deferrable}"
)

// ParseIndexType accepts "gist" and "spgist" in any case.
func ParseIndexType(s string) (IndexType, error) {
	switch t := IndexType(cases.Upper(language.Und).String(s)); t {
	case GiST, SPGiST:
		return t, nil
	}
	return "", fmt.Errorf("exclusion constraints only support GiST or SP-GiST indexes, got %q", s)
}

// ExclusionExpression pairs an expression with the operator rows must not
// satisfy simultaneously. The operator is passed through verbatim.
type ExclusionExpression struct {
	Expression expr.Expression
	Operator   string
}

// Exclude builds a pair. A string expression is a column reference.
//
// Example:
//
//	constraints.Exclude("during", "&&")
func Exclude(expression any, operator string) ExclusionExpression {
	e, _ := expr.ToExpression(expression)
	return ExclusionExpression{Expression: e, Operator: operator}
}

func (p ExclusionExpression) clone() ExclusionExpression {
	return ExclusionExpression{Expression: expr.Clone(p.Expression), Operator: p.Operator}
}

func cloneExpressions(pairs []ExclusionExpression) []ExclusionExpression {
	out := make([]ExclusionExpression, len(pairs))
	for i, p := range pairs {
		out[i] = p.clone()
	}
	return out
}

func (p ExclusionExpression) valid() bool {
	return p.Expression != nil && strings.TrimSpace(p.Operator) != ""
}

func (p ExclusionExpression) equal(o ExclusionExpression) bool {
	return p.Operator == o.Operator && p.Expression != nil && o.Expression != nil && p.Expression.Equal(o.Expression)
}

func (p ExclusionExpression) String() string {
	if p.Expression == nil {
		return "(<nil>, " + p.Operator + ")"
	}
	return "(" + p.Expression.String() + ", " + p.Operator + ")"
}

type exclusionConfig struct {
	indexType    string
	indexTypeSet bool
	condition    *expr.Q
	deferrable   ddl.Deferrable
}

// ExclusionOption configures an exclusion constraint.
type ExclusionOption func(*exclusionConfig)

// WithIndexType selects the index method ("gist" or "spgist", any case).
func WithIndexType(indexType string) ExclusionOption {
	return func(c *exclusionConfig) {
		c.indexType = indexType
		c.indexTypeSet = true
	}
}

// WithCondition makes the constraint partial. Partial constraints cannot be
// deferred.
func WithCondition(condition *expr.Q) ExclusionOption {
	return func(c *exclusionConfig) {
		c.condition = condition
	}
}

// WithDeferrable sets the deferrability clause.
func WithDeferrable(d ddl.Deferrable) ExclusionOption {
	return func(c *exclusionConfig) {
		c.deferrable = d
	}
}

// ExclusionConstraint renders an EXCLUDE USING table constraint.
type ExclusionConstraint struct {
	name        string
	expressions []ExclusionExpression
	indexType   IndexType
	condition   *expr.Q
	deferrable  ddl.Deferrable
}

// NewExclusionConstraint validates its arguments and returns the constraint.
// Every failure is a *ValidationError. The expressions and the condition are
// copied, so later changes to the caller's trees do not affect the constraint.
//
// Example:
//
//	c, err := constraints.NewExclusionConstraint("no_overlap", []constraints.ExclusionExpression{
//		constraints.Exclude("room", "="),
//		constraints.Exclude("during", "&&"),
//	})
func NewExclusionConstraint(name string, expressions []ExclusionExpression, opts ...ExclusionOption) (*ExclusionConstraint, error) {
	cfg := exclusionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if name == "" {
		return nil, newValidationError(name, "name must not be empty")
	}
	indexType := GiST
	if cfg.indexTypeSet {
		t, err := ParseIndexType(cfg.indexType)
		if err != nil {
			return nil, newValidationError(name, "%v", err)
		}
		indexType = t
	}
	if len(expressions) == 0 {
		return nil, newValidationError(name, "at least one expression is required to define an exclusion constraint")
	}
	expressions = cloneExpressions(expressions)
	for i, p := range expressions {
		if !p.valid() {
			return nil, newValidationError(name, "expression %d must be an (expression, operator) pair", i)
		}
	}
	condition := expr.CloneCondition(cfg.condition)
	if err := validateCondition(name, condition); err != nil {
		return nil, err
	}
	if condition != nil && cfg.deferrable.IsSet() {
		return nil, newValidationError(name, "exclusion constraints with conditions cannot be deferred")
	}
	if !cfg.deferrable.Valid() {
		return nil, newValidationError(name, "%v: %d", ddl.ErrInvalidDeferrable, int(cfg.deferrable))
	}

	return &ExclusionConstraint{
		name:        name,
		expressions: expressions,
		indexType:   indexType,
		condition:   condition,
		deferrable:  cfg.deferrable,
	}, nil
}

func (c *ExclusionConstraint) Name() string { return c.name }

func (c *ExclusionConstraint) IndexType() IndexType { return c.indexType }

// Condition returns a copy of the WHERE condition, or nil.
func (c *ExclusionConstraint) Condition() *expr.Q { return expr.CloneCondition(c.condition) }

func (c *ExclusionConstraint) Deferrable() ddl.Deferrable { return c.deferrable }

// Expressions returns a copy of the expression pairs in declaration order.
func (c *ExclusionConstraint) Expressions() []ExclusionExpression {
	return cloneExpressions(c.expressions)
}

// ExpressionSQL compiles each pair into "<sql> WITH <operator>".
func (c *ExclusionConstraint) ExpressionSQL(m *schema.Model, e schema.Editor) ([]string, error) {
	q := m.Query()
	out := make([]string, 0, len(c.expressions))
	for _, p := range c.expressions {
		sql, err := compileInline(e, p.Expression, q)
		if err != nil {
			return nil, err
		}
		out = append(out, sql+" WITH "+p.Operator)
	}
	return out, nil
}

// ConditionSQL compiles the WHERE condition. It returns an empty string when
// the constraint has no condition.
func (c *ExclusionConstraint) ConditionSQL(m *schema.Model, e schema.Editor) (string, error) {
	if c.condition == nil {
		return "", nil
	}
	return compileInline(e, c.condition, m.Query())
}

// ConstraintSQL renders the table constraint fragment used by CREATE TABLE
// and ALTER TABLE ... ADD.
func (c *ExclusionConstraint) ConstraintSQL(m *schema.Model, e schema.Editor) (string, error) {
	stmt, err := c.constraintStatement(m, e)
	if err != nil {
		return "", err
	}
	return stmt.String(), nil
}

func (c *ExclusionConstraint) constraintStatement(m *schema.Model, e schema.Editor) (*ddl.Statement, error) {
	expressions, err := c.ExpressionSQL(m, e)
	if err != nil {
		return nil, err
	}
	condition, err := c.ConditionSQL(m, e)
	if err != nil {
		return nil, err
	}
	where := ""
	if condition != "" {
		where = " WHERE (" + condition + ")"
	}
	return ddl.NewStatement(exclusionConstraintTemplate, map[string]any{
		"name":        e.QuoteName(c.name),
		"index_type":  string(c.indexType),
		"expressions": strings.Join(expressions, ", "),
		"where":       where,
		"deferrable":  e.DeferrableSQL(c.deferrable),
	}), nil
}

// CreateSQL renders ALTER TABLE ... ADD CONSTRAINT ... EXCLUDE USING.
func (c *ExclusionConstraint) CreateSQL(m *schema.Model, e schema.Editor) (*ddl.Statement, error) {
	constraint, err := c.constraintStatement(m, e)
	if err != nil {
		return nil, err
	}
	return ddl.NewStatement(exclusionCreateTemplate, map[string]any{
		"table":      e.Table(m),
		"constraint": constraint,
	}), nil
}

// RemoveSQL drops the constraint with the generic DROP CONSTRAINT statement,
// the same one used for CHECK constraints.
func (c *ExclusionConstraint) RemoveSQL(m *schema.Model, e schema.Editor) *ddl.Statement {
	return e.DeleteConstraintSQL(e.Table(m), e.QuoteName(c.name))
}

// Equal compares name, index type, condition, deferrability and the
// expression pairs in order.
func (c *ExclusionConstraint) Equal(other Constraint) bool {
	o, ok := other.(*ExclusionConstraint)
	if !ok || o == nil {
		return false
	}
	if c.name != o.name || c.indexType != o.indexType || c.deferrable != o.deferrable {
		return false
	}
	if len(c.expressions) != len(o.expressions) {
		return false
	}
	for i := range c.expressions {
		if !c.expressions[i].equal(o.expressions[i]) {
			return false
		}
	}
	return equalCondition(c.condition, o.condition)
}

// Deconstruct omits the index type when it is GiST and the condition and
// deferrability when they are unset.
func (c *ExclusionConstraint) Deconstruct() Deconstruction {
	kwargs := map[string]any{
		KwargName:        c.name,
		KwargExpressions: c.Expressions(),
	}
	if c.indexType != GiST {
		kwargs[KwargIndexType] = string(c.indexType)
	}
	if c.condition != nil {
		kwargs[KwargCondition] = c.Condition()
	}
	if c.deferrable.IsSet() {
		kwargs[KwargDeferrable] = c.deferrable
	}
	return Deconstruction{Path: ExclusionConstraintPath, Kwargs: kwargs}
}

func (c *ExclusionConstraint) String() string {
	parts := make([]string, len(c.expressions))
	for i, p := range c.expressions {
		parts[i] = p.String()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "<ExclusionConstraint: name=%s, index_type=%s, expressions=[%s]", c.name, c.indexType, strings.Join(parts, ", "))
	if c.condition != nil {
		fmt.Fprintf(&sb, ", condition=%s", c.condition)
	}
	if c.deferrable.IsSet() {
		fmt.Fprintf(&sb, ", deferrable=%s", c.deferrable)
	}
	sb.WriteString(">")
	return sb.String()
}
