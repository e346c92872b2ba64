package expr

import (
	"fmt"
	"reflect"
	"strings"
)

// Condition is a boolean expression usable in WHERE and WHEN clauses.
type Condition interface {
	Expression
	isCondition()
}

// Connector joins the children of a Q.
type Connector string

const (
	AND Connector = "AND"
	OR  Connector = "OR"
)

// Q is a boolean condition tree.
type Q struct {
	Connector Connector
	Negated   bool
	Children  []Condition
}

// And combines conditions with AND.
func And(children ...Condition) *Q {
	return &Q{Connector: AND, Children: children}
}

// Or combines conditions with OR.
func Or(children ...Condition) *Q {
	return &Q{Connector: OR, Children: children}
}

// Not negates a condition.
func Not(child Condition) *Q {
	if q, ok := child.(*Q); ok {
		return &Q{Connector: q.connector(), Negated: !q.Negated, Children: q.Children}
	}
	return &Q{Connector: AND, Negated: true, Children: []Condition{child}}
}

// Where creates a single-lookup condition. A string lhs is a column reference;
// a non-expression rhs is a literal value (strings included).
//
// Example:
//
//	expr.Where("status", expr.Exact, "active")
func Where(lhs any, lookup LookupType, rhs any) *Q {
	return And(&Lookup{LHS: asExpression(lhs, true), Op: lookup, RHS: asExpression(rhs, false)})
}

func (q *Q) isCondition() {}

func (q *Q) connector() Connector {
	if q.Connector == "" {
		return AND
	}
	return q.Connector
}

func (q *Q) Resolve(query *Query) (Expression, error) {
	children := make([]Condition, len(q.Children))
	for i, c := range q.Children {
		r, err := c.Resolve(query)
		if err != nil {
			return nil, err
		}
		rc, ok := r.(Condition)
		if !ok {
			return nil, &CompilationError{Expr: c.String(), Err: fmt.Errorf("resolved to non-boolean %T", r)}
		}
		children[i] = rc
	}
	return &Q{Connector: q.connector(), Negated: q.Negated, Children: children}, nil
}

func (q *Q) Compile(b *Builder) (string, error) {
	if len(q.Children) == 0 {
		return "", &CompilationError{Expr: q.String(), Err: ErrEmptyCondition}
	}
	parts := make([]string, 0, len(q.Children))
	for _, c := range q.Children {
		sql, err := c.Compile(b)
		if err != nil {
			return "", err
		}
		if child, ok := c.(*Q); ok && !child.Negated && len(child.Children) > 1 {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
	}
	sql := strings.Join(parts, " "+string(q.connector())+" ")
	if q.Negated {
		sql = "NOT (" + sql + ")"
	}
	return sql, nil
}

func (q *Q) Equal(other Expression) bool {
	o, ok := other.(*Q)
	if !ok || o == nil || q.connector() != o.connector() || q.Negated != o.Negated || len(q.Children) != len(o.Children) {
		return false
	}
	for i := range q.Children {
		if !q.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

func (q *Q) String() string {
	parts := make([]string, len(q.Children))
	for i, c := range q.Children {
		parts[i] = c.String()
	}
	s := "(" + string(q.connector()) + ": " + strings.Join(parts, ", ") + ")"
	if q.Negated {
		s = "(NOT " + s + ")"
	}
	return s
}

// LookupType names a comparison.
type LookupType string

const (
	Exact              LookupType = "exact"
	NotEqual           LookupType = "ne"
	GreaterThan        LookupType = "gt"
	GreaterThanOrEqual LookupType = "gte"
	LessThan           LookupType = "lt"
	LessThanOrEqual    LookupType = "lte"
	In                 LookupType = "in"
	IsNull             LookupType = "isnull"
	Contains           LookupType = "contains"
	ContainedBy        LookupType = "contained_by"
	Overlap            LookupType = "overlap"
)

var lookupOperators = map[LookupType]string{
	Exact:              "=",
	NotEqual:           "<>",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	Contains:           "@>",
	ContainedBy:        "<@",
	Overlap:            "&&",
}

// Lookup compares an expression against another.
type Lookup struct {
	LHS Expression
	Op  LookupType
	RHS Expression
}

func (l *Lookup) isCondition() {}

func (l *Lookup) Resolve(q *Query) (Expression, error) {
	lhs, err := l.LHS.Resolve(q)
	if err != nil {
		return nil, err
	}
	var rhs Expression
	if l.RHS != nil {
		if rhs, err = l.RHS.Resolve(q); err != nil {
			return nil, err
		}
	}
	return &Lookup{LHS: lhs, Op: l.Op, RHS: rhs}, nil
}

func (l *Lookup) Compile(b *Builder) (string, error) {
	if l.LHS == nil {
		return "", &CompilationError{Expr: l.String(), Err: ErrNilExpression}
	}
	lhs, err := l.LHS.Compile(b)
	if err != nil {
		return "", err
	}
	switch l.Op {
	case Exact:
		if isNullValue(l.RHS) {
			return lhs + " IS NULL", nil
		}
	case IsNull:
		v, ok := l.RHS.(*Value)
		if !ok {
			return "", &CompilationError{Expr: l.String(), Err: fmt.Errorf("%w: isnull expects a boolean", ErrUnsupportedLookup)}
		}
		if isNull, _ := v.V.(bool); isNull {
			return lhs + " IS NULL", nil
		}
		return lhs + " IS NOT NULL", nil
	case In:
		return l.compileIn(b, lhs)
	}
	op, ok := lookupOperators[l.Op]
	if !ok {
		return "", &CompilationError{Expr: l.String(), Err: fmt.Errorf("%w: %q", ErrUnsupportedLookup, l.Op)}
	}
	if l.RHS == nil {
		return "", &CompilationError{Expr: l.String(), Err: ErrNilExpression}
	}
	rhs, err := l.RHS.Compile(b)
	if err != nil {
		return "", err
	}
	return lhs + " " + op + " " + rhs, nil
}

func (l *Lookup) compileIn(b *Builder, lhs string) (string, error) {
	v, ok := l.RHS.(*Value)
	if !ok {
		return "", &CompilationError{Expr: l.String(), Err: fmt.Errorf("%w: in expects a list of values", ErrUnsupportedLookup)}
	}
	rv := reflect.ValueOf(v.V)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() == 0 {
		return "", &CompilationError{Expr: l.String(), Err: fmt.Errorf("%w: in expects a non-empty list", ErrUnsupportedLookup)}
	}
	placeholders := make([]string, rv.Len())
	for i := range placeholders {
		placeholders[i] = b.Arg(rv.Index(i).Interface())
	}
	return lhs + " IN (" + strings.Join(placeholders, ", ") + ")", nil
}

func (l *Lookup) Equal(other Expression) bool {
	o, ok := other.(*Lookup)
	if !ok || o == nil || l.Op != o.Op {
		return false
	}
	return equalExpr(l.LHS, o.LHS) && equalExpr(l.RHS, o.RHS)
}

func (l *Lookup) String() string {
	rhs := "<nil>"
	if l.RHS != nil {
		rhs = l.RHS.String()
	}
	lhs := "<nil>"
	if l.LHS != nil {
		lhs = l.LHS.String()
	}
	return lhs + " " + string(l.Op) + " " + rhs
}

func isNullValue(e Expression) bool {
	if e == nil {
		return true
	}
	v, ok := e.(*Value)
	return ok && v.V == nil
}

// equalExpr compares possibly nil expressions.
func equalExpr(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}
