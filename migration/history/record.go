package history

import (
	"fmt"

	"github.com/stokaro/pgconstraints/core/constraints"
	"github.com/stokaro/pgconstraints/core/ddl"
	"github.com/stokaro/pgconstraints/core/expr"
)

// Record kinds.
const (
	KindExclusion = "exclusion"
	KindTrigger   = "trigger"
)

var kindPaths = map[string]string{
	KindExclusion: constraints.ExclusionConstraintPath,
	KindTrigger:   constraints.ConstraintTriggerPath,
}

// Record is the document form of a constraint.
type Record struct {
	Kind        string             `yaml:"kind"`
	Name        string             `yaml:"name"`
	Expressions []ExpressionRecord `yaml:"expressions,omitempty"`
	IndexType   string             `yaml:"index_type,omitempty"`
	Events      []string           `yaml:"events,omitempty"`
	Function    *expr.Node         `yaml:"function,omitempty"`
	Condition   *expr.Node         `yaml:"condition,omitempty"`
	Deferrable  string             `yaml:"deferrable,omitempty"`
}

// ExpressionRecord is one exclusion expression pair.
type ExpressionRecord struct {
	Expression *expr.Node `yaml:"expression"`
	Operator   string     `yaml:"operator"`
}

// Encode converts a constraint into its document form.
func Encode(c constraints.Constraint) (*Record, error) {
	d := c.Deconstruct()
	r := &Record{}
	switch d.Path {
	case constraints.ExclusionConstraintPath:
		r.Kind = KindExclusion
	case constraints.ConstraintTriggerPath:
		r.Kind = KindTrigger
	default:
		return nil, fmt.Errorf("unsupported constraint path %q", d.Path)
	}

	r.Name, _ = d.Kwargs[constraints.KwargName].(string)
	if v, ok := d.Kwargs[constraints.KwargIndexType].(string); ok {
		r.IndexType = v
	}
	if v, ok := d.Kwargs[constraints.KwargDeferrable].(ddl.Deferrable); ok {
		r.Deferrable = v.String()
	}
	if v, ok := d.Kwargs[constraints.KwargCondition].(*expr.Q); ok {
		n, err := expr.Encode(v)
		if err != nil {
			return nil, err
		}
		r.Condition = n
	}
	if v, ok := d.Kwargs[constraints.KwargFunction].(*expr.Func); ok {
		n, err := expr.Encode(v)
		if err != nil {
			return nil, err
		}
		r.Function = n
	}
	if v, ok := d.Kwargs[constraints.KwargEvents].([]constraints.TriggerEvent); ok {
		for _, e := range v {
			r.Events = append(r.Events, string(e))
		}
	}
	if v, ok := d.Kwargs[constraints.KwargExpressions].([]constraints.ExclusionExpression); ok {
		for _, p := range v {
			n, err := expr.Encode(p.Expression)
			if err != nil {
				return nil, err
			}
			r.Expressions = append(r.Expressions, ExpressionRecord{Expression: n, Operator: p.Operator})
		}
	}
	return r, nil
}

// Constraint rebuilds and validates the constraint described by r.
func (r *Record) Constraint() (constraints.Constraint, error) {
	path, ok := kindPaths[r.Kind]
	if !ok {
		return nil, fmt.Errorf("constraint %s: unknown kind %q", r.Name, r.Kind)
	}

	kwargs := map[string]any{constraints.KwargName: r.Name}
	if r.Condition != nil {
		q, err := expr.DecodeCondition(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("constraint %s: condition: %w", r.Name, err)
		}
		kwargs[constraints.KwargCondition] = q
	}
	if r.Deferrable != "" {
		kwargs[constraints.KwargDeferrable] = r.Deferrable
	}

	switch r.Kind {
	case KindExclusion:
		pairs := make([]any, len(r.Expressions))
		for i, er := range r.Expressions {
			e, err := expr.Decode(er.Expression)
			if err != nil {
				return nil, fmt.Errorf("constraint %s: expression %d: %w", r.Name, i, err)
			}
			var item any
			if e != nil {
				item = e
			}
			pairs[i] = []any{item, er.Operator}
		}
		kwargs[constraints.KwargExpressions] = pairs
		if r.IndexType != "" {
			kwargs[constraints.KwargIndexType] = r.IndexType
		}
	case KindTrigger:
		kwargs[constraints.KwargEvents] = r.Events
		if r.Function != nil {
			f, err := expr.DecodeFunc(r.Function)
			if err != nil {
				return nil, fmt.Errorf("constraint %s: function: %w", r.Name, err)
			}
			kwargs[constraints.KwargFunction] = f
		}
	}

	return constraints.Reconstruct(constraints.Deconstruction{Path: path, Kwargs: kwargs})
}
