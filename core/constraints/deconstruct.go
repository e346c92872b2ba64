package constraints

import (
	"fmt"
	"reflect"
	"slices"
	"sort"

	"github.com/stokaro/pgconstraints/core/ddl"
	"github.com/stokaro/pgconstraints/core/expr"
)

// Paths identifying the constraint kinds in a Deconstruction.
const (
	ExclusionConstraintPath = "constraints.ExclusionConstraint"
	ConstraintTriggerPath   = "constraints.ConstraintTrigger"
)

// Keyword argument names.
const (
	KwargName        = "name"
	KwargExpressions = "expressions"
	KwargIndexType   = "index_type"
	KwargCondition   = "condition"
	KwargDeferrable  = "deferrable"
	KwargEvents      = "events"
	KwargFunction    = "function"
)

var allowedKwargs = map[string][]string{
	ExclusionConstraintPath: {KwargName, KwargExpressions, KwargIndexType, KwargCondition, KwargDeferrable},
	ConstraintTriggerPath:   {KwargName, KwargEvents, KwargFunction, KwargCondition, KwargDeferrable},
}

// Deconstruction is the reconstructable description of a constraint. Kwargs
// only carry the optional arguments that differ from their defaults.
type Deconstruction struct {
	Path   string
	Kwargs map[string]any
}

// Keys returns the keyword names in sorted order.
func (d Deconstruction) Keys() []string {
	keys := make([]string, 0, len(d.Kwargs))
	for k := range d.Kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reconstruct builds the constraint described by d.
//
// Kwargs may hold the typed values produced by Deconstruct or looser forms
// read from documents: expression pairs as two-element []any, events as
// strings, deferrable modes by name. Malformed values yield a
// *ValidationError.
func Reconstruct(d Deconstruction) (Constraint, error) {
	allowed, ok := allowedKwargs[d.Path]
	if !ok {
		return nil, newValidationError("", "unknown constraint path %q", d.Path)
	}
	name, _ := d.Kwargs[KwargName].(string)
	for _, k := range d.Keys() {
		if !slices.Contains(allowed, k) {
			return nil, newValidationError(name, "unexpected argument %q", k)
		}
	}
	if _, ok := d.Kwargs[KwargName].(string); !ok {
		return nil, newValidationError(name, "name must be a string, got %T", d.Kwargs[KwargName])
	}

	condition, err := toCondition(name, d.Kwargs[KwargCondition])
	if err != nil {
		return nil, err
	}
	deferrable, err := toDeferrable(name, d.Kwargs[KwargDeferrable])
	if err != nil {
		return nil, err
	}

	switch d.Path {
	case ExclusionConstraintPath:
		expressions, err := toExclusionExpressions(name, d.Kwargs[KwargExpressions])
		if err != nil {
			return nil, err
		}
		opts := []ExclusionOption{WithCondition(condition), WithDeferrable(deferrable)}
		if v, ok := d.Kwargs[KwargIndexType]; ok {
			s, err := toIndexType(name, v)
			if err != nil {
				return nil, err
			}
			opts = append(opts, WithIndexType(s))
		}
		c, err := NewExclusionConstraint(name, expressions, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		events, err := toEvents(name, d.Kwargs[KwargEvents])
		if err != nil {
			return nil, err
		}
		procedure, ok := d.Kwargs[KwargFunction].(*expr.Func)
		if !ok && d.Kwargs[KwargFunction] != nil {
			return nil, newValidationError(name, "function must be a function call, got %T", d.Kwargs[KwargFunction])
		}
		t, err := NewConstraintTrigger(name, events, procedure,
			WithTriggerCondition(condition), WithTriggerDeferrable(deferrable))
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

func toIndexType(name string, v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case IndexType:
		return string(t), nil
	}
	return "", newValidationError(name, "index_type must be a string, got %T", v)
}

func toCondition(name string, v any) (*expr.Q, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *expr.Q:
		return t, nil
	}
	return nil, newValidationError(name, "condition must be a boolean condition tree, got %T", v)
}

func toDeferrable(name string, v any) (ddl.Deferrable, error) {
	var d ddl.Deferrable
	switch t := v.(type) {
	case nil:
		return ddl.DeferrableUnset, nil
	case ddl.Deferrable:
		d = t
	case int:
		d = ddl.Deferrable(t)
	case string:
		parsed, err := ddl.ParseDeferrable(t)
		if err != nil {
			return ddl.DeferrableUnset, newValidationError(name, "%v", err)
		}
		d = parsed
	default:
		return ddl.DeferrableUnset, newValidationError(name, "deferrable must be a deferrable mode, got %T", v)
	}
	if !d.Valid() {
		return ddl.DeferrableUnset, newValidationError(name, "%v: %d", ddl.ErrInvalidDeferrable, int(d))
	}
	return d, nil
}

func toExclusionExpressions(name string, v any) ([]ExclusionExpression, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []ExclusionExpression:
		return t, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, newValidationError(name, "expressions must be a list of (expression, operator) pairs, got %T", v)
	}
	out := make([]ExclusionExpression, rv.Len())
	for i := range out {
		p, err := toExclusionExpression(rv.Index(i).Interface())
		if err != nil {
			return nil, newValidationError(name, "expression %d: %v", i, err)
		}
		out[i] = p
	}
	return out, nil
}

func toExclusionExpression(v any) (ExclusionExpression, error) {
	if p, ok := v.(ExclusionExpression); ok {
		return p, nil
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() != 2 {
		return ExclusionExpression{}, fmt.Errorf("must be an (expression, operator) pair, got %v", v)
	}
	e, ok := expr.ToExpression(rv.Index(0).Interface())
	if !ok {
		return ExclusionExpression{}, fmt.Errorf("unsupported expression %T", rv.Index(0).Interface())
	}
	op, ok := rv.Index(1).Interface().(string)
	if !ok {
		return ExclusionExpression{}, fmt.Errorf("operator must be a string, got %T", rv.Index(1).Interface())
	}
	return ExclusionExpression{Expression: e, Operator: op}, nil
}

func toEvents(name string, v any) ([]TriggerEvent, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []TriggerEvent:
		return t, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, newValidationError(name, "events must be a list, got %T", v)
	}
	out := make([]TriggerEvent, rv.Len())
	for i := range out {
		e, err := ToTriggerEvent(rv.Index(i).Interface())
		if err != nil {
			return nil, newValidationError(name, "event %d: %v", i, err)
		}
		out[i] = e
	}
	return out, nil
}
