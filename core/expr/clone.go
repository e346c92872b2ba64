package expr

import "reflect"

// Clone returns a deep copy of an expression tree. Slices held by literal
// values are copied too. Expression types defined outside this package are
// returned as is.
func Clone(e Expression) Expression {
	switch t := e.(type) {
	case *Column:
		if t == nil {
			return t
		}
		c := *t
		return &c
	case *RowColumn:
		if t == nil {
			return t
		}
		c := *t
		return &c
	case *Value:
		if t == nil {
			return t
		}
		return &Value{V: cloneValue(t.V)}
	case *Raw:
		if t == nil {
			return t
		}
		var args []any
		if t.Args != nil {
			args = make([]any, len(t.Args))
			for i, a := range t.Args {
				args[i] = cloneValue(a)
			}
		}
		return &Raw{SQL: t.SQL, Args: args}
	case *Func:
		return CloneFunc(t)
	case *Lookup:
		if t == nil {
			return t
		}
		return &Lookup{LHS: Clone(t.LHS), Op: t.Op, RHS: Clone(t.RHS)}
	case *Q:
		return CloneCondition(t)
	}
	return e
}

// CloneCondition returns a deep copy of a condition tree.
func CloneCondition(q *Q) *Q {
	if q == nil {
		return nil
	}
	var children []Condition
	if q.Children != nil {
		children = make([]Condition, len(q.Children))
		for i, c := range q.Children {
			if cc, ok := Clone(c).(Condition); ok {
				children[i] = cc
			}
		}
	}
	return &Q{Connector: q.Connector, Negated: q.Negated, Children: children}
}

// CloneFunc returns a deep copy of a call expression.
func CloneFunc(f *Func) *Func {
	if f == nil {
		return nil
	}
	var args []Expression
	if f.Args != nil {
		args = make([]Expression, len(f.Args))
		for i, a := range f.Args {
			args[i] = Clone(a)
		}
	}
	return &Func{Name: f.Name, Args: args}
}

func cloneValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.IsNil() {
		return v
	}
	out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(out, rv)
	return out.Interface()
}
