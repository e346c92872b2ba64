package expr

import (
	"errors"
	"fmt"
)

// Node kinds used by Encode and Decode.
const (
	KindColumn    = "col"
	KindRowColumn = "row"
	KindValue     = "value"
	KindFunc      = "func"
	KindRaw       = "raw"
	KindQ         = "q"
	KindLookup    = "lookup"
)

// TypeFloat marks a literal that must decode as a float. YAML writes whole
// floats such as 2.0 as 2, which would otherwise read back as an integer.
const TypeFloat = "float"

// ErrUnknownKind is returned when decoding a node of an unknown kind.
var ErrUnknownKind = errors.New("unknown expression kind")

// Node is the serialisable form of an expression tree. It is shaped for YAML
// and JSON documents that record schema history.
type Node struct {
	Kind      string   `yaml:"kind" json:"kind"`
	Table     string   `yaml:"table,omitempty" json:"table,omitempty"`
	Name      string   `yaml:"name,omitempty" json:"name,omitempty"`
	Row       string   `yaml:"row,omitempty" json:"row,omitempty"`
	Value     any      `yaml:"value,omitempty" json:"value,omitempty"`
	Type      string   `yaml:"type,omitempty" json:"type,omitempty"`
	SQL       string   `yaml:"sql,omitempty" json:"sql,omitempty"`
	Values    []any    `yaml:"values,omitempty" json:"values,omitempty"`
	Types     []string `yaml:"types,omitempty" json:"types,omitempty"`
	Args      []*Node  `yaml:"args,omitempty" json:"args,omitempty"`
	Lookup    string   `yaml:"lookup,omitempty" json:"lookup,omitempty"`
	LHS       *Node    `yaml:"lhs,omitempty" json:"lhs,omitempty"`
	RHS       *Node    `yaml:"rhs,omitempty" json:"rhs,omitempty"`
	Connector string   `yaml:"connector,omitempty" json:"connector,omitempty"`
	Negated   bool     `yaml:"negated,omitempty" json:"negated,omitempty"`
	Children  []*Node  `yaml:"children,omitempty" json:"children,omitempty"`
}

// Encode converts an expression tree into its serialisable form.
func Encode(e Expression) (*Node, error) {
	switch t := e.(type) {
	case nil:
		return nil, nil
	case *Column:
		return &Node{Kind: KindColumn, Table: t.Table, Name: t.Name}, nil
	case *RowColumn:
		return &Node{Kind: KindRowColumn, Row: string(t.Row), Name: t.Name}, nil
	case *Value:
		v := normalizeValue(t.V)
		if list, ok := v.([]any); ok {
			return &Node{Kind: KindValue, Value: list, Types: listTypes(list)}, nil
		}
		return &Node{Kind: KindValue, Value: v, Type: valueType(v)}, nil
	case *Raw:
		values, _ := normalizeValue(t.Args).([]any)
		return &Node{Kind: KindRaw, SQL: t.SQL, Values: values, Types: listTypes(values)}, nil
	case *Func:
		if t == nil {
			return nil, nil
		}
		args, err := encodeList(t.Args)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindFunc, Name: t.Name, Args: args}, nil
	case *Lookup:
		lhs, err := Encode(t.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := Encode(t.RHS)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindLookup, Lookup: string(t.Op), LHS: lhs, RHS: rhs}, nil
	case *Q:
		if t == nil {
			return nil, nil
		}
		children := make([]*Node, len(t.Children))
		for i, c := range t.Children {
			n, err := Encode(c)
			if err != nil {
				return nil, err
			}
			children[i] = n
		}
		return &Node{Kind: KindQ, Connector: string(t.connector()), Negated: t.Negated, Children: children}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownKind, e)
}

func encodeList(list []Expression) ([]*Node, error) {
	out := make([]*Node, len(list))
	for i, e := range list {
		n, err := Encode(e)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// Decode rebuilds an expression tree from its serialisable form.
func Decode(n *Node) (Expression, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case KindColumn:
		return &Column{Table: n.Table, Name: n.Name}, nil
	case KindRowColumn:
		return &RowColumn{Row: Row(n.Row), Name: n.Name}, nil
	case KindValue:
		v := normalizeValue(n.Value)
		if list, ok := v.([]any); ok {
			return &Value{V: restoreList(list, n.Types)}, nil
		}
		return &Value{V: restoreValue(v, n.Type)}, nil
	case KindRaw:
		var args []any
		if n.Values != nil {
			args = restoreList(normalizeValue(n.Values).([]any), n.Types)
		}
		return &Raw{SQL: n.SQL, Args: args}, nil
	case KindFunc:
		f := &Func{Name: n.Name, Args: make([]Expression, len(n.Args))}
		for i, a := range n.Args {
			arg, err := Decode(a)
			if err != nil {
				return nil, err
			}
			f.Args[i] = arg
		}
		return f, nil
	case KindLookup:
		lhs, err := Decode(n.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := Decode(n.RHS)
		if err != nil {
			return nil, err
		}
		return &Lookup{LHS: lhs, Op: LookupType(n.Lookup), RHS: rhs}, nil
	case KindQ:
		return DecodeCondition(n)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
}

// DecodeCondition decodes a node that must describe a boolean condition tree.
func DecodeCondition(n *Node) (*Q, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind != KindQ {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrUnknownKind, KindQ, n.Kind)
	}
	q := &Q{Connector: Connector(n.Connector), Negated: n.Negated, Children: make([]Condition, len(n.Children))}
	if q.Connector == "" {
		q.Connector = AND
	}
	for i, c := range n.Children {
		child, err := Decode(c)
		if err != nil {
			return nil, err
		}
		cond, ok := child.(Condition)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a condition", ErrUnknownKind, c.Kind)
		}
		q.Children[i] = cond
	}
	return q, nil
}

// DecodeFunc decodes a node that must describe a function call.
func DecodeFunc(n *Node) (*Func, error) {
	e, err := Decode(n)
	if err != nil {
		return nil, err
	}
	f, ok := e.(*Func)
	if !ok {
		return nil, fmt.Errorf("%w: expected %q", ErrUnknownKind, KindFunc)
	}
	return f, nil
}

func valueType(v any) string {
	if _, ok := v.(float64); ok {
		return TypeFloat
	}
	return ""
}

// listTypes returns the per-element types of list, or nil when no element
// needs one.
func listTypes(list []any) []string {
	var types []string
	for i, v := range list {
		typ := valueType(v)
		if typ == "" {
			continue
		}
		if types == nil {
			types = make([]string, len(list))
		}
		types[i] = typ
	}
	return types
}

func restoreValue(v any, typ string) any {
	if typ != TypeFloat {
		return v
	}
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return v
}

func restoreList(list []any, types []string) []any {
	for i := range list {
		if i < len(types) {
			list[i] = restoreValue(list[i], types[i])
		}
	}
	return list
}
