// Package expr provides the typed expression trees that constraint builders
// compile into SQL fragments.
//
// Expressions are immutable values. Resolving an expression against a Query
// returns a new tree with loose column references bound to the target table;
// compiling it through a Compiler yields SQL text with positional placeholders
// ($1, $2, ...) plus the matching argument list. DDL statements cannot carry
// bind parameters, so callers inline the arguments with Inline and a
// dialect-aware value quoter.
package expr

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Expression is a node of an expression tree.
type Expression interface {
	// Resolve binds loose references against the query context. A nil query
	// leaves references untouched.
	Resolve(q *Query) (Expression, error)
	// Compile renders the node, registering literal arguments on the builder.
	Compile(b *Builder) (string, error)
	// Equal reports structural equality.
	Equal(other Expression) bool
	fmt.Stringer
}

// Builder accumulates the arguments of a single compilation.
type Builder struct {
	quote func(string) string
	args  []any
}

// NewBuilder creates a builder that quotes identifiers with quoteName.
func NewBuilder(quoteName func(string) string) *Builder {
	return &Builder{quote: quoteName}
}

// Quote quotes an identifier.
func (b *Builder) Quote(name string) string {
	if b.quote == nil {
		return name
	}
	return b.quote(name)
}

// Arg registers a literal argument and returns its placeholder.
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// Args returns the arguments registered so far, in placeholder order.
func (b *Builder) Args() []any {
	out := make([]any, len(b.args))
	copy(out, b.args)
	return out
}

// Column references a column of the table being constrained.
//
// Columns compile to their quoted name only; DDL for a single table never
// qualifies column references with a table alias.
type Column struct {
	// Table is set by Resolve; it is empty for loose references.
	Table string
	// Name is the column name
	Name string
}

// Col creates a loose column reference.
//
// Example:
//
//	expr.Col("during")
func Col(name string) *Column {
	return &Column{Name: name}
}

func (c *Column) Resolve(q *Query) (Expression, error) {
	if q == nil {
		return c, nil
	}
	if !q.HasColumn(c.Name) {
		return nil, &CompilationError{Expr: c.String(), Err: fmt.Errorf("%w: %q on table %q", ErrUnknownColumn, c.Name, q.Table)}
	}
	return &Column{Table: q.Table, Name: c.Name}, nil
}

func (c *Column) Compile(b *Builder) (string, error) {
	return b.Quote(c.Name), nil
}

func (c *Column) Equal(other Expression) bool {
	o, ok := other.(*Column)
	return ok && o != nil && c.Name == o.Name && c.Table == o.Table
}

func (c *Column) String() string {
	return "Col(" + c.Name + ")"
}

// Row selects the NEW or OLD row image inside a trigger condition.
type Row string

const (
	NewRow Row = "NEW"
	OldRow Row = "OLD"
)

// RowColumn references a column of the NEW or OLD row in a trigger WHEN clause.
type RowColumn struct {
	Row  Row
	Name string
}

// New references a column of the row being written.
func New(name string) *RowColumn {
	return &RowColumn{Row: NewRow, Name: name}
}

// Old references a column of the row before the change.
func Old(name string) *RowColumn {
	return &RowColumn{Row: OldRow, Name: name}
}

func (r *RowColumn) Resolve(*Query) (Expression, error) {
	return r, nil
}

func (r *RowColumn) Compile(b *Builder) (string, error) {
	if r.Row != NewRow && r.Row != OldRow {
		return "", &CompilationError{Expr: r.String(), Err: fmt.Errorf("%w: %q", ErrUnknownRow, r.Row)}
	}
	return string(r.Row) + "." + b.Quote(r.Name), nil
}

func (r *RowColumn) Equal(other Expression) bool {
	o, ok := other.(*RowColumn)
	return ok && o != nil && r.Row == o.Row && r.Name == o.Name
}

func (r *RowColumn) String() string {
	return string(r.Row) + "." + r.Name
}

// Value is a literal bound as a parameter.
type Value struct {
	V any
}

// Val wraps a Go value as a literal.
func Val(v any) *Value {
	return &Value{V: v}
}

func (v *Value) Resolve(*Query) (Expression, error) {
	return v, nil
}

func (v *Value) Compile(b *Builder) (string, error) {
	return b.Arg(v.V), nil
}

func (v *Value) Equal(other Expression) bool {
	o, ok := other.(*Value)
	return ok && o != nil && reflect.DeepEqual(normalizeValue(v.V), normalizeValue(o.V))
}

func (v *Value) String() string {
	if s, ok := v.V.(string); ok {
		return "Value(" + strconv.Quote(s) + ")"
	}
	return fmt.Sprintf("Value(%v)", v.V)
}

// Func is a function or procedure call.
type Func struct {
	// Name is emitted verbatim and may be schema-qualified.
	Name string
	Args []Expression
}

// NewFunc creates a call expression. String arguments become column
// references, other non-expression arguments become literal values.
//
// Example:
//
//	expr.NewFunc("tstzrange", "starts_at", "ends_at", expr.Val("[)"))
func NewFunc(name string, args ...any) *Func {
	f := &Func{Name: name, Args: make([]Expression, 0, len(args))}
	for _, a := range args {
		f.Args = append(f.Args, asExpression(a, true))
	}
	return f
}

func (f *Func) Resolve(q *Query) (Expression, error) {
	args := make([]Expression, len(f.Args))
	for i, a := range f.Args {
		r, err := a.Resolve(q)
		if err != nil {
			return nil, err
		}
		args[i] = r
	}
	return &Func{Name: f.Name, Args: args}, nil
}

func (f *Func) Compile(b *Builder) (string, error) {
	if f.Name == "" {
		return "", &CompilationError{Expr: f.String(), Err: ErrEmptyFunctionName}
	}
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		sql, err := a.Compile(b)
		if err != nil {
			return "", err
		}
		parts[i] = sql
	}
	return f.Name + "(" + strings.Join(parts, ", ") + ")", nil
}

func (f *Func) Equal(other Expression) bool {
	o, ok := other.(*Func)
	if !ok || o == nil || f.Name != o.Name || len(f.Args) != len(o.Args) {
		return false
	}
	for i := range f.Args {
		if !f.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

func (f *Func) String() string {
	parts := make([]string, 0, len(f.Args)+1)
	parts = append(parts, f.Name)
	for _, a := range f.Args {
		parts = append(parts, a.String())
	}
	return "Func(" + strings.Join(parts, ", ") + ")"
}

// Raw is a verbatim SQL fragment. Placeholders inside SQL must use ? and are
// renumbered against Args when compiled.
type Raw struct {
	SQL  string
	Args []any
}

// RawSQL creates a verbatim fragment.
//
// Example:
//
//	expr.RawSQL("tstzrange(starts_at, ends_at, ?)", "[)")
func RawSQL(sql string, args ...any) *Raw {
	return &Raw{SQL: sql, Args: args}
}

func (r *Raw) Resolve(*Query) (Expression, error) {
	return r, nil
}

func (r *Raw) Compile(b *Builder) (string, error) {
	var sb strings.Builder
	next := 0
	for i := 0; i < len(r.SQL); i++ {
		if r.SQL[i] != '?' {
			sb.WriteByte(r.SQL[i])
			continue
		}
		if next >= len(r.Args) {
			return "", &CompilationError{Expr: r.String(), Err: ErrPlaceholderMismatch}
		}
		sb.WriteString(b.Arg(r.Args[next]))
		next++
	}
	if next != len(r.Args) {
		return "", &CompilationError{Expr: r.String(), Err: ErrPlaceholderMismatch}
	}
	return sb.String(), nil
}

func (r *Raw) Equal(other Expression) bool {
	o, ok := other.(*Raw)
	return ok && o != nil && r.SQL == o.SQL && reflect.DeepEqual(normalizeValue(r.Args), normalizeValue(o.Args))
}

func (r *Raw) String() string {
	return "RawSQL(" + strconv.Quote(r.SQL) + ")"
}

// ToExpression normalises loose input: expressions pass through, strings
// become column references. Anything else is rejected.
func ToExpression(v any) (Expression, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case Expression:
		if rv := reflect.ValueOf(t); rv.Kind() == reflect.Ptr && rv.IsNil() {
			return nil, false
		}
		return t, true
	case string:
		return Col(t), true
	}
	return nil, false
}

// asExpression converts call and lookup operands. When stringsAsColumns is
// false strings are treated as literals.
func asExpression(v any, stringsAsColumns bool) Expression {
	switch t := v.(type) {
	case Expression:
		return t
	case string:
		if stringsAsColumns {
			return Col(t)
		}
	}
	return Val(v)
}

// normalizeValue maps numeric kinds to int64/float64 and slices to []any so
// that values survive a serialisation round trip unchanged.
func normalizeValue(v any) any {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		return b
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	}
	return v
}
