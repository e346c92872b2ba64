package expr

import "slices"

// Query is the resolution context of a compilation: the table the expressions
// belong to and, optionally, its known columns.
type Query struct {
	Table string
	// Columns lists the columns of Table. When empty, column references are
	// bound without an existence check.
	Columns []string
}

// HasColumn reports whether name is a known column. Without a column list
// every name is accepted.
func (q *Query) HasColumn(name string) bool {
	if len(q.Columns) == 0 {
		return true
	}
	return slices.Contains(q.Columns, name)
}

// Compiler turns an expression into SQL text with positional placeholders and
// the matching argument list.
type Compiler interface {
	Compile(e Expression, q *Query) (sql string, args []any, err error)
}

// SQLCompiler is the default Compiler. Identifiers are quoted with the
// function supplied by the schema editor; literal values are always emitted as
// $n placeholders.
type SQLCompiler struct {
	quoteName func(string) string
}

var _ Compiler = (*SQLCompiler)(nil)

// NewCompiler creates a compiler quoting identifiers with quoteName.
func NewCompiler(quoteName func(string) string) *SQLCompiler {
	return &SQLCompiler{quoteName: quoteName}
}

// Compile resolves e against q and renders it. All failures are returned as
// *CompilationError.
func (c *SQLCompiler) Compile(e Expression, q *Query) (string, []any, error) {
	if e == nil {
		return "", nil, &CompilationError{Err: ErrNilExpression}
	}
	resolved, err := e.Resolve(q)
	if err != nil {
		return "", nil, asCompilationError(e, err)
	}
	b := NewBuilder(c.quoteName)
	sql, err := resolved.Compile(b)
	if err != nil {
		return "", nil, asCompilationError(e, err)
	}
	return sql, b.Args(), nil
}
