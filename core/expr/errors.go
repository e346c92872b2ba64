package expr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownColumn is returned when a column reference does not exist on the
	// table the expression is resolved against.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrUnknownRow is returned for row references other than NEW and OLD.
	ErrUnknownRow = errors.New("unknown row reference")
	// ErrUnsupportedLookup is returned for lookup types the compiler cannot render.
	ErrUnsupportedLookup = errors.New("unsupported lookup")
	// ErrEmptyCondition is returned when a condition has no children.
	ErrEmptyCondition = errors.New("empty condition")
	// ErrEmptyFunctionName is returned when a call has no function name.
	ErrEmptyFunctionName = errors.New("empty function name")
	// ErrPlaceholderMismatch is returned when placeholders and arguments disagree.
	ErrPlaceholderMismatch = errors.New("placeholder and argument count mismatch")
	// ErrNilExpression is returned when a nil expression is compiled.
	ErrNilExpression = errors.New("nil expression")
)

// CompilationError reports an expression that could not be turned into SQL.
type CompilationError struct {
	// Expr is the textual form of the offending expression
	Expr string
	Err  error
}

func (e *CompilationError) Error() string {
	if e.Expr == "" {
		return fmt.Sprintf("compile expression: %v", e.Err)
	}
	return fmt.Sprintf("compile expression %s: %v", e.Expr, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// asCompilationError leaves compilation errors untouched and wraps anything else.
func asCompilationError(e Expression, err error) error {
	var ce *CompilationError
	if errors.As(err, &ce) {
		return err
	}
	name := ""
	if e != nil {
		name = e.String()
	}
	return &CompilationError{Expr: name, Err: err}
}
