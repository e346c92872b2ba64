package constraints

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError with errors.Is.
var ErrValidation = errors.New("invalid constraint")

// ValidationError reports a constraint whose arguments violate a structural
// rule. It is raised at construction and is never transient.
type ValidationError struct {
	Constraint string
	Reason     string
}

func newValidationError(name, format string, args ...any) *ValidationError {
	return &ValidationError{Constraint: name, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%v %q: %s", ErrValidation, e.Constraint, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
