package expr_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/pgconstraints/core/expr"
)

func quoteLiteral(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'", nil
	case int, int64, bool:
		return fmt.Sprint(t), nil
	}
	return "", errors.New("unsupported")
}

func TestInline(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		args     []any
		expected string
	}{
		{
			name:     "single placeholder",
			sql:      `"status" = $1`,
			args:     []any{"active"},
			expected: `"status" = 'active'`,
		},
		{
			name:     "escapes quotes",
			sql:      `"name" = $1`,
			args:     []any{"O'Brien"},
			expected: `"name" = 'O''Brien'`,
		},
		{
			name:     "double digit placeholders",
			sql:      `f($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			args:     []any{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			expected: `f(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)`,
		},
		{
			name:     "placeholder-like text inside quoted identifier is kept",
			sql:      `"price$1" > $1`,
			args:     []any{0},
			expected: `"price$1" > 0`,
		},
		{
			name:     "placeholder-like text inside literal is kept",
			sql:      `"a" = '$1' AND "b" = $1`,
			args:     []any{true},
			expected: `"a" = '$1' AND "b" = true`,
		},
		{
			name:     "escaped quote inside escape string is kept",
			sql:      `"note" = E'it\'s $1' AND "id" = $1`,
			args:     []any{7},
			expected: `"note" = E'it\'s $1' AND "id" = 7`,
		},
		{
			name:     "backslash in standard string ends at the quote",
			sql:      `"path" = date'x\' AND "id" = $1`,
			args:     []any{7},
			expected: `"path" = date'x\' AND "id" = 7`,
		},
		{
			name:     "dollar without digits",
			sql:      `"a" = $`,
			args:     nil,
			expected: `"a" = $`,
		},
		{
			name:     "repeated placeholder",
			sql:      `$1 + $1`,
			args:     []any{2},
			expected: `2 + 2`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)

			out, err := expr.Inline(tt.sql, tt.args, quoteLiteral)
			c.Assert(err, qt.IsNil)
			c.Assert(out, qt.Equals, tt.expected)
		})
	}
}

func TestInline_Errors(t *testing.T) {
	c := qt.New(t)

	_, err := expr.Inline(`$2`, []any{1}, quoteLiteral)
	c.Assert(err, qt.ErrorIs, expr.ErrPlaceholderMismatch)

	_, err = expr.Inline(`$1`, []any{1, 2}, quoteLiteral)
	c.Assert(err, qt.ErrorIs, expr.ErrPlaceholderMismatch)

	_, err = expr.Inline(`$1`, []any{3.5}, quoteLiteral)
	c.Assert(err, qt.ErrorMatches, `compile expression: quote argument \$1: unsupported`)
}
