package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// QuoteFunc renders a Go value as a SQL literal.
type QuoteFunc func(v any) (string, error)

// Inline replaces the $n placeholders of sql with the quoted literal form of
// the corresponding argument. Placeholders inside quoted identifiers and string
// literals are left alone, including backslash escapes in E'...' strings.
// Every argument must be referenced at least once.
func Inline(sql string, args []any, quote QuoteFunc) (string, error) {
	var sb strings.Builder
	sb.Grow(len(sql))
	used := make([]bool, len(args))

	var inQuote byte
	escapes := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if inQuote != 0 {
			sb.WriteByte(ch)
			switch {
			case escapes && ch == '\\' && i+1 < len(sql):
				i++
				sb.WriteByte(sql[i])
			case ch == inQuote:
				inQuote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			inQuote = ch
			escapes = ch == '\'' && isEscapePrefix(sql, i)
			sb.WriteByte(ch)
			continue
		case '$':
		default:
			sb.WriteByte(ch)
			continue
		}

		j := i + 1
		for j < len(sql) && sql[j] >= '0' && sql[j] <= '9' {
			j++
		}
		if j == i+1 {
			sb.WriteByte(ch)
			continue
		}
		n, err := strconv.Atoi(sql[i+1 : j])
		if err != nil || n < 1 || n > len(args) {
			return "", &CompilationError{Err: fmt.Errorf("%w: placeholder $%s with %d arguments", ErrPlaceholderMismatch, sql[i+1:j], len(args))}
		}
		lit, err := quote(args[n-1])
		if err != nil {
			return "", &CompilationError{Err: fmt.Errorf("quote argument $%d: %w", n, err)}
		}
		sb.WriteString(strings.TrimSpace(lit))
		used[n-1] = true
		i = j - 1
	}

	for i, u := range used {
		if !u {
			return "", &CompilationError{Err: fmt.Errorf("%w: argument %d is not referenced", ErrPlaceholderMismatch, i+1)}
		}
	}
	return sb.String(), nil
}

// isEscapePrefix reports whether the quote at sql[i] opens an E'...' string.
func isEscapePrefix(sql string, i int) bool {
	if i == 0 || (sql[i-1] != 'E' && sql[i-1] != 'e') {
		return false
	}
	return i == 1 || !isIdentByte(sql[i-2])
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
