package adapter

import (
	"database/sql"
	"strconv"
	"strings"
)

// ParamName returns the name bound to the i-th (0-based) positional parameter
// by engines that only accept named parameters.
func ParamName(i int) string {
	return "param" + strconv.Itoa(i)
}

// RewritePlaceholders replaces every positional ? in query with
// prefix+ParamName(i), numbering from 0 in order of appearance. Question marks
// inside string literals, quoted identifiers and comments are left alone.
// It returns the rewritten query and the number of placeholders found.
func RewritePlaceholders(query, prefix string) (string, int) {
	if !strings.Contains(query, "?") {
		return query, 0
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0

	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := skipQuoted(query, i, c)
			b.WriteString(query[i:end])
			i = end - 1
		case c == '[':
			end := skipQuoted(query, i, ']')
			b.WriteString(query[i:end])
			i = end - 1
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			b.WriteString(query[i : i+end])
			i += end - 1
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				end = len(query)
			} else {
				end = i + 2 + end + 2
			}
			b.WriteString(query[i:end])
			i = end - 1
		case c == '?':
			b.WriteString(prefix)
			b.WriteString(ParamName(n))
			n++
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), n
}

// skipQuoted returns the index just past the quoted run starting at start.
// A doubled closing character is an escape and does not end the run.
func skipQuoted(s string, start int, closing byte) int {
	for i := start + 1; i < len(s); i++ {
		if s[i] != closing {
			continue
		}
		if i+1 < len(s) && s[i+1] == closing {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

// NamedArgs binds params to ParamName(0..n-1) for drivers that take sql.Named.
func NamedArgs(params []any) []any {
	args := make([]any, len(params))
	for i, v := range params {
		args[i] = sql.Named(ParamName(i), v)
	}
	return args
}
