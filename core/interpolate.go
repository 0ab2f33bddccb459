package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shrek82/datagate/crypt"
	"github.com/shrek82/datagate/dialect"
)

// Interpolate renders sql with args spliced in as literals, for dry runs and
// debugging. The output is never executed. Strings go through the dialect's
// literal escaping, a crypt.Secret renders as '[REDACTED]' and a
// crypt.Plaintext renders as the value it wraps.
func Interpolate(d dialect.Dialect, sql string, args []any) string {
	var sb strings.Builder
	sb.Grow(len(sql) + 16*len(args))

	next := 0
	var q quoteState
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case q.step(c):
			sb.WriteByte(c)
		case c == '?':
			sb.WriteString(literal(d, args, next))
			next++
		case c == '$' && i+1 < len(sql) && isDigit(sql[i+1]):
			j := i + 1
			for j < len(sql) && isDigit(sql[j]) {
				j++
			}
			n, _ := strconv.Atoi(sql[i+1 : j])
			sb.WriteString(literal(d, args, n-1))
			i = j - 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func literal(d dialect.Dialect, args []any, i int) string {
	if i < 0 || i >= len(args) {
		return "?"
	}
	switch v := args[i].(type) {
	case nil:
		return "NULL"
	case crypt.Secret:
		return dialect.QuoteLiteral(d, "[REDACTED]")
	case crypt.Plaintext:
		return literal(d, []any{v.Unwrap()}, 0)
	case string:
		return dialect.QuoteLiteral(d, v)
	case []byte:
		return dialect.QuoteLiteral(d, string(v))
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return d.BoolLiteral(v)
	case time.Time:
		return dialect.QuoteLiteral(d, v.Format("2006-01-02 15:04:05.999999"))
	}
	return dialect.QuoteLiteral(d, fmt.Sprint(args[i]))
}
