package query

import (
	"github.com/shrek82/datagate/model"
)

// Match converts a predicate record into an AND of equality terms, one per column
// in record order. An empty or nil record yields the always-true "1".
func Match(rec *model.Record) Expr {
	terms := make([]Expr, 0, rec.Len())
	rec.Range(func(col string, v any) bool {
		terms = append(terms, Eq(col, v))
		return true
	})
	return And(terms...)
}
