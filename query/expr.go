// Package query provides a small predicate expression tree for WHERE clauses.
//
// Expressions always render to parameterized SQL: values become "?" placeholders
// and travel in the returned argument list, identifiers go through the dialect's
// quoting. There is no way to splice a raw literal into the output.
package query

import (
	"strings"
)

// Quoter quotes identifiers for a SQL dialect.
type Quoter interface {
	Quote(name string) string
}

// boolLiteraler is implemented by dialects whose constant predicates are not 1/0.
type boolLiteraler interface {
	BoolLiteral(v bool) string
}

func boolLiteral(q Quoter, v bool) string {
	if bl, ok := q.(boolLiteraler); ok {
		return bl.BoolLiteral(v)
	}
	if v {
		return "1"
	}
	return "0"
}

// Expr is a node of a predicate tree.
type Expr interface {
	// Build renders the expression with "?" placeholders and returns its arguments in order.
	Build(q Quoter) (string, []any)
}

// Op is a comparison operator.
type Op string

const (
	OpEq   Op = "="
	OpNe   Op = "<>"
	OpLt   Op = "<"
	OpLe   Op = "<="
	OpGt   Op = ">"
	OpGe   Op = ">="
	OpLike Op = "LIKE"
)

// Comparison compares a column with a bound value.
type Comparison struct {
	Column string
	Op     Op
	Value  any
}

func (c Comparison) Build(q Quoter) (string, []any) {
	return q.Quote(c.Column) + " " + string(c.Op) + " ?", []any{c.Value}
}

func Eq(column string, value any) Expr   { return Comparison{column, OpEq, value} }
func Ne(column string, value any) Expr   { return Comparison{column, OpNe, value} }
func Lt(column string, value any) Expr   { return Comparison{column, OpLt, value} }
func Le(column string, value any) Expr   { return Comparison{column, OpLe, value} }
func Gt(column string, value any) Expr   { return Comparison{column, OpGt, value} }
func Ge(column string, value any) Expr   { return Comparison{column, OpGe, value} }
func Like(column string, value any) Expr { return Comparison{column, OpLike, value} }

// NullCheck tests a column for NULL.
type NullCheck struct {
	Column string
	Not    bool
}

func (n NullCheck) Build(q Quoter) (string, []any) {
	if n.Not {
		return q.Quote(n.Column) + " IS NOT NULL", nil
	}
	return q.Quote(n.Column) + " IS NULL", nil
}

func IsNull(column string) Expr  { return NullCheck{Column: column} }
func NotNull(column string) Expr { return NullCheck{Column: column, Not: true} }

// Membership tests a column against a list of values.
// An empty list matches nothing.
type Membership struct {
	Column string
	Values []any
}

func (m Membership) Build(q Quoter) (string, []any) {
	if len(m.Values) == 0 {
		return "1 = 0", nil
	}
	placeholders := make([]string, len(m.Values))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	args := make([]any, len(m.Values))
	copy(args, m.Values)
	return q.Quote(m.Column) + " IN (" + strings.Join(placeholders, ", ") + ")", args
}

func In(column string, values ...any) Expr { return Membership{Column: column, Values: values} }

// Conjunction joins its terms with AND (or OR when Any is set).
// An empty AND is true ("1"), an empty OR is false ("0"), spelled the dialect's way.
type Conjunction struct {
	Terms []Expr
	Any   bool
}

func (c Conjunction) Build(q Quoter) (string, []any) {
	if len(c.Terms) == 0 {
		return boolLiteral(q, !c.Any), nil
	}
	sep := " AND "
	if c.Any {
		sep = " OR "
	}

	var sb strings.Builder
	var args []any
	for i, t := range c.Terms {
		if i > 0 {
			sb.WriteString(sep)
		}
		sql, a := t.Build(q)
		if needsParens(t) && len(c.Terms) > 1 {
			sb.WriteString("(")
			sb.WriteString(sql)
			sb.WriteString(")")
		} else {
			sb.WriteString(sql)
		}
		args = append(args, a...)
	}
	return sb.String(), args
}

func And(terms ...Expr) Expr { return Conjunction{Terms: terms} }
func Or(terms ...Expr) Expr  { return Conjunction{Terms: terms, Any: true} }

// Negation negates its term.
type Negation struct {
	Term Expr
}

func (n Negation) Build(q Quoter) (string, []any) {
	sql, args := n.Term.Build(q)
	return "NOT (" + sql + ")", args
}

func Not(term Expr) Expr { return Negation{Term: term} }

func needsParens(e Expr) bool {
	c, ok := e.(Conjunction)
	return ok && len(c.Terms) > 1
}
