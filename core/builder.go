package core

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shrek82/datagate/crypt"
	"github.com/shrek82/datagate/dialect"
	"github.com/shrek82/datagate/model"
	"github.com/shrek82/datagate/query"
)

// SelectOptions adjusts a select beyond the column list and predicate record.
type SelectOptions struct {
	// Encrypted lists the columns to decrypt in the select list.
	Encrypted crypt.ColumnSet
	// Where replaces the predicate record when set.
	Where query.Expr
	// Extra is appended after the WHERE clause, e.g. "ORDER BY id LIMIT 10".
	// It must not contain statement separators, comments, placeholders,
	// unbalanced quotes or DDL/DML keywords; "FOR UPDATE" is allowed.
	Extra string
}

// Builder composes parameterized single-table statements for one dialect.
// Values are always bound; identifiers always go through the dialect's quoting.
type Builder struct {
	dialect   dialect.Dialect
	mapper    *crypt.Mapper
	keyColumn string
}

// NewBuilder creates a Builder. keyColumn names the generated key read back
// after an insert on dialects that need a RETURNING clause.
func NewBuilder(d dialect.Dialect, key crypt.Secret, keyColumn string) *Builder {
	return &Builder{
		dialect:   d,
		mapper:    crypt.NewMapper(d, key),
		keyColumn: keyColumn,
	}
}

// Dialect returns the builder's dialect.
func (b *Builder) Dialect() dialect.Dialect {
	return b.dialect
}

var bufPool = sync.Pool{
	New: func() any {
		return new(strings.Builder)
	},
}

func getBuf() *strings.Builder {
	sb := bufPool.Get().(*strings.Builder)
	sb.Reset()
	return sb
}

func putBuf(sb *strings.Builder) {
	bufPool.Put(sb)
}

// BuildSelect generates a SELECT over table.
//
// Columns in opts.Encrypted are decrypted and aliased back to their own name; an
// empty column list selects "*". The WHERE clause is the AND of col = ? terms from
// where in record order, opts.Where when set, and the always-true predicate
// when neither has terms. Args are the decrypt keys in select list order
// followed by predicate values.
func (b *Builder) BuildSelect(table string, columns []string, where *model.Record, opts *SelectOptions) (string, []any, error) {
	if table == "" {
		return "", nil, fmt.Errorf("%w: empty table name", ErrInvalidQuery)
	}
	if opts == nil {
		opts = &SelectOptions{}
	}
	if opts.Extra != "" && !isSafeExtra(opts.Extra) {
		return "", nil, fmt.Errorf("%w: unsafe trailing clause %q", ErrInvalidQuery, opts.Extra)
	}

	sb := getBuf()
	defer putBuf(sb)

	var args []any
	sb.WriteString("SELECT ")
	if len(columns) == 0 {
		sb.WriteString("*")
	}
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		expr, a, err := b.mapper.ForRead(col, opts.Encrypted)
		if err != nil {
			return "", nil, fmt.Errorf("column %s: %w", col, err)
		}
		sb.WriteString(expr)
		args = append(args, a...)
	}

	sb.WriteString(" FROM ")
	sb.WriteString(b.dialect.Quote(table))

	pred := opts.Where
	if pred == nil {
		pred = query.Match(where)
	}
	cond, condArgs := pred.Build(b.dialect)
	sb.WriteString(" WHERE ")
	sb.WriteString(cond)
	args = append(args, condArgs...)

	if opts.Extra != "" {
		sb.WriteString(" ")
		sb.WriteString(strings.TrimSpace(opts.Extra))
	}

	return b.replacePlaceholders(sb.String()), args, nil
}

// BuildInsert generates an INSERT of rec into table. Columns in encrypted are
// stored through the dialect's encrypt function; each such value is followed by
// the key in args. When the dialect reads generated keys through RETURNING and rec
// carries no key column, the clause is appended and returning is true.
func (b *Builder) BuildInsert(table string, rec *model.Record, encrypted crypt.ColumnSet) (sql string, args []any, returning bool, err error) {
	if table == "" {
		return "", nil, false, fmt.Errorf("%w: empty table name", ErrInvalidQuery)
	}
	if rec.Len() == 0 {
		return "", nil, false, fmt.Errorf("%w: insert into %s without columns", ErrInvalidQuery, table)
	}

	columns := make([]string, 0, rec.Len())
	values := make([]string, 0, rec.Len())
	args = make([]any, 0, rec.Len())
	rec.Range(func(col string, v any) bool {
		var expr string
		var a []any
		expr, a, err = b.mapper.ForWrite(col, v, encrypted)
		if err != nil {
			err = fmt.Errorf("column %s: %w", col, err)
			return false
		}
		columns = append(columns, b.dialect.Quote(col))
		values = append(values, expr)
		args = append(args, a...)
		return true
	})
	if err != nil {
		return "", nil, false, err
	}

	sql = b.dialect.InsertSQL(table, columns, values)
	if b.keyColumn != "" && !rec.Has(b.keyColumn) {
		if clause := b.dialect.Returning(b.keyColumn); clause != "" {
			sql += clause
			returning = true
		}
	}
	return b.replacePlaceholders(sql), args, returning, nil
}

// BuildUpdate generates an UPDATE of table setting the columns of rec on the
// rows matching where.
//
// An empty where renders the always-true predicate and the statement updates
// every row of the table. Callers that mean to touch a subset must pass a
// non-empty predicate.
func (b *Builder) BuildUpdate(table string, where, rec *model.Record, encrypted crypt.ColumnSet) (string, []any, error) {
	if table == "" {
		return "", nil, fmt.Errorf("%w: empty table name", ErrInvalidQuery)
	}
	if rec.Len() == 0 {
		return "", nil, fmt.Errorf("%w: update of %s without columns", ErrInvalidQuery, table)
	}

	sb := getBuf()
	defer putBuf(sb)

	args := make([]any, 0, rec.Len()+where.Len())
	sb.WriteString("UPDATE ")
	sb.WriteString(b.dialect.Quote(table))
	sb.WriteString(" SET ")

	var err error
	i := 0
	rec.Range(func(col string, v any) bool {
		var expr string
		var a []any
		expr, a, err = b.mapper.ForWrite(col, v, encrypted)
		if err != nil {
			err = fmt.Errorf("column %s: %w", col, err)
			return false
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.dialect.Quote(col))
		sb.WriteString(" = ")
		sb.WriteString(expr)
		args = append(args, a...)
		i++
		return true
	})
	if err != nil {
		return "", nil, err
	}

	cond, condArgs := query.Match(where).Build(b.dialect)
	sb.WriteString(" WHERE ")
	sb.WriteString(cond)
	args = append(args, condArgs...)

	return b.replacePlaceholders(sb.String()), args, nil
}

// replacePlaceholders rewrites "?" markers to the dialect's numbered form.
// Markers inside quoted identifiers and literals are left alone.
func (b *Builder) replacePlaceholders(sql string) string {
	if !strings.Contains(sql, "?") || b.dialect.Placeholder(1) == "?" {
		return sql
	}

	var sb strings.Builder
	sb.Grow(len(sql) + 8)
	var q quoteState
	index := 1
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if !q.step(c) && c == '?' {
			sb.WriteString(b.dialect.Placeholder(index))
			index++
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// quoteState tracks a byte-wise scan through SQL text. It holds the open quote
// character, or zero outside quotes. A doubled quote closes and reopens, which
// keeps escaped quotes inside the region.
type quoteState byte

// step consumes c and reports whether c is quoted text or a quote delimiter.
func (q *quoteState) step(c byte) bool {
	switch {
	case *q != 0:
		if c == byte(*q) {
			*q = 0
		}
		return true
	case c == '\'' || c == '"' || c == '`':
		*q = quoteState(c)
		return true
	}
	return false
}

func isSafeExtra(clause string) bool {
	upper := strings.ToUpper(clause)
	// Check for forbidden characters/sequences that indicate multiple statements or comments
	forbidden := []string{";", "--", "/*", "*/", "?"}
	for _, s := range forbidden {
		if strings.Contains(upper, s) {
			return false
		}
	}

	var q quoteState
	for i := 0; i < len(clause); i++ {
		q.step(clause[i])
	}
	if q != 0 {
		return false
	}

	fields := strings.FieldsFunc(upper, func(r rune) bool {
		return !(r == '_' || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	})
	for i, f := range fields {
		switch f {
		case "UPDATE":
			// row locking: SELECT ... FOR UPDATE
			if i > 0 && fields[i-1] == "FOR" {
				continue
			}
			return false
		case "DROP", "DELETE", "INSERT", "TRUNCATE", "ALTER", "CREATE", "UNION", "GRANT":
			return false
		}
	}
	return true
}
