package dialect

import (
	"sort"
	"strings"
	"sync"
)

// Dialect represents the interface for database-specific SQL generation.
// Each database (MySQL, PostgreSQL, SQLite) implements it to be supported.
type Dialect interface {
	// Name returns the dialect's registry name.
	Name() string
	// DriverName returns the database/sql driver to open connections with.
	DriverName() string
	// DSN builds the driver connection string.
	DSN(p ConnParams) (string, error)
	// Quote wraps a name (table or column) in database-specific quotes
	Quote(name string) string
	// EscapeLiteral escapes text for use inside a single-quoted SQL literal.
	// It is a defence-in-depth measure for the few places a value cannot be bound.
	EscapeLiteral(text string) string
	// Placeholder returns the bind marker for the 1-based argument index.
	Placeholder(index int) string
	// BoolLiteral renders a constant predicate.
	BoolLiteral(v bool) string
	// InsertSQL generates the INSERT statement for already quoted columns and value expressions.
	InsertSQL(table string, columns []string, values []string) string
	// Returning returns the clause appended to an INSERT to read back a generated key,
	// or "" when the driver reports it through LastInsertId.
	Returning(column string) string
	// EncryptExpr returns the value expression encrypting "?" (value) under "?" (key).
	EncryptExpr() string
	// DecryptExpr returns the expression decrypting a quoted column under "?" (key).
	DecryptExpr(quotedColumn string) string
}

// ConnParams are the connection URL components of a pool configuration.
type ConnParams struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Params   map[string]string
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// Register registers a new dialect for a given name
func Register(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// Get retrieves a registered dialect by name
func Get(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// Names returns the registered dialect names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// QuoteLiteral renders text as a complete single-quoted literal for d.
func QuoteLiteral(d Dialect, text string) string {
	return "'" + d.EscapeLiteral(text) + "'"
}

// quoteIdent quotes each dot-separated part of name with q, doubling embedded quotes.
// A bare "*" is left alone so qualified wildcards keep working.
func quoteIdent(name string, q string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "*" {
			continue
		}
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, ".")
}

func insertSQL(d Dialect, table string, columns []string, values []string) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(d.Quote(table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.Join(values, ", "))
	sb.WriteString(")")
	return sb.String()
}

func boolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
