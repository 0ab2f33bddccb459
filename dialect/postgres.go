package dialect

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// PostgreSQL dialect implementation
type postgres struct{}

func init() {
	pg := &postgres{}
	Register("postgres", pg)
	Register("postgresql", pg)
}

func (d *postgres) Name() string {
	return "postgres"
}

func (d *postgres) DriverName() string {
	return "postgres"
}

// DSN builds a postgres:// URL and lets pq normalize it into its key/value form.
// sslmode defaults to disable unless given in Params.
func (d *postgres) DSN(p ConnParams) (string, error) {
	port := p.Port
	if port == 0 {
		port = 5432
	}
	q := url.Values{}
	for k, v := range p.Params {
		q.Set(k, v)
	}
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(port)),
		Path:     "/" + p.Database,
		RawQuery: q.Encode(),
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	dsn, err := pq.ParseURL(u.String())
	if err != nil {
		return "", fmt.Errorf("building postgres dsn: %w", err)
	}
	return dsn, nil
}

func (d *postgres) Quote(name string) string {
	// PostgreSQL uses double quotes for identifiers
	return quoteIdent(name, `"`)
}

// EscapeLiteral doubles single quotes. Double quotes are inert inside a
// standard-conforming single-quoted literal and pass through.
func (d *postgres) EscapeLiteral(text string) string {
	return strings.ReplaceAll(text, "'", "''")
}

func (d *postgres) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *postgres) BoolLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func (d *postgres) InsertSQL(table string, columns []string, values []string) string {
	return insertSQL(d, table, columns, values)
}

// Returning reads the generated key back, since lib/pq does not implement LastInsertId.
func (d *postgres) Returning(column string) string {
	return " RETURNING " + d.Quote(column)
}

// EncryptExpr uses pgcrypto; the extension must be installed in the database.
func (d *postgres) EncryptExpr() string {
	return "pgp_sym_encrypt(CAST(? AS text), ?)"
}

func (d *postgres) DecryptExpr(quotedColumn string) string {
	return "pgp_sym_decrypt(" + quotedColumn + ", ?)"
}
