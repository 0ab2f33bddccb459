package dialect

import (
	"database/sql"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/shrek82/datagate/crypt"
)

// SQLiteDriverName is the driver registered with the aes_encrypt/aes_decrypt SQL functions.
const SQLiteDriverName = "sqlite3_aes"

// SQLite dialect implementation
type sqlite3Dialect struct{}

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("aes_encrypt", crypt.SQLEncrypt, true); err != nil {
				return err
			}
			return conn.RegisterFunc("aes_decrypt", crypt.SQLDecrypt, true)
		},
	})
	sqlx.BindDriver(SQLiteDriverName, sqlx.QUESTION)

	d := &sqlite3Dialect{}
	Register("sqlite3", d)
	Register("sqlite", d)
}

func (d *sqlite3Dialect) Name() string {
	return "sqlite3"
}

func (d *sqlite3Dialect) DriverName() string {
	return SQLiteDriverName
}

// DSN treats Database as a file path. ":memory:" becomes a shared-cache
// in-memory database so every pooled connection sees the same data.
func (d *sqlite3Dialect) DSN(p ConnParams) (string, error) {
	q := url.Values{}
	for k, v := range p.Params {
		q.Set(k, v)
	}
	if q.Get("_busy_timeout") == "" {
		q.Set("_busy_timeout", "5000")
	}

	path := p.Database
	if path == ":memory:" || path == "" {
		path = ":memory:"
		q.Set("cache", "shared")
	}
	return "file:" + path + "?" + q.Encode(), nil
}

func (d *sqlite3Dialect) Quote(name string) string {
	return quoteIdent(name, "`")
}

// EscapeLiteral doubles single quotes; SQLite does not treat backslash specially.
func (d *sqlite3Dialect) EscapeLiteral(text string) string {
	return strings.ReplaceAll(text, "'", "''")
}

func (d *sqlite3Dialect) Placeholder(index int) string {
	return "?"
}

func (d *sqlite3Dialect) BoolLiteral(v bool) string {
	return boolLiteral(v)
}

func (d *sqlite3Dialect) InsertSQL(table string, columns []string, values []string) string {
	return insertSQL(d, table, columns, values)
}

func (d *sqlite3Dialect) Returning(column string) string {
	return ""
}

func (d *sqlite3Dialect) EncryptExpr() string {
	return "aes_encrypt(?, ?)"
}

func (d *sqlite3Dialect) DecryptExpr(quotedColumn string) string {
	return "aes_decrypt(" + quotedColumn + ", ?)"
}
