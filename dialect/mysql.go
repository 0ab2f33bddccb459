package dialect

import (
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQL dialect implementation
type mysqlDialect struct{}

func init() {
	Register("mysql", &mysqlDialect{})
}

func (d *mysqlDialect) Name() string {
	return "mysql"
}

func (d *mysqlDialect) DriverName() string {
	return "mysql"
}

func (d *mysqlDialect) DSN(p ConnParams) (string, error) {
	port := p.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(port))
	cfg.DBName = p.Database
	if len(p.Params) > 0 {
		cfg.Params = make(map[string]string, len(p.Params))
		for k, v := range p.Params {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN(), nil
}

func (d *mysqlDialect) Quote(name string) string {
	return quoteIdent(name, "`")
}

var mysqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
)

// EscapeLiteral escapes like mysql_real_escape_string: quotes, backslash and control bytes get a backslash.
func (d *mysqlDialect) EscapeLiteral(text string) string {
	return mysqlEscaper.Replace(text)
}

func (d *mysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *mysqlDialect) BoolLiteral(v bool) string {
	return boolLiteral(v)
}

func (d *mysqlDialect) InsertSQL(table string, columns []string, values []string) string {
	return insertSQL(d, table, columns, values)
}

func (d *mysqlDialect) Returning(column string) string {
	return ""
}

func (d *mysqlDialect) EncryptExpr() string {
	return "AES_ENCRYPT(?, ?)"
}

func (d *mysqlDialect) DecryptExpr(quotedColumn string) string {
	return "AES_DECRYPT(" + quotedColumn + ", ?)"
}
