package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/shrek82/datagate/pool"
)

var (
	// ErrPoolExhausted is returned when no pooled connection frees up in time.
	ErrPoolExhausted = pool.ErrPoolExhausted
	// ErrConnectionInvalid is returned when a connection cannot be validated.
	ErrConnectionInvalid = pool.ErrConnectionInvalid
	// ErrDuplicateKey is returned when a unique or primary key constraint is violated.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrMissingTable is returned when a statement names a table that does not exist.
	ErrMissingTable = errors.New("missing table")
	// ErrSQL is returned for any other statement-level database error.
	ErrSQL = errors.New("sql error")
	// ErrUnknown is returned for failures that are not database errors.
	ErrUnknown = errors.New("unknown error")
	// ErrInvalidQuery is returned when a statement cannot be built from its inputs.
	ErrInvalidQuery = errors.New("invalid query")
)

// ErrorKind is the caller-facing classification of a failure.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindPoolExhausted
	KindConnectionInvalid
	KindDuplicateKey
	KindMissingTable
	KindSQL
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindPoolExhausted:
		return "PoolExhausted"
	case KindConnectionInvalid:
		return "ConnectionInvalid"
	case KindDuplicateKey:
		return "DuplicateKey"
	case KindMissingTable:
		return "MissingTable"
	case KindSQL:
		return "SqlError"
	}
	return "Unknown"
}

// MarshalText encodes the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Message returns the fixed user-facing message for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindNone:
		return ""
	case KindDuplicateKey:
		return "That ID is already being used."
	case KindMissingTable:
		return "That table doesn't exist."
	case KindSQL:
		return "SQL Error"
	}
	return "Unknown Error"
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindPoolExhausted:
		return ErrPoolExhausted
	case KindConnectionInvalid:
		return ErrConnectionInvalid
	case KindDuplicateKey:
		return ErrDuplicateKey
	case KindMissingTable:
		return ErrMissingTable
	case KindSQL:
		return ErrSQL
	}
	return ErrUnknown
}

// StatementError is a driver failure while executing a statement.
// It carries the SQL text but never the bound arguments.
type StatementError struct {
	SQL string
	Err error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%v (sql: %s)", e.Err, e.SQL)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

var (
	duplicateEntryPattern = regexp.MustCompile(`(?i)duplicate entry .* for key`)
	missingTablePattern   = regexp.MustCompile(`(?i)table .* doesn't exist`)
)

const (
	mysqlDuplicateEntry        = 1062
	mysqlDuplicateEntryWithKey = 1586
	mysqlNoSuchTable           = 1146

	pqUniqueViolation = "23505"
	pqUndefinedTable  = "42P01"
)

// Classify maps err onto an ErrorKind. It never panics; a nil error is KindNone.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	switch {
	case errors.Is(err, pool.ErrPoolExhausted):
		return KindPoolExhausted
	case errors.Is(err, pool.ErrConnectionInvalid):
		return KindConnectionInvalid
	case errors.Is(err, ErrDuplicateKey):
		return KindDuplicateKey
	case errors.Is(err, ErrMissingTable):
		return KindMissingTable
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry, mysqlDuplicateEntryWithKey:
			return KindDuplicateKey
		case mysqlNoSuchTable:
			return KindMissingTable
		}
		return KindSQL
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return KindDuplicateKey
		case pqUndefinedTable:
			return KindMissingTable
		}
		return KindSQL
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return KindDuplicateKey
		case strings.Contains(liteErr.Error(), "no such table"):
			return KindMissingTable
		}
		return KindSQL
	}

	msg := err.Error()
	switch {
	case duplicateEntryPattern.MatchString(msg):
		return KindDuplicateKey
	case missingTablePattern.MatchString(msg):
		return KindMissingTable
	}

	var stmtErr *StatementError
	if errors.As(err, &stmtErr) || errors.Is(err, ErrSQL) {
		return KindSQL
	}
	return KindUnknown
}
