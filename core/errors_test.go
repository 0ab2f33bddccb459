package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/shrek82/datagate/pool"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"pool exhausted", fmt.Errorf("acquire: %w", pool.ErrPoolExhausted), KindPoolExhausted},
		{"connection invalid", fmt.Errorf("%w: ping", pool.ErrConnectionInvalid), KindConnectionInvalid},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'abc' for key 'PRIMARY'"}, KindDuplicateKey},
		{"mysql duplicate with key", &mysql.MySQLError{Number: 1586, Message: "dup"}, KindDuplicateKey},
		{"mysql missing table", &mysql.MySQLError{Number: 1146, Message: "Table 'shop.nope' doesn't exist"}, KindMissingTable},
		{"mysql syntax", &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}, KindSQL},
		{"postgres unique", &pq.Error{Code: "23505"}, KindDuplicateKey},
		{"postgres undefined table", &pq.Error{Code: "42P01"}, KindMissingTable},
		{"postgres other", &pq.Error{Code: "42601"}, KindSQL},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, KindDuplicateKey},
		{"sqlite primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, KindDuplicateKey},
		{"message duplicate", errors.New("Error 1062: Duplicate entry 'x' for key 'uniq_code'"), KindDuplicateKey},
		{"message missing table", errors.New("Table 'shop.coupons' doesn't exist"), KindMissingTable},
		{"wrapped statement", &StatementError{SQL: "SELECT", Err: &mysql.MySQLError{Number: 1062}}, KindDuplicateKey},
		{"statement error", &StatementError{SQL: "SELEC 1", Err: errors.New("syntax error")}, KindSQL},
		{"build error", fmt.Errorf("%w: empty table", ErrInvalidQuery), KindUnknown},
		{"anything else", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorKindMessage(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindNone, ""},
		{KindDuplicateKey, "That ID is already being used."},
		{KindMissingTable, "That table doesn't exist."},
		{KindSQL, "SQL Error"},
		{KindUnknown, "Unknown Error"},
		{KindPoolExhausted, "Unknown Error"},
		{KindConnectionInvalid, "Unknown Error"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.Message(); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatementErrorOmitsArgs(t *testing.T) {
	err := &StatementError{SQL: "INSERT INTO `t` (`a`) VALUES (?)", Err: errors.New("disk I/O error")}
	want := "disk I/O error (sql: INSERT INTO `t` (`a`) VALUES (?))"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
