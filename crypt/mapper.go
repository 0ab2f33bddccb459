package crypt

import (
	"errors"
)

// ErrNoKey is returned when an encrypted column is requested but no key is configured.
var ErrNoKey = errors.New("encryption key not configured")

// Expressions supplies the dialect-specific SQL for encryption.
type Expressions interface {
	// Quote quotes an identifier.
	Quote(name string) string
	// EncryptExpr returns a value expression with two placeholders: the value, then the key.
	EncryptExpr() string
	// DecryptExpr returns an expression over an already quoted column with one placeholder for the key.
	DecryptExpr(quotedColumn string) string
}

// Mapper rewrites column references for encrypted columns.
type Mapper struct {
	exprs Expressions
	key   Secret
}

// NewMapper creates a Mapper rendering through exprs and binding key.
func NewMapper(exprs Expressions, key Secret) *Mapper {
	return &Mapper{exprs: exprs, key: key}
}

// ForRead returns the select-list expression for column.
// Encrypted columns decrypt and alias back to the column name; others are just quoted.
// The returned args bind the expression's placeholders.
func (m *Mapper) ForRead(column string, set ColumnSet) (string, []any, error) {
	quoted := m.exprs.Quote(column)
	if !set.Has(column) {
		return quoted, nil, nil
	}
	if m.key.IsZero() {
		return "", nil, ErrNoKey
	}
	return m.exprs.DecryptExpr(quoted) + " AS " + quoted, []any{m.key}, nil
}

// ForWrite returns the value expression and args for writing value into column.
// Encrypted columns wrap the placeholder in the encrypt expression and bind the
// value as a Plaintext; others are a bare "?".
func (m *Mapper) ForWrite(column string, value any, set ColumnSet) (string, []any, error) {
	if !set.Has(column) {
		return "?", []any{value}, nil
	}
	if m.key.IsZero() {
		return "", nil, ErrNoKey
	}
	return m.exprs.EncryptExpr(), []any{NewPlaintext(value), m.key}, nil
}
