package crypt

import (
	"database/sql/driver"
)

// Plaintext is a value on its way into an encrypted column.
//
// It binds as the wrapped value, so the database encrypts what the caller
// supplied, but formats as [REDACTED] like Secret. Statement arguments can then
// be logged without exposing what the column is meant to protect at rest.
type Plaintext struct {
	v any
}

// NewPlaintext wraps v. Wrapping a Plaintext again returns it unchanged.
func NewPlaintext(v any) Plaintext {
	if p, ok := v.(Plaintext); ok {
		return p
	}
	return Plaintext{v: v}
}

// Unwrap returns the wrapped value.
func (p Plaintext) Unwrap() any {
	return p.v
}

// Value implements driver.Valuer.
func (p Plaintext) Value() (driver.Value, error) {
	if vr, ok := p.v.(driver.Valuer); ok {
		return vr.Value()
	}
	return p.v, nil
}

func (p Plaintext) String() string {
	return redacted
}

func (p Plaintext) GoString() string {
	return "crypt.Plaintext(" + redacted + ")"
}

func (p Plaintext) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (p Plaintext) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}
