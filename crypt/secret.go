package crypt

import (
	"database/sql/driver"
)

const redacted = "[REDACTED]"

// Secret holds the process-wide encryption key.
//
// It is bound to statements as a parameter and never interpolated into SQL text.
// Every textual rendering (fmt verbs, %#v, JSON) prints [REDACTED], so the key cannot
// leak through SQL logs, error details or cache keys built from statement arguments.
type Secret struct {
	key []byte
}

// NewSecret wraps key. An empty key yields a zero Secret.
func NewSecret(key string) Secret {
	if key == "" {
		return Secret{}
	}
	return Secret{key: []byte(key)}
}

// IsZero reports whether no key is configured.
func (s Secret) IsZero() bool {
	return len(s.key) == 0
}

// Value implements driver.Valuer.
func (s Secret) Value() (driver.Value, error) {
	return string(s.key), nil
}

func (s Secret) String() string {
	return redacted
}

func (s Secret) GoString() string {
	return "crypt.Secret(" + redacted + ")"
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}
