package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// ErrUnsupportedValue is returned when a value outside the supported value union is stored in a Record.
var ErrUnsupportedValue = errors.New("unsupported record value")

// Record is an ordered mapping from column name to value.
//
// It is used both as a predicate map (column = value, joined by AND) and as the
// column/value payload of inserts and updates. Iteration order is insertion order;
// setting an existing column replaces the value in place.
//
// Values are restricted to the union: nil, string, int64, float64, bool, []byte and
// time.Time. Other integer and float kinds are normalized to int64 and float64.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// R builds a record from alternating column/value pairs and panics on a malformed list.
// It is meant for literals in code and tests:
//
//	model.R("id", "abc", "code", "GAS15", "value", 0)
func R(pairs ...any) *Record {
	if len(pairs)%2 != 0 {
		panic("model.R: odd number of arguments")
	}
	r := NewRecord()
	for i := 0; i < len(pairs); i += 2 {
		col, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("model.R: column at position %d is %T, not string", i, pairs[i]))
		}
		if err := r.Set(col, pairs[i+1]); err != nil {
			panic("model.R: " + err.Error())
		}
	}
	return r
}

// Set stores value under column, keeping the column's original position if it already exists.
func (r *Record) Set(column string, value any) error {
	v, err := Normalize(value)
	if err != nil {
		return fmt.Errorf("column %s: %w", column, err)
	}
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[column]; !ok {
		r.keys = append(r.keys, column)
	}
	r.values[column] = v
	return nil
}

// Get returns the value stored under column.
func (r *Record) Get(column string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[column]
	return v, ok
}

// Has reports whether column is present.
func (r *Record) Has(column string) bool {
	_, ok := r.Get(column)
	return ok
}

// Delete removes column from the record.
func (r *Record) Delete(column string) {
	if r == nil {
		return
	}
	if _, ok := r.values[column]; !ok {
		return
	}
	delete(r.values, column)
	for i, k := range r.keys {
		if k == column {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of columns. A nil record has length zero.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Keys returns the columns in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Values returns the values in the same order as Keys.
func (r *Record) Values() []any {
	if r == nil {
		return nil
	}
	out := make([]any, len(r.keys))
	for i, k := range r.keys {
		out[i] = r.values[k]
	}
	return out
}

// Range calls fn for each column in order until fn returns false.
func (r *Record) Range(fn func(column string, value any) bool) {
	if r == nil {
		return
	}
	for _, k := range r.keys {
		if !fn(k, r.values[k]) {
			return
		}
	}
}

// String returns the value under column formatted as a string, or "" if absent.
func (r *Record) String(column string) string {
	v, ok := r.Get(column)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}

// Clone returns a shallow copy of the record.
func (r *Record) Clone() *Record {
	nr := NewRecord()
	r.Range(func(k string, v any) bool {
		nr.keys = append(nr.keys, k)
		nr.values[k] = v
		return true
	})
	return nr
}

// MarshalJSON encodes the record as a JSON object with keys in record order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		v := r.values[k]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object, preserving key order.
// Integral numbers decode as int64, other numbers as float64.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected JSON object")
	}

	r.keys = r.keys[:0]
	r.values = make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: expected string key, got %v", tok)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		v, err := fromJSON(raw)
		if err != nil {
			return fmt.Errorf("record: column %s: %w", key, err)
		}
		if err := r.Set(key, v); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func fromJSON(raw any) (any, error) {
	switch v := raw.(type) {
	case nil, string, bool:
		return v, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		return v.Float64()
	}
	return nil, ErrUnsupportedValue
}

func fromUint(v uint64) (any, error) {
	if v > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, v)
	}
	return int64(v), nil
}

// Normalize maps a Go value onto the record value union.
// Unsigned values above math.MaxInt64 are rejected rather than wrapped.
func Normalize(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, int64, float64, bool, []byte, time.Time:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return fromUint(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return fromUint(v)
	case float32:
		return float64(v), nil
	case *string:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case *int64:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case *float64:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
}
