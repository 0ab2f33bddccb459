package crypt

import (
	"sort"
)

// ColumnSet is the set of columns whose values are stored encrypted.
// It is scoped to a single call, so the same table can be read with or without
// decryption depending on what the caller needs.
type ColumnSet map[string]struct{}

// Columns builds a ColumnSet from names. Empty names are ignored.
func Columns(names ...string) ColumnSet {
	if len(names) == 0 {
		return nil
	}
	set := make(ColumnSet, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Has reports whether column is encrypted. A nil set has no members.
func (s ColumnSet) Has(column string) bool {
	_, ok := s[column]
	return ok
}

// Len returns the number of columns in the set.
func (s ColumnSet) Len() int {
	return len(s)
}

// Names returns the members sorted by name.
func (s ColumnSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
