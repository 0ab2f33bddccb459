package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shrek82/datagate/core"
	"github.com/shrek82/datagate/crypt"
	"github.com/shrek82/datagate/model"
)

// request is one command line invocation.
type request struct {
	op        string
	table     string
	columns   []string
	where     *model.Record
	set       *model.Record
	encrypted []string
	extra     string
}

func parseRequest(op, table, columns, where, set, encrypt, extra string) (*request, error) {
	r := &request{
		op:        strings.ToLower(op),
		table:     table,
		columns:   splitList(columns),
		encrypted: splitList(encrypt),
		extra:     extra,
	}
	switch r.op {
	case "select", "insert", "update":
	default:
		return nil, fmt.Errorf("unknown op %q", op)
	}

	var err error
	if r.where, err = parsePairs(where); err != nil {
		return nil, fmt.Errorf("-where: %w", err)
	}
	if r.set, err = parsePairs(set); err != nil {
		return nil, fmt.Errorf("-set: %w", err)
	}
	if r.op != "select" && r.set.Len() == 0 {
		return nil, fmt.Errorf("%s needs -set", r.op)
	}
	return r, nil
}

func (r *request) selectOptions() *core.SelectOptions {
	return &core.SelectOptions{
		Encrypted: crypt.Columns(r.encrypted...),
		Extra:     r.extra,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parsePairs reads "k=v,k2=v2" in order. Integers become int64, "null" becomes
// NULL, and a value in single quotes is always a string.
func parsePairs(s string) (*model.Record, error) {
	rec := model.NewRecord()
	for _, pair := range splitList(s) {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%q is not key=value", pair)
		}
		if err := rec.Set(k, parseValue(strings.TrimSpace(v))); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func parseValue(v string) any {
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return v[1 : len(v)-1]
	}
	if strings.EqualFold(v, "null") {
		return nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
