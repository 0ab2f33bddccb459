package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shrek82/datagate/core"
	"github.com/shrek82/datagate/model"
)

type cacheTTLKey struct{}

// NoExpiry caches a result until its table is written to.
const NoExpiry time.Duration = -1

// WithCacheTTL marks the selects issued with ctx as cacheable for ttl.
// A zero ttl uses the cache's default, NoExpiry keeps entries until invalidated.
func WithCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, cacheTTLKey{}, ttl)
}

// cacheTTL reports whether st may be served from a cache and for how long.
func cacheTTL(ctx context.Context, st *core.Statement, defaultTTL time.Duration) (time.Duration, bool) {
	if st.Kind != core.StatementSelect || st.Sensitive {
		return 0, false
	}
	ttl, ok := ctx.Value(cacheTTLKey{}).(time.Duration)
	if !ok {
		return 0, false
	}
	if ttl == 0 {
		ttl = defaultTTL
	}
	return ttl, true
}

func tablePrefix(table string) string {
	return "datagate:cache:" + table + ":"
}

// cacheKey identifies a select by table, SQL text and typed arguments, so
// int64(1) and "1" (or nil and "<nil>") never share an entry.
func cacheKey(st *core.Statement) string {
	var sb strings.Builder
	sb.WriteString(tablePrefix(st.Table))
	sb.WriteString(st.SQL)
	for _, a := range st.Args {
		sb.WriteByte('|')
		switch v := a.(type) {
		case nil:
			sb.WriteString("nil")
		case string:
			sb.WriteString(strconv.Quote(v))
		case []byte:
			fmt.Fprintf(&sb, "bytes:%x", v)
		case time.Time:
			sb.WriteString("time:" + v.Format(time.RFC3339Nano))
		default:
			fmt.Fprintf(&sb, "%T:%v", v, v)
		}
	}
	return sb.String()
}

// isWrite reports whether a successful st invalidates the cached selects of its table.
func isWrite(st *core.Statement) bool {
	return st.Kind == core.StatementInsert || st.Kind == core.StatementUpdate
}

func encodeRows(rows []*model.Record) ([]byte, error) {
	return json.Marshal(rows)
}

func decodeRows(data []byte) (*core.Outcome, error) {
	var rows []*model.Record
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*model.Record{}
	}
	return &core.Outcome{Rows: rows, Cached: true}, nil
}
