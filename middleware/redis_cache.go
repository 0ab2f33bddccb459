package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrek82/datagate/core"
	"github.com/shrek82/datagate/logger"
)

// RedisCacheMiddleware caches select results in Redis, shared across processes.
// It follows the same rules as MemoryCacheMiddleware. Redis failures never fail
// a statement; the cache is bypassed and the error logged.
type RedisCacheMiddleware struct {
	Client     *redis.Client
	DefaultTTL time.Duration

	logger logger.Logger
}

func NewRedisCache(opt *redis.Options, defaultTTL time.Duration) *RedisCacheMiddleware {
	return &RedisCacheMiddleware{
		Client:     redis.NewClient(opt),
		DefaultTTL: defaultTTL,
	}
}

func (m *RedisCacheMiddleware) Name() string {
	return "RedisCache"
}

func (m *RedisCacheMiddleware) Init(db *core.DB) error {
	m.logger = db.Logger().WithFields(map[string]any{"component": "redis_cache"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Client.Ping(ctx).Err()
}

func (m *RedisCacheMiddleware) Shutdown() error {
	return m.Client.Close()
}

func (m *RedisCacheMiddleware) Process(ctx context.Context, st *core.Statement, next core.Handler) (*core.Outcome, error) {
	if isWrite(st) {
		out, err := next(ctx, st)
		if err == nil {
			m.invalidate(context.WithoutCancel(ctx), st.Table)
		}
		return out, err
	}

	ttl, ok := cacheTTL(ctx, st, m.DefaultTTL)
	if !ok {
		return next(ctx, st)
	}
	if ttl < 0 {
		// Redis uses 0 for no expiration
		ttl = 0
	}

	key := cacheKey(st)
	data, err := m.Client.Get(ctx, key).Bytes()
	if err == nil {
		if out, err := decodeRows(data); err == nil {
			return out, nil
		}
	} else if err != redis.Nil {
		m.warn("get %s: %v", st.Table, err)
	}

	out, err := next(ctx, st)
	if err != nil {
		return out, err
	}

	if data, err := encodeRows(out.Rows); err == nil {
		if err := m.Client.Set(context.WithoutCancel(ctx), key, data, ttl).Err(); err != nil {
			m.warn("set %s: %v", st.Table, err)
		}
	}
	return out, nil
}

// invalidate deletes every cached select of table.
func (m *RedisCacheMiddleware) invalidate(ctx context.Context, table string) {
	iter := m.Client.Scan(ctx, 0, tablePrefix(table)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		m.warn("scan %s: %v", table, err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := m.Client.Del(ctx, keys...).Err(); err != nil {
		m.warn("invalidate %s: %v", table, err)
	}
}

func (m *RedisCacheMiddleware) warn(format string, args ...any) {
	if m.logger != nil {
		m.logger.Warn("redis cache: "+format, args...)
	}
}
