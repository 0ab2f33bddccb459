package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shrek82/datagate/core"
)

// MemoryCacheMiddleware caches select results in memory.
// Only selects issued with a context from WithCacheTTL are cached, never ones
// that decrypt columns. Inserts and updates drop the cached selects of their table.
type MemoryCacheMiddleware struct {
	items      map[string]memoryCacheEntry
	mu         sync.RWMutex
	stopClean  chan struct{}
	stopOnce   sync.Once
	DefaultTTL time.Duration
}

type memoryCacheEntry struct {
	Data      []byte
	ExpiresAt time.Time
}

func NewMemoryCache(defaultTTL ...time.Duration) *MemoryCacheMiddleware {
	ttl := 5 * time.Minute
	if len(defaultTTL) > 0 {
		ttl = defaultTTL[0]
	}
	return &MemoryCacheMiddleware{
		items:      make(map[string]memoryCacheEntry),
		stopClean:  make(chan struct{}),
		DefaultTTL: ttl,
	}
}

func (m *MemoryCacheMiddleware) Name() string {
	return "MemoryCache"
}

func (m *MemoryCacheMiddleware) Init(db *core.DB) error {
	go m.cleanupLoop()
	return nil
}

func (m *MemoryCacheMiddleware) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopClean:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *MemoryCacheMiddleware) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for k, v := range m.items {
		if !v.ExpiresAt.IsZero() && now.After(v.ExpiresAt) {
			delete(m.items, k)
		}
	}
}

func (m *MemoryCacheMiddleware) Shutdown() error {
	m.stopOnce.Do(func() { close(m.stopClean) })
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (m *MemoryCacheMiddleware) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryCacheMiddleware) Process(ctx context.Context, st *core.Statement, next core.Handler) (*core.Outcome, error) {
	if isWrite(st) {
		out, err := next(ctx, st)
		if err == nil {
			m.invalidate(st.Table)
		}
		return out, err
	}

	ttl, ok := cacheTTL(ctx, st, m.DefaultTTL)
	if !ok {
		return next(ctx, st)
	}

	key := cacheKey(st)
	m.mu.RLock()
	entry, found := m.items[key]
	m.mu.RUnlock()

	if found {
		if entry.ExpiresAt.IsZero() || time.Now().Before(entry.ExpiresAt) {
			if out, err := decodeRows(entry.Data); err == nil {
				return out, nil
			}
		}
		// Expired or unreadable, delete (lazy delete)
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
	}

	out, err := next(ctx, st)
	if err != nil {
		return out, err
	}

	if data, err := encodeRows(out.Rows); err == nil {
		var expires time.Time
		if ttl > 0 {
			expires = time.Now().Add(ttl)
		}
		m.mu.Lock()
		m.items[key] = memoryCacheEntry{Data: data, ExpiresAt: expires}
		m.mu.Unlock()
	}
	return out, nil
}

func (m *MemoryCacheMiddleware) invalidate(table string) {
	prefix := tablePrefix(table)
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
		}
	}
}
