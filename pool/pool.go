package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shrek82/datagate/dialect"
	"github.com/shrek82/datagate/logger"
)

// Pool is a bounded set of database connections.
//
// Connections are opened lazily: the first Acquire establishes InitialSize of
// them, later ones are opened on demand up to MaxSize. Every checkout can be
// validated with the configured query; a connection that fails is closed and
// replaced, never put back. Callers block for at most AcquireTimeout when all
// MaxSize connections are checked out.
type Pool struct {
	db      *sqlx.DB
	dialect dialect.Dialect
	cfg     Config
	logger  logger.Logger

	slots chan struct{} // one token per checked-out connection

	warmOnce sync.Once

	mu     sync.Mutex
	idle   []*idleConn
	closed bool

	stopReap chan struct{}
	reapDone chan struct{}

	waits     atomic.Int64
	exhausted atomic.Int64
	invalid   atomic.Int64
}

type idleConn struct {
	conn     *sqlx.Conn
	returned time.Time
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Idle      int
	InUse     int
	MaxSize   int
	Waits     int64 // acquisitions that had to wait for a slot
	Exhausted int64 // acquisitions that timed out
	Invalid   int64 // connections discarded after failing validation
}

// Open validates cfg, opens the driver and returns a pool. No connection is
// made until the first Acquire.
func Open(cfg Config, log logger.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, _ := dialect.Get(cfg.Driver)

	dsn, err := d.DSN(cfg.connParams())
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Driver, err)
	}
	return newPool(db, d, cfg, log), nil
}

// NewWithDB builds an isolated pool around an existing *sql.DB, mainly for tests.
// driver names the dialect the statements are written for.
func NewWithDB(db *sql.DB, driver string, cfg Config, log logger.Logger) (*Pool, error) {
	cfg.Driver = driver
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, _ := dialect.Get(driver)
	return newPool(sqlx.NewDb(db, d.DriverName()), d, cfg, log), nil
}

func newPool(db *sqlx.DB, d dialect.Dialect, cfg Config, log logger.Logger) *Pool {
	if log == nil {
		log = logger.NewNopLogger()
	}
	db.SetMaxOpenConns(cfg.MaxSize)
	// Connections handed back to database/sql are ones this pool closed on purpose.
	db.SetMaxIdleConns(0)

	p := &Pool{
		db:      db,
		dialect: d,
		cfg:     cfg,
		logger:  log.WithFields(map[string]any{"component": "pool", "driver": d.Name()}),
		slots:   make(chan struct{}, cfg.MaxSize),
	}
	if cfg.IdleTimeout > 0 {
		p.stopReap = make(chan struct{})
		p.reapDone = make(chan struct{})
		go p.reapLoop()
	}
	return p
}

// Dialect returns the SQL dialect of the pooled connections.
func (p *Pool) Dialect() dialect.Dialect {
	return p.dialect
}

// Config returns the pool configuration.
func (p *Pool) Config() Config {
	return p.cfg
}

// DB returns the underlying handle, for setup work such as creating tables.
func (p *Pool) DB() *sqlx.DB {
	return p.db
}

// Acquire checks out a connection. ctx bounds the wait together with AcquireTimeout.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if err := p.reserve(ctx); err != nil {
		return nil, err
	}

	conn, err := p.checkout(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}
	return &Conn{Conn: conn, pool: p}, nil
}

func (p *Pool) reserve(ctx context.Context) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPoolClosed
	}

	select {
	case p.slots <- struct{}{}:
		return nil
	default:
	}

	p.waits.Add(1)
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case p.slots <- struct{}{}:
		return nil
	case <-timer.C:
		p.exhausted.Add(1)
		return fmt.Errorf("%w: no connection within %s (max %d)", ErrPoolExhausted, p.cfg.AcquireTimeout, p.cfg.MaxSize)
	case <-ctx.Done():
		p.exhausted.Add(1)
		return fmt.Errorf("%w: %v", ErrPoolExhausted, ctx.Err())
	}
}

// checkout runs with a slot held. It prefers an idle connection and falls back
// to opening one. A connection that fails validation is discarded and a fresh
// one is tried once before giving up.
func (p *Pool) checkout(ctx context.Context) (*sqlx.Conn, error) {
	p.warm(ctx)

	conn, fromIdle, err := p.take(ctx)
	if err != nil {
		return nil, err
	}
	if !p.cfg.ValidateOnCheckout {
		return conn, nil
	}
	err = p.validate(ctx, conn)
	if err == nil {
		return conn, nil
	}
	p.invalid.Add(1)
	p.logger.Warn("discarding connection that failed validation (idle=%t): %v", fromIdle, err)
	discard(conn)

	fresh, err := p.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reconnect: %v", ErrConnectionInvalid, err)
	}
	if err := p.validate(ctx, fresh); err != nil {
		p.invalid.Add(1)
		discard(fresh)
		return nil, fmt.Errorf("%w: %v", ErrConnectionInvalid, err)
	}
	return fresh, nil
}

func (p *Pool) take(ctx context.Context) (*sqlx.Conn, bool, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		ic := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return ic.conn, true, nil
	}
	p.mu.Unlock()

	conn, err := p.db.Connx(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: connect: %v", ErrConnectionInvalid, err)
	}
	return conn, false, nil
}

// warm opens InitialSize connections the first time it is called. Concurrent
// callers wait for it, so nothing else opens connections during warm-up.
func (p *Pool) warm(ctx context.Context) {
	p.warmOnce.Do(func() { p.fill(ctx) })
}

func (p *Pool) fill(ctx context.Context) {
	opened := make([]*idleConn, 0, p.cfg.InitialSize)
	for i := 0; i < p.cfg.InitialSize; i++ {
		conn, err := p.db.Connx(ctx)
		if err != nil {
			p.logger.Warn("warm-up opened %d of %d connections: %v", i, p.cfg.InitialSize, err)
			break
		}
		opened = append(opened, &idleConn{conn: conn, returned: time.Now()})
	}

	p.mu.Lock()
	p.idle = append(p.idle, opened...)
	p.mu.Unlock()
}

func (p *Pool) validate(ctx context.Context, conn *sqlx.Conn) error {
	rows, err := conn.QueryContext(ctx, p.cfg.validationQuery())
	if err != nil {
		return err
	}
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

// release puts conn back into the idle set and frees its slot.
func (p *Pool) release(conn *sqlx.Conn, broken bool) {
	defer func() { <-p.slots }()

	if broken {
		discard(conn)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		return
	}
	p.idle = append(p.idle, &idleConn{conn: conn, returned: time.Now()})
	p.mu.Unlock()
}

// discard closes the physical connection instead of handing it back to database/sql.
func discard(conn *sqlx.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	idle := len(p.idle)
	p.mu.Unlock()
	return Stats{
		Idle:      idle,
		InUse:     len(p.slots),
		MaxSize:   p.cfg.MaxSize,
		Waits:     p.waits.Load(),
		Exhausted: p.exhausted.Load(),
		Invalid:   p.invalid.Load(),
	}
}

// Ping opens or reuses a connection and validates it.
func (p *Pool) Ping(ctx context.Context) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return p.validate(ctx, conn.Conn)
}

// Close closes idle connections and the underlying database handle.
// Connections still checked out are closed when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	if p.stopReap != nil {
		close(p.stopReap)
		<-p.reapDone
	}
	for _, ic := range idle {
		ic.conn.Close()
	}
	return p.db.Close()
}

func (p *Pool) reapLoop() {
	defer close(p.reapDone)

	interval := p.cfg.IdleTimeout / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopReap:
			return
		case <-ticker.C:
			p.reap(time.Now())
		}
	}
}

// reap closes connections idle longer than IdleTimeout, keeping at least MinSize.
func (p *Pool) reap(now time.Time) int {
	p.mu.Lock()
	var stale []*idleConn
	// idle is ordered oldest first, since release appends
	for len(p.idle) > p.cfg.MinSize && now.Sub(p.idle[0].returned) > p.cfg.IdleTimeout {
		stale = append(stale, p.idle[0])
		p.idle = p.idle[1:]
	}
	p.mu.Unlock()

	for _, ic := range stale {
		discard(ic.conn)
	}
	return len(stale)
}
