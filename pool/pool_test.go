package pool

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shrek82/datagate/dialect"
)

func newTestPool(t *testing.T, mutate func(*Config)) *Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.db")
	db, err := sql.Open(dialect.SQLiteDriverName, "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	cfg := DefaultConfig()
	cfg.MinSize, cfg.InitialSize, cfg.MaxSize = 1, 2, 3
	cfg.AcquireTimeout = 2 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	p, err := NewWithDB(db, "sqlite3", cfg, nil)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero min", func(c *Config) { c.MinSize = 0 }, true},
		{"initial below min", func(c *Config) { c.InitialSize = 2 }, true},
		{"max below initial", func(c *Config) { c.MaxSize = 4 }, true},
		{"equal sizes", func(c *Config) { c.MinSize, c.InitialSize, c.MaxSize = 3, 3, 3 }, false},
		{"no timeout", func(c *Config) { c.AcquireTimeout = 0 }, true},
		{"negative idle", func(c *Config) { c.IdleTimeout = -time.Second }, true},
		{"missing driver", func(c *Config) { c.Driver = "" }, true},
		{"unknown driver", func(c *Config) { c.Driver = "oracle" }, true},
		{"bad port", func(c *Config) { c.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Driver = "sqlite3"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestAcquireRelease(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	conn, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := conn.ExecContext(ctx, "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("exec: %v", err)
	}

	st := p.Stats()
	if st.InUse != 1 {
		t.Errorf("InUse = %d, want 1", st.InUse)
	}
	// warm-up opened InitialSize, one of them is checked out
	if st.Idle != 1 {
		t.Errorf("Idle = %d, want 1", st.Idle)
	}

	conn.Release()
	conn.Release()

	st = p.Stats()
	if st.InUse != 0 || st.Idle != 2 {
		t.Errorf("after release: InUse=%d Idle=%d, want 0 and 2", st.InUse, st.Idle)
	}
}

func TestAcquireWaitsForRelease(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	held := make([]*Conn, 0, 3)
	for i := 0; i < 3; i++ {
		c, err := p.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		held = append(held, c)
	}

	const waiters = 5
	var wg sync.WaitGroup
	errs := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := p.Acquire(ctx)
			if err != nil {
				errs <- err
				return
			}
			time.Sleep(5 * time.Millisecond)
			c.Release()
		}()
	}

	time.Sleep(50 * time.Millisecond)
	for _, c := range held {
		c.Release()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("waiter failed: %v", err)
	}
	st := p.Stats()
	if st.Waits < waiters {
		t.Errorf("Waits = %d, want at least %d", st.Waits, waiters)
	}
	if st.InUse != 0 {
		t.Errorf("InUse = %d after all releases", st.InUse)
	}
	if st.Idle > st.MaxSize {
		t.Errorf("Idle = %d exceeds MaxSize %d", st.Idle, st.MaxSize)
	}
}

func TestAcquireTimeout(t *testing.T) {
	p := newTestPool(t, func(c *Config) {
		c.MinSize, c.InitialSize, c.MaxSize = 1, 1, 1
		c.AcquireTimeout = 30 * time.Millisecond
	})
	ctx := context.Background()

	c, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer c.Release()

	start := time.Now()
	_, err = p.Acquire(ctx)
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("err = %v, want ErrPoolExhausted", err)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Errorf("Acquire returned before the timeout elapsed")
	}
	if p.Stats().Exhausted != 1 {
		t.Errorf("Exhausted = %d, want 1", p.Stats().Exhausted)
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	p := newTestPool(t, func(c *Config) {
		c.MinSize, c.InitialSize, c.MaxSize = 1, 1, 1
	})

	c, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer c.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(ctx); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("err = %v, want ErrPoolExhausted", err)
	}
}

func TestValidationFailure(t *testing.T) {
	p := newTestPool(t, func(c *Config) {
		c.ValidationQuery = "SELECT * FROM no_such_table"
	})

	_, err := p.Acquire(context.Background())
	if !errors.Is(err, ErrConnectionInvalid) {
		t.Fatalf("err = %v, want ErrConnectionInvalid", err)
	}

	st := p.Stats()
	if st.InUse != 0 {
		t.Errorf("slot leaked: InUse = %d", st.InUse)
	}
	if st.Invalid != 2 {
		t.Errorf("Invalid = %d, want 2 (original and replacement)", st.Invalid)
	}
}

func TestValidationSkipped(t *testing.T) {
	p := newTestPool(t, func(c *Config) {
		c.ValidationQuery = "SELECT * FROM no_such_table"
		c.ValidateOnCheckout = false
	})

	c, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	c.Release()
}

func TestDiscard(t *testing.T) {
	p := newTestPool(t, nil)

	c, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	idleBefore := p.Stats().Idle
	c.Discard()
	c.Release()

	st := p.Stats()
	if st.InUse != 0 {
		t.Errorf("InUse = %d, want 0", st.InUse)
	}
	if st.Idle != idleBefore {
		t.Errorf("discarded connection returned to idle set")
	}
}

func TestReapKeepsMinSize(t *testing.T) {
	p := newTestPool(t, func(c *Config) {
		c.MinSize, c.InitialSize, c.MaxSize = 1, 3, 3
	})
	p.cfg.IdleTimeout = time.Minute

	c, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	c.Release()
	if got := p.Stats().Idle; got != 3 {
		t.Fatalf("Idle = %d, want 3", got)
	}

	if n := p.reap(time.Now()); n != 0 {
		t.Errorf("reaped %d fresh connections", n)
	}
	if n := p.reap(time.Now().Add(2 * time.Minute)); n != 2 {
		t.Errorf("reaped %d, want 2", n)
	}
	if got := p.Stats().Idle; got != 1 {
		t.Errorf("Idle = %d, want MinSize 1", got)
	}
}

func TestClose(t *testing.T) {
	p := newTestPool(t, nil)

	c, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	c.Release()

	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("err = %v, want ErrPoolClosed", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
