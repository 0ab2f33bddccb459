package pool

import (
	"sync"

	"github.com/jmoiron/sqlx"
)

// Conn is a checked-out connection. It must be handed back with Release,
// or with Discard when the caller knows it is broken.
type Conn struct {
	*sqlx.Conn

	pool *Pool
	once sync.Once
}

// Release returns the connection to the pool. Calling it more than once is a no-op.
func (c *Conn) Release() {
	c.once.Do(func() { c.pool.release(c.Conn, false) })
}

// Discard closes the connection instead of returning it and frees its slot.
func (c *Conn) Discard() {
	c.once.Do(func() { c.pool.release(c.Conn, true) })
}
