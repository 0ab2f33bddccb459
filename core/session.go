package core

import (
	"context"

	"github.com/shrek82/datagate/model"
	"github.com/shrek82/datagate/pool"
)

// Session issues statements on one pooled connection, so a caller can read and
// then write on the same connection. It is only valid inside DB.WithConn.
type Session struct {
	db   *DB
	conn *pool.Conn
}

// Select is DB.Select on the session's connection.
func (s *Session) Select(ctx context.Context, table string, columns []string, where *model.Record, opts *SelectOptions) *Result {
	return s.db.doSelect(ctx, s.exec, table, columns, where, opts)
}

// Insert is DB.Insert on the session's connection.
func (s *Session) Insert(ctx context.Context, table string, record *model.Record, encrypted ...string) *Result {
	return s.db.doInsert(ctx, s.exec, table, record, encrypted)
}

// Update is DB.Update on the session's connection, including its update-all default.
func (s *Session) Update(ctx context.Context, table string, record, where *model.Record, encrypted ...string) *Result {
	return s.db.doUpdate(ctx, s.exec, table, record, where, encrypted)
}

func (s *Session) exec(ctx context.Context, st *Statement) (*Outcome, error) {
	return execute(ctx, s.conn, st)
}
