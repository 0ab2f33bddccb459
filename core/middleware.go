package core

import (
	"context"
	"time"

	"github.com/shrek82/datagate/logger"
	"github.com/shrek82/datagate/model"
)

// Component is the base interface for all datagate components/middleware.
type Component interface {
	Name() string
	Init(db *DB) error
	Shutdown() error
}

// StatementKind tells a middleware what a statement does.
type StatementKind int

const (
	StatementSelect StatementKind = iota
	StatementInsert
	StatementUpdate
)

func (k StatementKind) String() string {
	switch k {
	case StatementSelect:
		return "select"
	case StatementInsert:
		return "insert"
	case StatementUpdate:
		return "update"
	}
	return "unknown"
}

// Statement is a built statement on its way to the database.
type Statement struct {
	Kind  StatementKind
	Table string
	SQL   string
	Args  []any

	// Sensitive is set when the statement reads or writes encrypted columns.
	// Caches must not store its results.
	Sensitive bool
	// Returning is set when the generated key comes back as a result row.
	Returning bool

	// Logger receives the SQL log line; middleware may replace it with a scoped logger.
	Logger logger.Logger
}

// WithFields scopes the statement's logger.
func (s *Statement) WithFields(fields map[string]any) {
	if s.Logger != nil {
		s.Logger = s.Logger.WithFields(fields)
	}
}

// Outcome is what the database returned for a statement.
type Outcome struct {
	Rows         []*model.Record
	RowsAffected int64
	GeneratedKey any
	Duration     time.Duration
	Cached       bool
}

// Handler is the function type for the next step in the middleware chain.
type Handler func(ctx context.Context, st *Statement) (*Outcome, error)

// Middleware is the interface for statement interceptors.
type Middleware interface {
	Component
	Process(ctx context.Context, st *Statement, next Handler) (*Outcome, error)
}
