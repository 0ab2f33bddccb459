package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shrek82/datagate/crypt"
	"github.com/shrek82/datagate/dialect"
	"github.com/shrek82/datagate/logger"
	"github.com/shrek82/datagate/model"
	"github.com/shrek82/datagate/pool"
)

// DefaultKeyColumn is the column treated as the generated key of an insert.
const DefaultKeyColumn = "id"

// Options configures a DB.
type Options struct {
	Logger logger.Logger
	// KeyColumn names the generated key column. Defaults to "id".
	KeyColumn string
}

// Result is the uniform outcome of a Select, Insert or Update.
// Failures never escape as panics or bare errors; they are reported here.
type Result struct {
	Success      bool            `json:"success"`
	Rows         []*model.Record `json:"rows,omitempty"`
	GeneratedKey any             `json:"generated_key,omitempty"`
	RowsAffected int64           `json:"rows_affected"`
	Kind         ErrorKind       `json:"kind"`
	// Message is safe to show to end users.
	Message string `json:"message,omitempty"`
	// Detail is the internal error text, for logs and operators.
	Detail string `json:"detail,omitempty"`
	// Err wraps the sentinel of Kind, for errors.Is.
	Err error `json:"-"`
}

// DB is the data access facade over a connection pool.
type DB struct {
	pool      *pool.Pool
	builder   *Builder
	logger    logger.Logger
	keyColumn string

	mu          sync.RWMutex
	middlewares []Middleware
}

// New creates a DB over p. key encrypts and decrypts the columns callers mark
// as encrypted; it may be zero if no call uses encryption.
func New(p *pool.Pool, key crypt.Secret, opts *Options) *DB {
	if opts == nil {
		opts = &Options{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewStdLogger()
	}
	keyColumn := opts.KeyColumn
	if keyColumn == "" {
		keyColumn = DefaultKeyColumn
	}
	return &DB{
		pool:      p,
		builder:   NewBuilder(p.Dialect(), key, keyColumn),
		logger:    log,
		keyColumn: keyColumn,
	}
}

// Pool returns the connection pool.
func (db *DB) Pool() *pool.Pool {
	return db.pool
}

// Dialect returns the SQL dialect statements are built for.
func (db *DB) Dialect() dialect.Dialect {
	return db.builder.Dialect()
}

// Builder returns the statement builder.
func (db *DB) Builder() *Builder {
	return db.builder
}

// Logger returns the DB logger.
func (db *DB) Logger() logger.Logger {
	return db.logger
}

// SetLogger sets a custom logger for the DB.
func (db *DB) SetLogger(l logger.Logger) {
	db.logger = l
}

// Use installs middleware, outermost first. Each one is initialized before it is added.
func (db *DB) Use(mws ...Middleware) error {
	for _, mw := range mws {
		if err := mw.Init(db); err != nil {
			return fmt.Errorf("init middleware %s: %w", mw.Name(), err)
		}
		db.mu.Lock()
		next := make([]Middleware, len(db.middlewares), len(db.middlewares)+1)
		copy(next, db.middlewares)
		db.middlewares = append(next, mw)
		db.mu.Unlock()
	}
	return nil
}

// Close shuts down the middleware, then closes the pool.
func (db *DB) Close() error {
	db.mu.Lock()
	mws := db.middlewares
	db.middlewares = nil
	db.mu.Unlock()

	var errs []error
	for i := len(mws) - 1; i >= 0; i-- {
		if err := mws[i].Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown middleware %s: %w", mws[i].Name(), err))
		}
	}
	if err := db.pool.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Select reads rows of table. where is matched column by column with AND; an
// empty or nil where selects every row. Rows come back in driver order with
// []byte values converted to string.
func (db *DB) Select(ctx context.Context, table string, columns []string, where *model.Record, opts *SelectOptions) *Result {
	return db.doSelect(ctx, db.pooled, table, columns, where, opts)
}

// Insert writes record into table, storing the encrypted columns through the
// dialect's encrypt function. GeneratedKey is the record's key column when it
// has one, otherwise the key the database generated.
func (db *DB) Insert(ctx context.Context, table string, record *model.Record, encrypted ...string) *Result {
	return db.doInsert(ctx, db.pooled, table, record, encrypted)
}

// Update sets the columns of record on the rows of table matching where.
//
// An empty or nil where updates every row of the table. This is logged at
// warn level but otherwise allowed.
func (db *DB) Update(ctx context.Context, table string, record, where *model.Record, encrypted ...string) *Result {
	return db.doUpdate(ctx, db.pooled, table, record, where, encrypted)
}

// WithConn runs fn with a Session bound to a single pooled connection. The
// statements fn issues are not wrapped in a transaction.
func (db *DB) WithConn(ctx context.Context, fn func(s *Session) error) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(&Session{db: db, conn: conn})
}

func (db *DB) doSelect(ctx context.Context, h Handler, table string, columns []string, where *model.Record, opts *SelectOptions) *Result {
	sql, args, err := db.builder.BuildSelect(table, columns, where, opts)
	if err != nil {
		return db.fail(table, err)
	}
	st := &Statement{
		Kind:      StatementSelect,
		Table:     table,
		SQL:       sql,
		Args:      args,
		Sensitive: opts != nil && opts.Encrypted.Len() > 0,
		Logger:    db.logger,
	}
	return db.run(ctx, h, st)
}

func (db *DB) doInsert(ctx context.Context, h Handler, table string, record *model.Record, encrypted []string) *Result {
	set := crypt.Columns(encrypted...)
	sql, args, returning, err := db.builder.BuildInsert(table, record, set)
	if err != nil {
		return db.fail(table, err)
	}
	st := &Statement{
		Kind:      StatementInsert,
		Table:     table,
		SQL:       sql,
		Args:      args,
		Sensitive: touches(record, set),
		Returning: returning,
		Logger:    db.logger,
	}
	res := db.run(ctx, h, st)
	if res.Success {
		if v, ok := record.Get(db.keyColumn); ok {
			res.GeneratedKey = v
		}
	}
	return res
}

func (db *DB) doUpdate(ctx context.Context, h Handler, table string, record, where *model.Record, encrypted []string) *Result {
	set := crypt.Columns(encrypted...)
	sql, args, err := db.builder.BuildUpdate(table, where, record, set)
	if err != nil {
		return db.fail(table, err)
	}
	if where.Len() == 0 {
		db.logger.Warn("update of %s has no predicate and applies to every row", table)
	}
	st := &Statement{
		Kind:      StatementUpdate,
		Table:     table,
		SQL:       sql,
		Args:      args,
		Sensitive: touches(record, set),
		Logger:    db.logger,
	}
	return db.run(ctx, h, st)
}

func touches(record *model.Record, set crypt.ColumnSet) bool {
	found := false
	record.Range(func(col string, _ any) bool {
		found = set.Has(col)
		return !found
	})
	return found
}

// run passes st through the middleware chain to h and converts the outcome.
func (db *DB) run(ctx context.Context, h Handler, st *Statement) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = db.fail(st.Table, fmt.Errorf("%w: panic during %s: %v", ErrUnknown, st.Kind, r))
		}
	}()

	out, err := db.chain(h)(ctx, st)
	if err != nil {
		return db.fail(st.Table, err)
	}
	if out == nil {
		out = &Outcome{}
	}
	return &Result{
		Success:      true,
		Rows:         out.Rows,
		GeneratedKey: out.GeneratedKey,
		RowsAffected: out.RowsAffected,
		Kind:         KindNone,
	}
}

func (db *DB) chain(h Handler) Handler {
	db.mu.RLock()
	mws := db.middlewares
	db.mu.RUnlock()

	for i := len(mws) - 1; i >= 0; i-- {
		mw, next := mws[i], h
		h = func(ctx context.Context, st *Statement) (*Outcome, error) {
			return mw.Process(ctx, st, next)
		}
	}
	return h
}

// fail builds the failure Result for err and logs its detail.
func (db *DB) fail(table string, err error) *Result {
	kind := Classify(err)
	sentinel := kind.sentinel()
	wrapped := err
	if !errors.Is(err, sentinel) {
		wrapped = fmt.Errorf("%w: %w", sentinel, err)
	}

	db.logger.WithFields(map[string]any{"table": table, "kind": kind.String()}).
		Error("statement failed: %v", err)

	return &Result{
		Kind:    kind,
		Message: kind.Message(),
		Detail:  err.Error(),
		Err:     wrapped,
	}
}

// pooled executes st on a connection acquired for this statement only.
// ctx bounds the acquisition; the statement itself is not cancelled with it.
func (db *DB) pooled(ctx context.Context, st *Statement) (*Outcome, error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()
	return execute(ctx, conn, st)
}

// execute runs st on conn and materializes every result row.
func execute(ctx context.Context, conn *pool.Conn, st *Statement) (*Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	if st.Kind == StatementSelect || st.Returning {
		rows, err := conn.QueryxContext(ctx, st.SQL, st.Args...)
		if err != nil {
			st.log(time.Since(start))
			return nil, &StatementError{SQL: st.SQL, Err: err}
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return nil, &StatementError{SQL: st.SQL, Err: err}
		}
		out := &Outcome{Rows: []*model.Record{}}
		for rows.Next() {
			vals, err := rows.SliceScan()
			if err != nil {
				return nil, &StatementError{SQL: st.SQL, Err: err}
			}
			rec, err := toRecord(cols, vals)
			if err != nil {
				return nil, err
			}
			out.Rows = append(out.Rows, rec)
		}
		if err := rows.Err(); err != nil {
			return nil, &StatementError{SQL: st.SQL, Err: err}
		}
		out.Duration = time.Since(start)
		st.log(out.Duration)

		if st.Returning {
			out.RowsAffected = int64(len(out.Rows))
			if len(out.Rows) > 0 {
				out.GeneratedKey = out.Rows[0].Values()[0]
			}
			out.Rows = nil
		}
		return out, nil
	}

	res, err := conn.ExecContext(ctx, st.SQL, st.Args...)
	duration := time.Since(start)
	st.log(duration)
	if err != nil {
		return nil, &StatementError{SQL: st.SQL, Err: err}
	}

	out := &Outcome{Duration: duration}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if st.Kind == StatementInsert {
		if id, err := res.LastInsertId(); err == nil {
			out.GeneratedKey = id
		}
	}
	return out, nil
}

func (st *Statement) log(d time.Duration) {
	if st.Logger != nil {
		st.Logger.SQL(st.SQL, d, st.Args...)
	}
}

func toRecord(cols []string, vals []any) (*model.Record, error) {
	rec := model.NewRecord()
	for i, col := range cols {
		v := vals[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if err := rec.Set(col, v); err != nil {
			if !errors.Is(err, model.ErrUnsupportedValue) {
				return nil, err
			}
			_ = rec.Set(col, fmt.Sprint(v))
		}
	}
	return rec, nil
}
