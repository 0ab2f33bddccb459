// Package datagate is a relational data access layer: single-table select,
// insert and update built from column/value records, optional per-call column
// encryption, a bounded validated connection pool, and a fixed error taxonomy.
package datagate

import (
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/shrek82/datagate/config"
	"github.com/shrek82/datagate/core"
	"github.com/shrek82/datagate/crypt"
	"github.com/shrek82/datagate/logger"
	"github.com/shrek82/datagate/middleware"
	"github.com/shrek82/datagate/model"
	"github.com/shrek82/datagate/pool"
)

// Re-export core types and functions
type DB = core.DB
type Session = core.Session
type Result = core.Result
type Options = core.Options
type SelectOptions = core.SelectOptions
type ErrorKind = core.ErrorKind
type Record = model.Record

var (
	New         = core.New
	Classify    = core.Classify
	Interpolate = core.Interpolate

	NewRecord = model.NewRecord
	R         = model.R
	Columns   = crypt.Columns
	NewSecret = crypt.NewSecret
)

const (
	KindNone              = core.KindNone
	KindPoolExhausted     = core.KindPoolExhausted
	KindConnectionInvalid = core.KindConnectionInvalid
	KindDuplicateKey      = core.KindDuplicateKey
	KindMissingTable      = core.KindMissingTable
	KindSQL               = core.KindSQL
	KindUnknown           = core.KindUnknown
)

var (
	ErrPoolExhausted     = core.ErrPoolExhausted
	ErrConnectionInvalid = core.ErrConnectionInvalid
	ErrDuplicateKey      = core.ErrDuplicateKey
	ErrMissingTable      = core.ErrMissingTable
	ErrSQL               = core.ErrSQL
	ErrUnknown           = core.ErrUnknown
	ErrInvalidQuery      = core.ErrInvalidQuery
)

// Open builds the logger, pool, DB and configured middleware from cfg.
func Open(cfg *config.Config) (*DB, error) {
	log := NewLogger(cfg.Logging)

	p, err := pool.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	db := core.New(p, crypt.NewSecret(cfg.Encryption.Key), &core.Options{
		Logger:    log,
		KeyColumn: cfg.KeyColumn,
	})
	if err := db.Use(middlewareFor(cfg)...); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewLogger builds the logger described by cfg.
func NewLogger(cfg config.LoggingConfig) logger.Logger {
	var log logger.Logger
	if strings.EqualFold(cfg.Backend, "zap") {
		log = logger.NewZapLogger(nil)
	} else {
		log = logger.NewStdLogger()
	}
	log.SetLevel(logger.ParseLevel(cfg.Level))
	log.SetFormat(logger.ParseFormat(cfg.Format))
	return log
}

// middlewareFor lists the configured middleware, outermost first.
func middlewareFor(cfg *config.Config) []core.Middleware {
	var mws []core.Middleware
	if cfg.Tracing {
		mws = append(mws, middleware.NewTracing())
	}
	if cfg.SlowLog.Threshold > 0 {
		mws = append(mws, middleware.NewSlowLog(cfg.SlowLog.Threshold, cfg.SlowLog.Path))
	}
	if cfg.Cache.Enabled {
		if cfg.Cache.RedisAddr != "" {
			mws = append(mws, middleware.NewRedisCache(&redis.Options{
				Addr:     cfg.Cache.RedisAddr,
				Password: cfg.Cache.RedisPassword,
				DB:       cfg.Cache.RedisDB,
			}, cfg.Cache.TTL))
		} else {
			mws = append(mws, middleware.NewMemoryCache(cfg.Cache.TTL))
		}
	}
	if cfg.Breaker.Threshold > 0 {
		mws = append(mws, middleware.NewCircuitBreaker(cfg.Breaker.Threshold, cfg.Breaker.ResetTimeout))
	}
	return mws
}
