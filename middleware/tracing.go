package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/shrek82/datagate/core"
)

type traceKey string

const (
	RequestIDKey traceKey = "request_id"
	UserIPKey    traceKey = "user_ip"
	TraceIDKey   traceKey = "trace_id"
)

// WithRequestID attaches a request ID that the tracing middleware adds to SQL log lines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithTraceID attaches a trace ID that the tracing middleware adds to SQL log lines.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// WithUserIP attaches the caller's address that the tracing middleware adds to SQL log lines.
func WithUserIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, UserIPKey, ip)
}

// TracingMiddleware adds tracing information to the statement logger.
// It extracts the request ID, trace ID and user IP from the context, and
// tags every statement with a fresh query_id so its log lines can be correlated.
type TracingMiddleware struct{}

func NewTracing() *TracingMiddleware {
	return &TracingMiddleware{}
}

func (m *TracingMiddleware) Name() string {
	return "Tracing"
}

func (m *TracingMiddleware) Init(db *core.DB) error {
	return nil
}

func (m *TracingMiddleware) Shutdown() error {
	return nil
}

func (m *TracingMiddleware) Process(ctx context.Context, st *core.Statement, next core.Handler) (*core.Outcome, error) {
	fields := map[string]any{
		"query_id": uuid.NewString(),
	}
	for _, k := range []traceKey{RequestIDKey, UserIPKey, TraceIDKey} {
		if v := ctx.Value(k); v != nil {
			fields[string(k)] = v
		}
	}
	st.WithFields(fields)

	return next(ctx, st)
}
