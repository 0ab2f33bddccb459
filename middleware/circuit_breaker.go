package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shrek82/datagate/core"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "closed"
}

// CircuitBreakerMiddleware stops sending statements to a failing database.
// Only infrastructure failures count: duplicate keys and missing tables are
// answers from a healthy database and leave the breaker alone.
type CircuitBreakerMiddleware struct {
	Threshold    int           // Number of consecutive failures before opening
	ResetTimeout time.Duration // Time to wait before half-open

	mu             sync.Mutex
	state          State
	failures       int
	lastFailure    time.Time
	halfOpenPassed bool
}

func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreakerMiddleware {
	return &CircuitBreakerMiddleware{
		Threshold:    threshold,
		ResetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

func (m *CircuitBreakerMiddleware) Name() string {
	return "CircuitBreaker"
}

func (m *CircuitBreakerMiddleware) Init(db *core.DB) error {
	return nil
}

func (m *CircuitBreakerMiddleware) Shutdown() error {
	return nil
}

// State returns the current breaker state.
func (m *CircuitBreakerMiddleware) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *CircuitBreakerMiddleware) Process(ctx context.Context, st *core.Statement, next core.Handler) (*core.Outcome, error) {
	m.mu.Lock()
	switch m.state {
	case StateOpen:
		if time.Since(m.lastFailure) > m.ResetTimeout {
			m.state = StateHalfOpen
			m.halfOpenPassed = false
		} else {
			m.mu.Unlock()
			return nil, ErrCircuitOpen
		}
	case StateHalfOpen:
		// one probe at a time
		if m.halfOpenPassed {
			m.mu.Unlock()
			return nil, ErrCircuitOpen
		}
	}
	if m.state == StateHalfOpen {
		m.halfOpenPassed = true
	}
	m.mu.Unlock()

	out, err := next(ctx, st)

	m.mu.Lock()
	defer m.mu.Unlock()

	if countsAsFailure(err) {
		m.recordFailure()
	} else {
		m.recordSuccess()
	}
	return out, err
}

func countsAsFailure(err error) bool {
	switch core.Classify(err) {
	case core.KindNone, core.KindDuplicateKey, core.KindMissingTable:
		return false
	}
	return true
}

func (m *CircuitBreakerMiddleware) recordFailure() {
	m.failures++
	m.lastFailure = time.Now()

	if m.state == StateClosed {
		if m.failures >= m.Threshold {
			m.state = StateOpen
		}
	} else if m.state == StateHalfOpen {
		m.state = StateOpen
		m.halfOpenPassed = false
	}
}

func (m *CircuitBreakerMiddleware) recordSuccess() {
	if m.state == StateHalfOpen {
		m.state = StateClosed
		m.halfOpenPassed = false
	}
	// consecutive failures only
	m.failures = 0
}
