package pool

import "errors"

var (
	// ErrPoolExhausted is returned when no connection frees up within the acquire timeout.
	ErrPoolExhausted = errors.New("pool: exhausted")

	// ErrConnectionInvalid is returned when a connection and its replacement both fail validation.
	ErrConnectionInvalid = errors.New("pool: connection failed validation")

	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrInvalidConfig is returned when a Config breaks its size invariants.
	ErrInvalidConfig = errors.New("pool: invalid config")
)
