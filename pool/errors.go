package pool

import (
	"errors"
)

var (
	// ErrPoolClosed is returned once shutdown has started. Callers should
	// treat the pool as unavailable.
	ErrPoolClosed = errors.New("pool: pool is closed")
	// ErrAcquireTimeout is returned when no idle connection became available
	// within the acquire timeout. It is never retried internally.
	ErrAcquireTimeout = errors.New("pool: acquire timed out")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("pool: already started")
	// ErrHandleReleased is returned when a handle is used after Release.
	ErrHandleReleased = errors.New("pool: handle already released")
)
