package pool

import (
	"sync/atomic"
	"time"
)

type counters struct {
	acquires       atomic.Uint64
	acquireSuccess atomic.Uint64
	timeouts       atomic.Uint64
	unavailable    atomic.Uint64
	canceled       atomic.Uint64
	releases       atomic.Uint64
	created        atomic.Uint64
	dialFailures   atomic.Uint64
	evicted        atomic.Uint64
	discarded      atomic.Uint64
	waitNanos      atomic.Int64
}

// Stats is a snapshot of pool state and counters.
type Stats struct {
	MaxSize  uint32
	InitSize uint32
	// Live is the number of connections that exist, queued or checked out.
	Live uint32
	// Idle is the number of queued connections.
	Idle uint32
	// InUse is the number of checked-out connections.
	InUse uint32
	// Waiters is the number of callers blocked in Acquire.
	Waiters int

	AcquireCount       uint64
	AcquireSuccess     uint64
	AcquireTimeouts    uint64
	AcquireUnavailable uint64
	AcquireCanceled    uint64
	ReleaseCount       uint64
	// Created counts successful dials, DialFailures failed ones.
	Created      uint64
	DialFailures uint64
	// Evicted counts connections closed by the monitor.
	Evicted uint64
	// Discarded counts connections dropped by the release check.
	Discarded uint64
	// WaitDuration is the total time spent inside Acquire.
	WaitDuration time.Duration
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	live, idle, waiters := p.live, uint32(p.idle.len()), p.waiters
	p.mu.Unlock()

	return Stats{
		MaxSize:            p.cfg.MaxSize,
		InitSize:           p.cfg.InitSize,
		Live:               live,
		Idle:               idle,
		InUse:              live - idle,
		Waiters:            waiters,
		AcquireCount:       p.stats.acquires.Load(),
		AcquireSuccess:     p.stats.acquireSuccess.Load(),
		AcquireTimeouts:    p.stats.timeouts.Load(),
		AcquireUnavailable: p.stats.unavailable.Load(),
		AcquireCanceled:    p.stats.canceled.Load(),
		ReleaseCount:       p.stats.releases.Load(),
		Created:            p.stats.created.Load(),
		DialFailures:       p.stats.dialFailures.Load(),
		Evicted:            p.stats.evicted.Load(),
		Discarded:          p.stats.discarded.Load(),
		WaitDuration:       time.Duration(p.stats.waitNanos.Load()),
	}
}
