package pool

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Acquire removes the head of the idle queue and returns it wrapped in a
// Handle. If the queue is empty it waits up to the configured connection
// timeout (or the ctx deadline, whichever comes first), rechecking after
// every wake.
//
// An acquirer that has to wait while the pool has headroom wakes the
// producer, so it may well receive the connection it asked for. On timeout
// the producer is woken again when there is headroom, but the caller still
// gets ErrAcquireTimeout and is expected to call Acquire again.
// After Shutdown has begun Acquire returns ErrPoolClosed without waiting.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	p.stats.acquires.Add(1)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.notEmpty.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.closed {
			p.stats.unavailable.Add(1)
			return nil, ErrPoolClosed
		}

		if pc := p.idle.pop(); pc != nil {
			p.stats.acquireSuccess.Add(1)
			p.stats.waitNanos.Add(int64(time.Since(start)))
			return newHandle(p, pc), nil
		}

		if err := ctx.Err(); err != nil {
			if p.live < p.cfg.MaxSize {
				p.hinted = true
				p.needConn.Signal()
			}
			p.stats.waitNanos.Add(int64(time.Since(start)))
			if errors.Is(err, context.DeadlineExceeded) {
				p.stats.timeouts.Add(1)
				p.log.Warn("acquire timed out after %v: live=%d maxSize=%d", time.Since(start), p.live, p.cfg.MaxSize)
				return nil, ErrAcquireTimeout
			}
			p.stats.canceled.Add(1)
			return nil, fmt.Errorf("pool: acquire: %w", err)
		}

		if p.live < p.cfg.MaxSize {
			p.needConn.Signal()
		}
		p.waiters++
		p.notEmpty.Wait()
		p.waiters--
	}
}

// Do acquires a connection, calls fn with it and releases it on every exit
// path, including a panic in fn.
func (p *Pool) Do(ctx context.Context, fn func(h *Handle) error) error {
	h, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn(h)
}

// put returns a released connection to the queue tail.
func (p *Pool) put(pc *pooledConn) {
	p.stats.releases.Add(1)
	if p.releaseCheck != nil && !p.releaseCheck(pc.conn) {
		p.discard(pc, "release check failed")
		return
	}

	p.mu.Lock()
	if p.closed {
		p.live--
		p.mu.Unlock()
		p.closeConn(pc, "pool closed")
		return
	}
	p.pushLocked(pc)
	p.hinted = false
	p.notEmpty.Signal()
	p.mu.Unlock()
}

// discard drops a checked-out connection instead of queueing it.
func (p *Pool) discard(pc *pooledConn, reason string) {
	p.stats.discarded.Add(1)
	p.mu.Lock()
	p.live--
	if p.waiters > 0 {
		p.needConn.Signal()
	}
	p.mu.Unlock()
	p.closeConn(pc, reason)
}

func (p *Pool) closeConn(pc *pooledConn, reason string) {
	if err := pc.conn.Close(); err != nil {
		p.log.Warn("close connection %d (%s): %v", pc.id, reason, err)
		return
	}
	p.log.Debug("closed connection %d: %s", pc.id, reason)
}
