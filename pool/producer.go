package pool

import (
	"time"
)

// growLocked reports whether the producer should open a connection: the
// queue is empty, there is headroom, and somebody wants one.
func (p *Pool) growLocked() bool {
	return p.idle.len() == 0 && p.live < p.cfg.MaxSize && (p.waiters > 0 || p.hinted)
}

// produce is the producer loop. It is the only place that grows the pool
// after New, so at most one dial is in flight and live never passes MaxSize
// even though the dial itself runs without the lock. Growth is demand-gated:
// an empty queue with headroom is not enough, a blocked acquirer or a
// timed-out one must be asking for a connection.
func (p *Pool) produce() {
	defer p.wg.Done()

	p.mu.Lock()
	for {
		for !p.closed && !p.growLocked() {
			p.needConn.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			p.log.Debug("producer stopped")
			return
		}
		p.mu.Unlock()

		c, err := p.dial(p.ctx)
		if err != nil {
			if p.ctx.Err() == nil {
				p.log.Warn("connect failed, retrying in %v: %v", p.retryBackoff, err)
			}
			// sleep without the lock so acquirers and releasers keep going
			// while the backend is unreachable
			t := time.NewTimer(p.retryBackoff)
			select {
			case <-p.done:
				t.Stop()
			case <-t.C:
			}
			p.mu.Lock()
			continue
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			if err := c.Close(); err != nil {
				p.log.Warn("close connection dialed during shutdown: %v", err)
			}
			p.log.Debug("producer stopped")
			return
		}
		p.live++
		pc := p.newPooledConnLocked(c)
		p.pushLocked(pc)
		p.hinted = false
		p.notEmpty.Broadcast()
		p.log.Debug("opened connection %d: live=%d", pc.id, p.live)
	}
}
