package pool

import (
	"time"
)

// monitor is the eviction loop. It wakes every MaxFreeTime.
func (p *Pool) monitor() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.MaxFreeTime)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			p.log.Debug("monitor stopped")
			return
		case <-ticker.C:
		}
		select {
		case <-p.done:
			p.log.Debug("monitor stopped")
			return
		default:
		}
		p.evictIdle()
	}
}

// evictIdle closes queued connections idle for at least MaxFreeTime while
// more than InitSize connections are live. The queue is in idle order, so
// the scan stops at the first head that has not expired yet.
func (p *Pool) evictIdle() int {
	p.mu.Lock()
	now := nowFunc()
	var expired []*pooledConn
	for p.live > p.cfg.InitSize {
		pc := p.idle.peek()
		if pc == nil || pc.idleTime(now) < p.cfg.MaxFreeTime {
			break
		}
		p.idle.pop()
		p.live--
		expired = append(expired, pc)
	}
	live := p.live
	p.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}
	for _, pc := range expired {
		p.closeConn(pc, "idle timeout")
	}
	p.stats.evicted.Add(uint64(len(expired)))
	p.log.Info("evicted %d idle connections: live=%d", len(expired), live)
	return len(expired)
}
