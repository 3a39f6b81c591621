package pool

import (
	"time"

	"github.com/shrek82/jpool/conn"
)

// pooledConn is a connection annotated with the time it became idle.
type pooledConn struct {
	id        uint64
	conn      conn.Conn
	idleSince time.Time
}

func (pc *pooledConn) idleTime(now time.Time) time.Duration {
	return now.Sub(pc.idleSince)
}

// waitQueue is the FIFO of idle connections. Entries are pushed with
// idleSince set to the push time while the pool lock is held, so the head
// is always the connection that has been idle the longest.
type waitQueue struct {
	items []*pooledConn
	head  int
}

func (q *waitQueue) len() int {
	return len(q.items) - q.head
}

func (q *waitQueue) push(pc *pooledConn) {
	q.items = append(q.items, pc)
}

// peek returns the head without removing it, or nil.
func (q *waitQueue) peek() *pooledConn {
	if q.len() == 0 {
		return nil
	}
	return q.items[q.head]
}

// pop removes and returns the head, or nil.
func (q *waitQueue) pop() *pooledConn {
	if q.len() == 0 {
		return nil
	}
	pc := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 16 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return pc
}

// drain empties the queue and returns its entries in order.
func (q *waitQueue) drain() []*pooledConn {
	out := make([]*pooledConn, q.len())
	copy(out, q.items[q.head:])
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
	return out
}
