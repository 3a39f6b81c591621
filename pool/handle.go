package pool

import (
	"context"
	"sync/atomic"

	"github.com/shrek82/jpool/conn"
)

// Handle is a connection borrowed from a Pool. It is owned by one caller
// until Release, which returns the connection to the pool. Release is the
// only way back; a handle that is never released is lost to the pool.
//
// A Handle must not be copied.
type Handle struct {
	p  *Pool
	pc atomic.Pointer[pooledConn]
}

func newHandle(p *Pool, pc *pooledConn) *Handle {
	h := &Handle{p: p}
	h.pc.Store(pc)
	return h
}

// Release returns the connection to the pool. Calls after the first are
// no-ops.
func (h *Handle) Release() {
	pc := h.pc.Swap(nil)
	if pc == nil {
		return
	}
	h.p.put(pc)
}

// ID identifies the underlying pooled connection; it stays the same across
// checkouts of the same connection. It is 0 after Release.
func (h *Handle) ID() uint64 {
	if pc := h.pc.Load(); pc != nil {
		return pc.id
	}
	return 0
}

// Conn returns the underlying connection, or nil after Release.
// The connection must not be retained past Release.
func (h *Handle) Conn() conn.Conn {
	if pc := h.pc.Load(); pc != nil {
		return pc.conn
	}
	return nil
}

// Execute runs statement on the connection. It returns ErrHandleReleased
// after Release.
func (h *Handle) Execute(ctx context.Context, statement string, params ...conn.Param) error {
	c := h.Conn()
	if c == nil {
		return ErrHandleReleased
	}
	return c.Execute(ctx, statement, params...)
}

// Query runs statement and returns its rows. It returns ErrHandleReleased
// after Release.
func (h *Handle) Query(ctx context.Context, statement string, params ...conn.Param) (conn.Rows, error) {
	c := h.Conn()
	if c == nil {
		return nil, ErrHandleReleased
	}
	return c.Query(ctx, statement, params...)
}

// Ping checks the connection. It returns ErrHandleReleased after Release.
func (h *Handle) Ping(ctx context.Context) error {
	c := h.Conn()
	if c == nil {
		return ErrHandleReleased
	}
	return c.Ping(ctx)
}
