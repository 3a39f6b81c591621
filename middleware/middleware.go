// Package middleware intercepts statements and dials on the way to a
// backend. Statement middleware is installed on a dialer with Wrap, so
// every connection the dialer opens runs Execute and Query through the
// chain.
package middleware

import (
	"context"

	"github.com/shrek82/jpool/conn"
)

// Statement is one Execute or Query call travelling through the chain.
type Statement struct {
	SQL    string
	Params []conn.Param
	// IsQuery reports whether the caller wants rows back. The innermost
	// step sets Rows for queries.
	IsQuery bool
	Rows    conn.Rows
	// Fields are attached by middleware for the ones further down.
	Fields map[string]any
}

// StatementFunc is the next step in the chain.
type StatementFunc func(ctx context.Context, st *Statement) error

// Middleware intercepts statements.
type Middleware interface {
	Name() string
	Process(ctx context.Context, st *Statement, next StatementFunc) error
}

// Wrap returns a dialer whose connections pass every statement through
// mws, outermost first.
func Wrap(d conn.Dialer, mws ...Middleware) conn.Dialer {
	if len(mws) == 0 {
		return d
	}
	return conn.DialerFunc(func(ctx context.Context, t conn.Target) (conn.Conn, error) {
		c, err := d.Dial(ctx, t)
		if err != nil {
			return nil, err
		}
		return &wrappedConn{Conn: c, run: chain(c, mws)}, nil
	})
}

func chain(c conn.Conn, mws []Middleware) StatementFunc {
	next := func(ctx context.Context, st *Statement) error {
		if st.IsQuery {
			rows, err := c.Query(ctx, st.SQL, st.Params...)
			st.Rows = rows
			return err
		}
		return c.Execute(ctx, st.SQL, st.Params...)
	}
	for i := len(mws) - 1; i >= 0; i-- {
		mw, inner := mws[i], next
		next = func(ctx context.Context, st *Statement) error {
			return mw.Process(ctx, st, inner)
		}
	}
	return next
}

type wrappedConn struct {
	conn.Conn
	run StatementFunc
}

func (c *wrappedConn) Execute(ctx context.Context, statement string, params ...conn.Param) error {
	return c.run(ctx, &Statement{SQL: statement, Params: params})
}

func (c *wrappedConn) Query(ctx context.Context, statement string, params ...conn.Param) (conn.Rows, error) {
	st := &Statement{SQL: statement, Params: params, IsQuery: true}
	if err := c.run(ctx, st); err != nil {
		if st.Rows != nil {
			st.Rows.Close()
		}
		return nil, err
	}
	return st.Rows, nil
}
