package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shrek82/jpool/config"
	"github.com/shrek82/jpool/conn"
	"github.com/shrek82/jpool/logger"
)

var errBackendDown = errors.New("fake: connection refused")

// fakeConn is a conn.Conn that records how it is used.
type fakeConn struct {
	id     int
	inUse  atomic.Bool
	broken atomic.Bool
	closed atomic.Bool
	execs  atomic.Int32
}

func (c *fakeConn) Execute(ctx context.Context, statement string, params ...conn.Param) error {
	if c.closed.Load() {
		return errors.New("fake: use of closed connection")
	}
	c.execs.Add(1)
	if statement == "FAIL" {
		return fmt.Errorf("%w: fake: syntax error", conn.ErrStatementFailed)
	}
	return nil
}

func (c *fakeConn) Query(ctx context.Context, statement string, params ...conn.Param) (conn.Rows, error) {
	if err := c.Execute(ctx, statement, params...); err != nil {
		return nil, err
	}
	return emptyRows{}, nil
}

func (c *fakeConn) Ping(context.Context) error {
	if c.broken.Load() || c.closed.Load() {
		return errors.New("fake: broken pipe")
	}
	return nil
}

func (c *fakeConn) Close() error {
	if c.closed.Swap(true) {
		return errors.New("fake: duplicate close")
	}
	return nil
}

type emptyRows struct{}

func (emptyRows) Next() bool                 { return false }
func (emptyRows) Scan(...any) error          { return errors.New("fake: no rows") }
func (emptyRows) Columns() ([]string, error) { return nil, nil }
func (emptyRows) Err() error                 { return nil }
func (emptyRows) Close() error               { return nil }

// fakeDialer hands out fakeConns. It can fail a number of upcoming dials,
// be taken down entirely, or delay each dial.
type fakeDialer struct {
	mu       sync.Mutex
	failNext int
	down     bool
	delay    time.Duration
	attempts int
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, t conn.Target) (conn.Conn, error) {
	d.mu.Lock()
	d.attempts++
	delay := d.delay
	fail := d.down || d.failNext > 0
	if d.failNext > 0 {
		d.failNext--
	}
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, fmt.Errorf("%w: %s: %w", conn.ErrConnectFailed, t, errBackendDown)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	c := &fakeConn{id: len(d.conns) + 1}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setDown(down bool) {
	d.mu.Lock()
	d.down = down
	d.mu.Unlock()
}

func (d *fakeDialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *fakeDialer) Conns() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeConn(nil), d.conns...)
}

func (d *fakeDialer) Closed() int {
	n := 0
	for _, c := range d.Conns() {
		if c.closed.Load() {
			n++
		}
	}
	return n
}

func testConfig(initSize, maxSize uint32, timeout, maxFree time.Duration) config.Config {
	cfg := config.Default()
	cfg.Driver = "fake"
	cfg.DBName = "test_db"
	cfg.InitSize = initSize
	cfg.MaxSize = maxSize
	cfg.ConnectionTimeout = timeout
	cfg.MaxFreeTime = maxFree
	return cfg
}

func newTestPool(t *testing.T, cfg config.Config, d *fakeDialer, opts ...Option) *Pool {
	t.Helper()
	opts = append([]Option{
		WithDialer(d),
		WithLogger(logger.Discard()),
		WithRetryBackoff(10 * time.Millisecond),
	}, opts...)
	p, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { p.Shutdown() })
	return p
}

// fakeClock replaces nowFunc for the duration of a test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func installFakeClock(t *testing.T) *fakeClock {
	c := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	nowFunc = c.Now
	t.Cleanup(func() { nowFunc = time.Now })
	return c
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
