// Package pool implements a bounded pool of reusable database connections.
//
// A Pool opens InitSize connections up front. Once started, a single
// producer goroutine grows the pool on demand up to MaxSize, one dial at a
// time, and a monitor goroutine closes connections that stayed idle for
// MaxFreeTime, never going below InitSize. Idle connections wait in a FIFO
// queue guarded by one mutex together with the live connection count.
//
//	p, err := pool.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer p.Shutdown()
//	p.Start()
//
//	err = p.Do(ctx, func(h *pool.Handle) error {
//	    return h.Execute(ctx, "INSERT INTO people(peop_name) VALUES(?)", conn.String("alice"))
//	})
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shrek82/jpool/config"
	"github.com/shrek82/jpool/conn"
	"github.com/shrek82/jpool/logger"
)

const (
	// DefaultRetryBackoff is how long the producer sleeps after a failed dial.
	DefaultRetryBackoff = 100 * time.Millisecond
	// DefaultDialTimeout bounds a single connection attempt.
	DefaultDialTimeout = 10 * time.Second
)

// nowFunc returns the current time; it's overridden in tests.
var nowFunc = time.Now

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger. The default is a standard logger at info level.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) { p.log = l }
}

// WithDialer overrides the dialer otherwise resolved from Config.Driver.
func WithDialer(d conn.Dialer) Option {
	return func(p *Pool) { p.dialer = d }
}

// WithRetryBackoff sets the producer's sleep after a failed dial.
func WithRetryBackoff(d time.Duration) Option {
	return func(p *Pool) { p.retryBackoff = d }
}

// WithDialTimeout bounds each connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(p *Pool) { p.dialTimeout = d }
}

// WithReleaseCheck installs a check run on every release. Connections for
// which it returns false are closed instead of going back to the queue.
func WithReleaseCheck(fn func(conn.Conn) bool) Option {
	return func(p *Pool) { p.releaseCheck = fn }
}

// Pool is a bounded pool of database connections.
// It's safe for concurrent use by multiple goroutines.
type Pool struct {
	cfg          config.Config
	target       conn.Target
	dialer       conn.Dialer
	log          logger.Logger
	retryBackoff time.Duration
	dialTimeout  time.Duration
	releaseCheck func(conn.Conn) bool

	mu       sync.Mutex // protects following fields
	idle     waitQueue
	live     uint32 // connections that exist anywhere: queued or checked out
	waiters  int    // acquirers blocked on notEmpty
	hinted   bool   // an acquire timed out with headroom left
	started  bool
	closed   bool
	nextID   uint64
	notEmpty *sync.Cond // queue non-empty, or shutdown
	needConn *sync.Cond // queue empty with headroom and demand, or shutdown

	// ctx bounds the producer's dials and is canceled on shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{} // closed on shutdown
	wg     sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error

	stats counters
}

// New validates cfg and opens cfg.InitSize connections. Connections that
// fail to open are logged and skipped, so the pool may start smaller than
// InitSize; only configuration errors fail New.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:          cfg,
		target:       cfg.Target(),
		retryBackoff: DefaultRetryBackoff,
		dialTimeout:  DefaultDialTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.NewStdLogger()
	}
	if p.dialer == nil {
		d, err := conn.Open(cfg.Driver, p.log)
		if err != nil {
			return nil, err
		}
		p.dialer = d
	}
	p.log = p.log.WithFields(map[string]any{"component": "pool", "target": cfg.Key()})
	p.notEmpty = sync.NewCond(&p.mu)
	p.needConn = sync.NewCond(&p.mu)
	p.ctx, p.cancel = context.WithCancel(context.Background())

	for i := uint32(0); i < cfg.InitSize; i++ {
		c, err := p.dial(ctx)
		if err != nil {
			p.log.Warn("initial connection %d/%d failed: %v", i+1, cfg.InitSize, err)
			continue
		}
		p.mu.Lock()
		p.live++
		p.pushLocked(p.newPooledConnLocked(c))
		p.mu.Unlock()
	}

	p.log.Info("pool created: live=%d initSize=%d maxSize=%d", p.live, cfg.InitSize, cfg.MaxSize)
	return p, nil
}

// Config returns the configuration the pool was built with.
func (p *Pool) Config() config.Config {
	return p.cfg
}

// Start launches the producer and, when MaxFreeTime is positive, the
// monitor. It may be called once.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	p.wg.Add(1)
	go p.produce()
	if p.cfg.MaxFreeTime > 0 {
		p.wg.Add(1)
		go p.monitor()
	}
	p.log.Info("producer and monitor started")
	return nil
}

// Shutdown stops the producer and the monitor, waits for both, then closes
// every queued connection. Connections still checked out are closed when
// released. Acquire fails with ErrPoolClosed from the moment Shutdown
// begins. Later calls wait for the first one and return nil.
func (p *Pool) Shutdown() error {
	var err error
	first := false
	p.shutdownOnce.Do(func() {
		first = true
		p.mu.Lock()
		p.closed = true
		p.cancel()
		close(p.done)
		p.notEmpty.Broadcast()
		p.needConn.Broadcast()
		p.mu.Unlock()

		p.wg.Wait()

		p.mu.Lock()
		drained := p.idle.drain()
		p.live -= uint32(len(drained))
		inUse := p.live
		p.mu.Unlock()

		var errs []error
		for _, pc := range drained {
			if cerr := pc.conn.Close(); cerr != nil {
				errs = append(errs, fmt.Errorf("close connection %d: %w", pc.id, cerr))
			}
		}
		p.shutdownErr = errors.Join(errs...)
		p.log.Info("pool shut down: closed=%d stillCheckedOut=%d", len(drained), inUse)
	})
	if first {
		err = p.shutdownErr
	}
	return err
}

// dial opens one connection with the dial timeout applied.
func (p *Pool) dial(ctx context.Context) (conn.Conn, error) {
	if p.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.dialTimeout)
		defer cancel()
	}
	c, err := p.dialer.Dial(ctx, p.target)
	if err != nil {
		p.stats.dialFailures.Add(1)
		return nil, err
	}
	p.stats.created.Add(1)
	return c, nil
}

func (p *Pool) newPooledConnLocked(c conn.Conn) *pooledConn {
	p.nextID++
	return &pooledConn{id: p.nextID, conn: c}
}

// pushLocked appends pc to the queue tail with a fresh idle timestamp.
// Taking the timestamp under the lock keeps the queue in idle order.
func (p *Pool) pushLocked(pc *pooledConn) {
	pc.idleSince = nowFunc()
	p.idle.push(pc)
}
