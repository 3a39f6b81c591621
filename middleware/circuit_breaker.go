package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shrek82/jpool/conn"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// CircuitBreaker guards a dialer. After Threshold consecutive failed dials
// it opens and fails dials with ErrCircuitOpen without touching the
// backend. Once ResetTimeout has passed it lets a single probe through;
// the probe's outcome closes or reopens it.
type CircuitBreaker struct {
	Threshold    int
	ResetTimeout time.Duration

	dialer conn.Dialer
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
}

func NewCircuitBreaker(d conn.Dialer, threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		Threshold:    threshold,
		ResetTimeout: resetTimeout,
		dialer:       d,
		now:          time.Now,
		state:        StateClosed,
	}
}

func (m *CircuitBreaker) Name() string {
	return "CircuitBreaker"
}

// State returns the current state.
func (m *CircuitBreaker) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *CircuitBreaker) Dial(ctx context.Context, t conn.Target) (conn.Conn, error) {
	m.mu.Lock()
	switch m.state {
	case StateOpen:
		if m.now().Sub(m.lastFailure) < m.ResetTimeout {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %s: %w", conn.ErrConnectFailed, t, ErrCircuitOpen)
		}
		m.state = StateHalfOpen
		m.probing = false
		fallthrough
	case StateHalfOpen:
		if m.probing {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %s: %w", conn.ErrConnectFailed, t, ErrCircuitOpen)
		}
		m.probing = true
	}
	m.mu.Unlock()

	c, err := m.dialer.Dial(ctx, t)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.recordFailure()
	} else {
		m.recordSuccess()
	}
	return c, err
}

func (m *CircuitBreaker) recordFailure() {
	m.failures++
	m.lastFailure = m.now()

	switch m.state {
	case StateClosed:
		if m.failures >= m.Threshold {
			m.state = StateOpen
		}
	case StateHalfOpen:
		m.state = StateOpen
		m.probing = false
	}
}

// recordSuccess resets the count, so Threshold counts consecutive failures.
func (m *CircuitBreaker) recordSuccess() {
	m.state = StateClosed
	m.failures = 0
	m.probing = false
}
