// Package conn defines the connection collaborator of the pool: one live
// backend session that can execute parameterized statements, plus the
// dialers that establish such sessions for each supported driver.
package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shrek82/jpool/logger"
)

var (
	// ErrConnectFailed is returned when a backend session cannot be established.
	ErrConnectFailed = errors.New("connect failed")
	// ErrStatementFailed is returned when the backend rejects a statement.
	// The session itself is still usable.
	ErrStatementFailed = errors.New("statement failed")
	// ErrUnknownDriver is returned by Open for a driver nobody registered.
	ErrUnknownDriver = errors.New("unknown driver")
)

// Conn is one live backend session. A Conn is not safe for concurrent use;
// the pool hands it to a single caller at a time.
type Conn interface {
	// Execute runs a statement that returns no rows (INSERT/UPDATE/DELETE).
	Execute(ctx context.Context, statement string, params ...Param) error
	// Query runs a statement that returns rows. On failure the returned
	// Rows is nil.
	Query(ctx context.Context, statement string, params ...Param) (Rows, error)
	Ping(ctx context.Context) error
	Close() error
}

// Rows is a forward-only result set. *sql.Rows satisfies it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Err() error
	Close() error
}

// Target identifies the backend a dialer connects to.
type Target struct {
	Host     string
	Port     uint16
	User     string
	Password string
	DBName   string
}

// Addr returns host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))
}

// String renders the target without the password.
func (t Target) String() string {
	return fmt.Sprintf("%s@%s/%s", t.User, t.Addr(), t.DBName)
}

// keywordDSN renders the libpq keyword/value form understood by lib/pq and pgx.
func (t Target) keywordDSN() string {
	var parts []string
	add := func(k, v string) {
		if v == "" {
			return
		}
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `'`, `\'`)
		parts = append(parts, k+"='"+v+"'")
	}
	add("host", t.Host)
	if t.Port != 0 {
		add("port", strconv.Itoa(int(t.Port)))
	}
	add("user", t.User)
	add("password", t.Password)
	add("dbname", t.DBName)
	return strings.Join(parts, " ")
}

// Dialer establishes backend sessions.
type Dialer interface {
	Dial(ctx context.Context, t Target) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, t Target) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, t Target) (Conn, error) {
	return f(ctx, t)
}

// Factory builds a Dialer that logs through l.
type Factory func(l logger.Logger) Dialer

var factories = struct {
	sync.RWMutex
	m map[string]Factory
}{m: make(map[string]Factory)}

// Register makes a driver available by the provided name.
// It panics if f is nil or the name is already taken.
func Register(name string, f Factory) {
	if f == nil {
		panic("conn: Register factory is nil")
	}
	factories.Lock()
	defer factories.Unlock()
	if _, dup := factories.m[name]; dup {
		panic("conn: Register called twice for driver " + name)
	}
	factories.m[name] = f
}

// Open returns a dialer for the named driver. A nil logger discards output.
func Open(name string, l logger.Logger) (Dialer, error) {
	factories.RLock()
	f, ok := factories.m[name]
	factories.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, name)
	}
	if l == nil {
		l = logger.Discard()
	}
	return f(l.WithFields(map[string]any{"driver": name})), nil
}

// Drivers returns a sorted list of the registered driver names.
func Drivers() []string {
	factories.RLock()
	defer factories.RUnlock()
	list := make([]string, 0, len(factories.m))
	for name := range factories.m {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}
