package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/shrek82/jpool/config"
)

// Registry hands out exactly one started Pool per backend target
// (config.Config.Key). It is meant to be created once by the program's
// composition root and passed to whoever needs a pool.
type Registry struct {
	mu    sync.Mutex
	pools map[string]*registryEntry
}

type registryEntry struct {
	once sync.Once
	pool *Pool
	err  error
}

func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]*registryEntry)}
}

// Get returns the pool for cfg's target, creating and starting it on first
// use. Concurrent first calls build the pool once. A failed build is
// forgotten so a later call can try again.
func (r *Registry) Get(ctx context.Context, cfg config.Config, opts ...Option) (*Pool, error) {
	key := cfg.Key()

	r.mu.Lock()
	e, ok := r.pools[key]
	if !ok {
		e = &registryEntry{}
		r.pools[key] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		p, err := New(ctx, cfg, opts...)
		if err == nil {
			if err = p.Start(); err != nil {
				p.Shutdown()
				p = nil
			}
		}
		e.pool, e.err = p, err
	})

	if e.err != nil {
		r.mu.Lock()
		if r.pools[key] == e {
			delete(r.pools, key)
		}
		r.mu.Unlock()
		return nil, e.err
	}
	return e.pool, nil
}

// ShutdownAll shuts down every pool handed out so far and forgets them.
func (r *Registry) ShutdownAll() error {
	r.mu.Lock()
	entries := r.pools
	r.pools = make(map[string]*registryEntry)
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		// waits for a build in progress; an entry never built stays closed
		e.once.Do(func() { e.err = ErrPoolClosed })
		if e.pool != nil {
			errs = append(errs, e.pool.Shutdown())
		}
	}
	return errors.Join(errs...)
}
