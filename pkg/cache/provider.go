package cache

import (
	"context"
	"sync"
)

// Provider hands out a single memoized Cache instance. Construction is
// deferred until the first Instance call, so a Provider can be wired into
// dependency graphs before any backend is reachable. Pass the Provider (not
// a package-level singleton) to components that need the cache.
type Provider[V any] struct {
	cfg     Config
	options []Option[V]

	once sync.Once

	// mu guards cache and err against a Close racing the first Instance.
	mu    sync.Mutex
	cache Cache[V]
	err   error
}

// NewProvider creates a Provider that will build its cache from cfg on
// first use.
func NewProvider[V any](cfg Config, options ...Option[V]) *Provider[V] {
	return &Provider[V]{cfg: cfg, options: options}
}

// Instance returns the process-wide cache, constructing it on the first
// call. Every subsequent call returns the same instance (or the same
// construction error). The context is only used by the first caller.
func (p *Provider[V]) Instance(ctx context.Context) (Cache[V], error) {
	p.once.Do(func() {
		cache, err := New(ctx, p.cfg, p.options...)

		p.mu.Lock()
		p.cache, p.err = cache, err
		p.mu.Unlock()
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache, p.err
}

// Close releases the memoized cache if it was ever constructed.
func (p *Provider[V]) Close() error {
	p.mu.Lock()
	cache := p.cache
	p.mu.Unlock()

	if cache == nil {
		return nil
	}
	return cache.Close()
}
