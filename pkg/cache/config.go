package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/merxcommerce/merx/errors"
)

// Config contains construction-time configuration for the cache subsystem.
// Durations accept Go duration strings ("90s", "5m") in YAML/JSON.
type Config struct {
	// Enabled determines if caching is enabled. A disabled cache always
	// misses, which every caller must tolerate anyway.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Backend selects the tier: "memory", "redis", or "nats". Empty means
	// auto-select: a configured remote endpoint wins over plain memory.
	Backend string `json:"backend" yaml:"backend"`

	// MaxSize is the maximum number of entries in the in-process store
	// (and the embedded fallback store of a remote adapter).
	MaxSize int `json:"max_size" yaml:"max_size"`

	// DefaultTTL applies when a caller does not pass an explicit TTL.
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl"`

	// SweepInterval > 0 enables periodic reclamation of expired entries.
	// Zero disables the sweep; lazy expiry keeps the cache correct.
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval"`

	// RemoteTimeout bounds every call to a distributed backend.
	RemoteTimeout time.Duration `json:"remote_timeout" yaml:"remote_timeout"`

	// DegradedCooldown is how long the adapter serves from its fallback
	// store after a backend failure before re-probing.
	DegradedCooldown time.Duration `json:"degraded_cooldown" yaml:"degraded_cooldown"`

	// RedisURL is the redis connection URL (redis://[:password@]host:port/db).
	RedisURL string `json:"redis_url" yaml:"redis_url"`

	// KeyPrefix namespaces this service's keys inside a shared redis
	// database.
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`

	// NATSURL is the NATS server URL for the JetStream KV backend.
	NATSURL string `json:"nats_url" yaml:"nats_url"`

	// NATSBucket is the JetStream KV bucket name.
	NATSBucket string `json:"nats_bucket" yaml:"nats_bucket"`
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		MaxSize:          10000,
		DefaultTTL:       5 * time.Minute,
		SweepInterval:    time.Minute,
		RemoteTimeout:    2 * time.Second,
		DegradedCooldown: 15 * time.Second,
		KeyPrefix:        "merx:cache:",
		NATSBucket:       "merx-cache",
	}
}

/// ResolvedBackend returns the backend this config selects: an explicit
// Backend wins, otherwise a configured remote endpoint, otherwise memory.
func (c Config) ResolvedBackend() string {
	if c.Backend != "" {
		return c.Backend
	}
	if c.RedisURL != "" {
		return BackendRedis
	}
	if c.NATSURL != "" {
		return BackendNATS
	}
	return BackendMemory
}

// Validate checks if the configuration is valid. Misconfiguration here is
// the only error class that should prevent startup.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.MaxSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("max_size must be positive, got %d", c.MaxSize))
	}
	if c.DefaultTTL <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("default_ttl must be positive, got %v", c.DefaultTTL))
	}
	if c.SweepInterval < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("sweep_interval cannot be negative, got %v", c.SweepInterval))
	}

	switch backend := c.ResolvedBackend(); backend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "cache", "Validate",
				"redis backend requires redis_url")
		}
	case BackendNATS:
		if c.NATSURL == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "cache", "Validate",
				"nats backend requires nats_url")
		}
		if c.NATSBucket == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "cache", "Validate",
				"nats backend requires nats_bucket")
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("unknown cache backend: %s", backend))
	}

	if c.ResolvedBackend() != BackendMemory {
		if c.RemoteTimeout <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
				fmt.Sprintf("remote_timeout must be positive, got %v", c.RemoteTimeout))
		}
		if c.DegradedCooldown <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
				fmt.Sprintf("degraded_cooldown must be positive, got %v", c.DegradedCooldown))
		}
	}

	return nil
}

// New creates a cache from configuration. Returns a noop cache (always
// misses) when caching is disabled.
func New[V any](ctx context.Context, cfg Config, options ...Option[V]) (Cache[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "cache", "New", "config validation")
	}

	if !cfg.Enabled {
		return NewNoop[V](), nil
	}

	opts := applyOptions(options...)

	switch cfg.ResolvedBackend() {
	case BackendMemory:
		return newMemoryCache[V](ctx, cfg.MaxSize, cfg.DefaultTTL, cfg.SweepInterval, opts)

	case BackendRedis:
		store, err := newRedisStore(cfg.RedisURL, cfg.KeyPrefix)
		if err != nil {
			return nil, err
		}
		return newRemoteCache(ctx, store, cfg, opts)

	case BackendNATS:
		store, err := newNATSStore(cfg.NATSURL, cfg.NATSBucket, opts.logger)
		if err != nil {
			return nil, err
		}
		return newRemoteCache(ctx, store, cfg, opts)

	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "New",
			fmt.Sprintf("unsupported backend %s", cfg.ResolvedBackend()))
	}
}

// NewMemory creates a bare in-process cache with LRU eviction and per-entry
// TTL. Statistics are always enabled; use WithMetrics to also export them as
// Prometheus metrics.
func NewMemory[V any](ctx context.Context, maxSize int, defaultTTL time.Duration, options ...Option[V]) (Cache[V], error) {
	return newMemoryCache[V](ctx, maxSize, defaultTTL, 0, applyOptions(options...))
}

// NewRemote wraps a RemoteStore in the fail-open adapter with an embedded
// in-process fallback store sized by cfg.
func NewRemote[V any](ctx context.Context, store RemoteStore, cfg Config, options ...Option[V]) (Cache[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "cache", "NewRemote", "config validation")
	}
	return newRemoteCache(ctx, store, cfg, applyOptions(options...))
}

// NewNoop creates a cache that does nothing (always misses). Used when
// caching is disabled via configuration.
func NewNoop[V any]() Cache[V] {
	return &noopCache[V]{}
}

// noopCache is a cache implementation that does nothing.
type noopCache[V any] struct{}

func (c *noopCache[V]) Get(_ context.Context, _ string) (V, bool) {
	var zero V
	return zero, false
}

func (c *noopCache[V]) Set(_ context.Context, _ string, _ V, _ time.Duration) error {
	return nil
}

func (c *noopCache[V]) Delete(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (c *noopCache[V]) DeletePattern(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (c *noopCache[V]) Clear(_ context.Context) error {
	return nil
}

func (c *noopCache[V]) Keys() []string {
	return nil
}

func (c *noopCache[V]) Metrics() Snapshot {
	return Snapshot{Backend: BackendNone}
}

func (c *noopCache[V]) Backend() string {
	return BackendNone
}

func (c *noopCache[V]) Close() error {
	return nil
}
