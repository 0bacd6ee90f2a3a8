package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/merxcommerce/merx/errors"
	"github.com/merxcommerce/merx/pkg/retry"
)

// RemoteStore is the low-level contract a distributed backend driver
// implements. Values cross the wire as serialized bytes; TTLs arrive
// already resolved (always positive). Drivers return errors freely — the
// adapter above them owns degradation policy.
type RemoteStore interface {
	// Name returns the stable backend identifier, e.g. "redis".
	Name() string

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
	Size(ctx context.Context) (int, error)
	Close() error
}

// remoteCache adapts a RemoteStore to the Cache contract with fail-open
// degradation: any backend failure routes the operation to an embedded
// in-process store, so callers never see backend availability as an error —
// only as a change in latency and in the backend metrics field.
//
// Hit/miss metrics are tracked at this layer against the logical cache,
// irrespective of which physical tier served them.
type remoteCache[V any] struct {
	store    RemoteStore
	fallback *memoryCache[V]

	timeout  time.Duration
	cooldown time.Duration

	// degradedUntil is a unix-nano timestamp: zero means healthy, a future
	// time means the adapter is in cooldown, and math.MaxInt64 means
	// connectivity has never been proven.
	degradedUntil atomic.Int64

	rec        *Recorder
	metrics    *cacheMetrics
	logger     *slog.Logger
	logLimiter *rate.Limiter

	maxSize    int
	defaultTTL time.Duration

	shutdown  chan struct{}
	closeOnce sync.Once
}

// newRemoteCache builds the adapter. Construction never blocks on the
// backend: connectivity is probed asynchronously, and until proven available
// all traffic goes to the embedded fallback store.
func newRemoteCache[V any](
	ctx context.Context, store RemoteStore, cfg Config, opts *cacheOptions[V],
) (*remoteCache[V], error) {
	if store == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "newRemoteCache",
			"remote store cannot be nil")
	}

	// The fallback store keeps its own internal recorder but never exports
	// Prometheus metrics; the adapter's logical metrics are the observable
	// truth for this cache.
	fallbackOpts := &cacheOptions[V]{
		evictCallback: opts.evictCallback,
		logger:        opts.logger,
		latencyWindow: opts.latencyWindow,
	}
	fallback, err := newMemoryCache(ctx, cfg.MaxSize, cfg.DefaultTTL, cfg.SweepInterval, fallbackOpts)
	if err != nil {
		return nil, err
	}

	rec, metrics, err := newRecorderAndMetrics(opts)
	if err != nil {
		return nil, err
	}

	c := &remoteCache[V]{
		store:      store,
		fallback:   fallback,
		timeout:    cfg.RemoteTimeout,
		cooldown:   cfg.DegradedCooldown,
		rec:        rec,
		metrics:    metrics,
		logger:     opts.logger,
		logLimiter: rate.NewLimiter(rate.Every(10*time.Second), 1),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
		shutdown:   make(chan struct{}),
	}
	c.degradedUntil.Store(math.MaxInt64)

	go c.probe(ctx)

	return c, nil
}

// probe establishes initial backend connectivity in the background. Until it
// succeeds the adapter serves everything from the fallback store.
func (c *remoteCache[V]) probe(ctx context.Context) {
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.shutdown:
			cancel()
		case <-probeCtx.Done():
		}
	}()

	err := retry.Do(probeCtx, retry.Persistent(), func() error {
		pingCtx, pingCancel := context.WithTimeout(probeCtx, c.timeout)
		defer pingCancel()
		return c.store.Ping(pingCtx)
	})
	if err != nil {
		c.logger.Warn("Remote cache backend unreachable, serving from in-process fallback",
			"backend", c.store.Name(), "error", err)
		// Leave the adapter degraded with a normal cooldown so regular
		// operations keep re-probing the backend.
		c.markDegraded(err, "probe")
		return
	}

	c.degradedUntil.Store(0)
	c.logger.Info("Remote cache backend available", "backend", c.store.Name())
}

// healthy reports whether the remote tier should be attempted.
func (c *remoteCache[V]) healthy() bool {
	return time.Now().UnixNano() >= c.degradedUntil.Load()
}

// markDegraded places the adapter in cooldown. The first operation after
// the cooldown elapses retries the remote tier, so recovery needs no
// dedicated goroutine and failure never busy-loops.
func (c *remoteCache[V]) markDegraded(err error, op string) {
	c.degradedUntil.Store(time.Now().Add(c.cooldown).UnixNano())
	if c.logLimiter.Allow() {
		c.logger.Warn("Remote cache degraded, falling back to in-process store",
			"backend", c.store.Name(), "operation", op, "cooldown", c.cooldown, "error", err)
	}
}

// remoteCtx bounds a remote call so a slow backend degrades promptly
// instead of stalling callers.
func (c *remoteCache[V]) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// Get retrieves a value, preferring the remote tier while healthy.
func (c *remoteCache[V]) Get(ctx context.Context, key string) (V, bool) {
	start := time.Now()
	value, hit := c.get(ctx, key)

	if hit {
		c.rec.Hit()
		if c.metrics != nil {
			c.metrics.recordHit()
		}
	} else {
		c.rec.Miss()
		if c.metrics != nil {
			c.metrics.recordMiss()
		}
	}
	c.observe(time.Since(start))

	return value, hit
}

func (c *remoteCache[V]) get(ctx context.Context, key string) (V, bool) {
	var zero V

	if c.healthy() {
		rctx, cancel := c.remoteCtx(ctx)
		data, found, err := c.store.Get(rctx, key)
		cancel()
		if err == nil {
			if !found {
				return zero, false
			}
			var value V
			if jsonErr := json.Unmarshal(data, &value); jsonErr != nil {
				// A payload this process cannot decode is useless to every
				// caller; drop it and treat as a miss.
				c.logger.Warn("Dropping undecodable remote cache entry",
					"backend", c.store.Name(), "key", key, "error", jsonErr)
				c.deleteRemote(ctx, key)
				return zero, false
			}
			return value, true
		}
		c.markDegraded(err, "get")
	}

	c.recordFallback()
	return c.fallback.Get(ctx, key)
}

// Set stores a value on the serving tier. An unserializable value is a
// caller programming error; backend failure is not an error at all.
func (c *remoteCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	start := time.Now()
	defer func() {
		c.rec.Set()
		if c.metrics != nil {
			c.metrics.recordSet()
		}
		c.observe(time.Since(start))
	}()

	data, err := json.Marshal(value)
	if err != nil {
		return errors.WrapInvalid(errors.ErrEncodingFailed, "cache", "Set", key)
	}

	if c.healthy() {
		rctx, cancel := c.remoteCtx(ctx)
		err := c.store.Set(rctx, key, data, ttl)
		cancel()
		if err == nil {
			return nil
		}
		c.markDegraded(err, "set")
	}

	c.recordFallback()
	return c.fallback.Set(ctx, key, value, ttl)
}

// Delete removes a key from both tiers: the fallback store may hold values
// written during a degraded window, and leaving them behind would resurrect
// stale data on the next degradation.
func (c *remoteCache[V]) Delete(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var existed bool
	if c.healthy() {
		rctx, cancel := c.remoteCtx(ctx)
		deleted, err := c.store.Delete(rctx, key)
		cancel()
		if err != nil {
			c.markDegraded(err, "delete")
		} else {
			existed = deleted
		}
	}

	fallbackDeleted, _ := c.fallback.Delete(ctx, key)
	existed = existed || fallbackDeleted

	if existed {
		c.rec.Delete()
		if c.metrics != nil {
			c.metrics.recordDelete()
		}
	}
	return existed, nil
}

// DeletePattern removes matching keys from both tiers. The returned count is
// the larger tier's removal count; the same logical key may live in both.
func (c *remoteCache[V]) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if err := validatePattern(pattern); err != nil {
		return 0, err
	}

	var remoteCount int
	if c.healthy() {
		rctx, cancel := c.remoteCtx(ctx)
		n, err := c.store.DeletePattern(rctx, pattern)
		cancel()
		if err != nil {
			c.markDegraded(err, "deletePattern")
		} else {
			remoteCount = n
		}
	}

	fallbackCount, _ := c.fallback.DeletePattern(ctx, pattern)

	count := max(remoteCount, fallbackCount)
	for i := 0; i < count; i++ {
		c.rec.Delete()
		if c.metrics != nil {
			c.metrics.recordDelete()
		}
	}
	return count, nil
}

// Clear empties both tiers. Metrics survive, as everywhere.
func (c *remoteCache[V]) Clear(ctx context.Context) error {
	if c.healthy() {
		rctx, cancel := c.remoteCtx(ctx)
		err := c.store.Clear(rctx)
		cancel()
		if err != nil {
			c.markDegraded(err, "clear")
		}
	}
	return c.fallback.Clear(ctx)
}

// Keys lists keys from the serving tier.
func (c *remoteCache[V]) Keys() []string {
	if c.healthy() {
		rctx, cancel := c.remoteCtx(context.Background())
		keys, err := c.store.Keys(rctx)
		cancel()
		if err == nil {
			return keys
		}
		c.markDegraded(err, "keys")
	}
	return c.fallback.Keys()
}

// Metrics returns the adapter's logical snapshot. CurrentSize reflects the
// serving tier; Backend carries the degraded marker so a snapshot records
// which mode actually served it.
func (c *remoteCache[V]) Metrics() Snapshot {
	snap := c.rec.snapshot()
	snap.MaxSize = c.maxSize
	snap.Backend = c.Backend()

	if c.healthy() {
		rctx, cancel := c.remoteCtx(context.Background())
		size, err := c.store.Size(rctx)
		cancel()
		if err == nil {
			snap.CurrentSize = size
			return snap
		}
		c.markDegraded(err, "metrics")
		snap.Backend = c.Backend()
	}

	snap.CurrentSize = c.fallback.Metrics().CurrentSize
	return snap
}

// Backend returns the remote identifier while healthy and marks degraded
// mode explicitly, e.g. "redis:degraded".
func (c *remoteCache[V]) Backend() string {
	if c.healthy() {
		return c.store.Name()
	}
	return c.store.Name() + DegradedSuffix
}

// Close stops the connectivity probe, the fallback store, and the driver.
func (c *remoteCache[V]) Close() error {
	c.closeOnce.Do(func() {
		close(c.shutdown)
	})

	fallbackErr := c.fallback.Close()
	if err := c.store.Close(); err != nil {
		return errors.WrapTransient(err, "cache", "Close", "remote store shutdown")
	}
	return fallbackErr
}

// deleteRemote best-effort removes a key from the remote tier only.
func (c *remoteCache[V]) deleteRemote(ctx context.Context, key string) {
	rctx, cancel := c.remoteCtx(ctx)
	defer cancel()
	if _, err := c.store.Delete(rctx, key); err != nil {
		c.markDegraded(err, "delete")
	}
}

func (c *remoteCache[V]) recordFallback() {
	if c.metrics != nil {
		c.metrics.recordFallback()
	}
}

func (c *remoteCache[V]) observe(d time.Duration) {
	c.rec.Observe(d)
	if c.metrics != nil {
		c.metrics.observeLatency(d)
	}
}
