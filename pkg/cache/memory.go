package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/merxcommerce/merx/errors"
)

// memoryEntry represents an entry in the in-process store.
type memoryEntry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
	expiresAt  time.Time
}

// expired reports whether the entry is logically absent at time now.
// An entry expires the instant now reaches expiresAt.
func (e *memoryEntry[V]) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// memoryCache is the bounded, always-available in-process store: a key-value
// map with per-entry expiry and LRU eviction. The map and the recency list
// mutate together under a single mutex, so no reader can observe one without
// the other.
type memoryCache[V any] struct {
	mu         sync.Mutex
	maxSize    int
	defaultTTL time.Duration
	items      map[string]*list.Element // key -> list element
	order      *list.List               // doubly-linked list, front = most recently used
	rec        *Recorder                // always present
	metrics    *cacheMetrics            // optional, if Prometheus export enabled
	evictFn    EvictCallback[V]         // optional callback

	// Optional background sweep coordination
	sweepInterval time.Duration
	shutdown      chan struct{}
	done          chan struct{}
	closeOnce     sync.Once
}

// newMemoryCache creates the in-process store. maxSize must be positive and
// defaultTTL must be positive; both are construction-time invariants.
// A sweepInterval > 0 starts a periodic cleanup goroutine; expiry-on-read
// keeps the cache correct without it.
func newMemoryCache[V any](
	ctx context.Context, maxSize int, defaultTTL, sweepInterval time.Duration, opts *cacheOptions[V],
) (*memoryCache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "newMemoryCache",
			fmt.Sprintf("max size must be positive, got %d", maxSize))
	}
	if defaultTTL <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "newMemoryCache",
			fmt.Sprintf("default TTL must be positive, got %v", defaultTTL))
	}

	rec, metrics, err := newRecorderAndMetrics(opts)
	if err != nil {
		return nil, err
	}

	c := &memoryCache[V]{
		maxSize:       maxSize,
		defaultTTL:    defaultTTL,
		items:         make(map[string]*list.Element),
		order:         list.New(),
		rec:           rec,
		metrics:       metrics,
		evictFn:       opts.evictCallback,
		sweepInterval: sweepInterval,
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
	}

	if sweepInterval > 0 {
		go c.sweep(ctx)
	} else {
		close(c.done)
	}

	return c, nil
}

// Get retrieves a value by key, expiring stale entries lazily and updating
// LRU order on a hit. The operation duration is always recorded.
func (c *memoryCache[V]) Get(_ context.Context, key string) (V, bool) {
	start := time.Now()

	var (
		value   V
		hit     bool
		expired *memoryEntry[V]
		size    int
	)

	c.mu.Lock()
	if element, exists := c.items[key]; exists {
		entry := element.Value.(*memoryEntry[V])
		if entry.expired(time.Now()) {
			c.removeElement(element)
			expired = entry
		} else {
			c.order.MoveToFront(element)
			value = entry.value
			hit = true
		}
	}
	size = len(c.items)
	c.mu.Unlock()

	// All bookkeeping happens after the lock is released so latency
	// sampling never serializes unrelated operations.
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
	if expired != nil {
		c.rec.Eviction()
		if c.metrics != nil {
			c.metrics.recordEviction()
			c.metrics.updateSize(size)
		}
		if c.evictFn != nil {
			c.evictFn(expired.key, expired.value)
		}
	}
	c.observe(time.Since(start))

	return value, hit
}

// Set stores a value, applying the default TTL when ttl <= 0. Inserting into
// a full cache synchronously evicts the least recently used entry first, so
// the size bound is never exceeded, even transiently.
func (c *memoryCache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	start := time.Now()
	now := start
	expiresAt := now.Add(ttl)

	var evicted *memoryEntry[V]

	c.mu.Lock()
	if element, exists := c.items[key]; exists {
		entry := element.Value.(*memoryEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(element)
	} else {
		if len(c.items) == c.maxSize {
			if back := c.order.Back(); back != nil {
				evicted = back.Value.(*memoryEntry[V])
				c.removeElement(back)
			}
		}
		element := c.order.PushFront(&memoryEntry[V]{
			key:        key,
			value:      value,
			insertedAt: now,
			expiresAt:  expiresAt,
		})
		c.items[key] = element
	}
	size := len(c.items)
	c.mu.Unlock()

	c.rec.Set()
	if c.metrics != nil {
		c.metrics.recordSet()
		c.metrics.updateSize(size)
	}
	if evicted != nil {
		c.rec.Eviction()
		if c.metrics != nil {
			c.metrics.recordEviction()
		}
		if c.evictFn != nil {
			c.evictFn(evicted.key, evicted.value)
		}
	}
	c.observe(time.Since(start))

	return nil
}

// Delete removes an entry by key. Absent keys are a no-op.
func (c *memoryCache[V]) Delete(_ context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var removed *memoryEntry[V]

	c.mu.Lock()
	if element, exists := c.items[key]; exists {
		removed = element.Value.(*memoryEntry[V])
		c.removeElement(element)
	}
	size := len(c.items)
	c.mu.Unlock()

	if removed == nil {
		return false, nil
	}

	c.rec.Delete()
	if c.metrics != nil {
		c.metrics.recordDelete()
		c.metrics.updateSize(size)
	}
	if c.evictFn != nil {
		c.evictFn(removed.key, removed.value)
	}

	return true, nil
}

// DeletePattern removes every key matching the glob pattern. It scans all
// entries; no index is maintained for pattern queries.
func (c *memoryCache[V]) DeletePattern(_ context.Context, pattern string) (int, error) {
	if err := validatePattern(pattern); err != nil {
		return 0, err
	}

	var removed []*memoryEntry[V]

	c.mu.Lock()
	for key, element := range c.items {
		if matchKey(pattern, key) {
			removed = append(removed, element.Value.(*memoryEntry[V]))
			c.removeElement(element)
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	for _, entry := range removed {
		c.rec.Delete()
		if c.metrics != nil {
			c.metrics.recordDelete()
		}
		if c.evictFn != nil {
			c.evictFn(entry.key, entry.value)
		}
	}
	if c.metrics != nil && len(removed) > 0 {
		c.metrics.updateSize(size)
	}

	return len(removed), nil
}

// Clear removes all entries and resets the recency structure. Cumulative
// hit/miss counters are untouched.
func (c *memoryCache[V]) Clear(_ context.Context) error {
	var cleared []*memoryEntry[V]

	c.mu.Lock()
	if c.evictFn != nil {
		cleared = make([]*memoryEntry[V], 0, len(c.items))
		for element := c.order.Back(); element != nil; element = element.Prev() {
			cleared = append(cleared, element.Value.(*memoryEntry[V]))
		}
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.updateSize(0)
	}
	for _, entry := range cleared {
		c.evictFn(entry.key, entry.value)
	}

	return nil
}

// Keys returns all unexpired keys, most recently used first.
func (c *memoryCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	now := time.Now()
	for element := c.order.Front(); element != nil; element = element.Next() {
		entry := element.Value.(*memoryEntry[V])
		if !entry.expired(now) {
			keys = append(keys, entry.key)
		}
	}
	return keys
}

// Metrics returns a snapshot of the store's observability data.
func (c *memoryCache[V]) Metrics() Snapshot {
	snap := c.rec.snapshot()

	c.mu.Lock()
	snap.CurrentSize = len(c.items)
	c.mu.Unlock()

	snap.MaxSize = c.maxSize
	snap.Backend = BackendMemory
	return snap
}

// Backend returns "memory".
func (c *memoryCache[V]) Backend() string {
	return BackendMemory
}

// Close stops the background sweep goroutine, if any.
func (c *memoryCache[V]) Close() error {
	c.closeOnce.Do(func() {
		close(c.shutdown)
	})

	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for sweep goroutine to finish")
	}
}

// observe records an operation duration into the recorder and, if enabled,
// the Prometheus histogram.
func (c *memoryCache[V]) observe(d time.Duration) {
	c.rec.Observe(d)
	if c.metrics != nil {
		c.metrics.observeLatency(d)
	}
}

// removeElement removes an element from both the list and map.
// Must be called with the mutex held.
func (c *memoryCache[V]) removeElement(element *list.Element) {
	entry := element.Value.(*memoryEntry[V])
	delete(c.items, entry.key)
	c.order.Remove(element)
}

// sweep runs in a background goroutine and periodically removes expired
// entries. This is purely a memory-reclamation optimization; lazy expiry on
// read keeps the cache correct without it.
func (c *memoryCache[V]) sweep(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired removes all expired entries from the cache.
func (c *memoryCache[V]) removeExpired() {
	now := time.Now()
	var expired []*memoryEntry[V]

	c.mu.Lock()
	for element := c.order.Front(); element != nil; {
		next := element.Next()
		entry := element.Value.(*memoryEntry[V])
		if entry.expired(now) {
			expired = append(expired, entry)
			c.removeElement(element)
		}
		element = next
	}
	size := len(c.items)
	c.mu.Unlock()

	for _, entry := range expired {
		c.rec.Eviction()
		if c.metrics != nil {
			c.metrics.recordEviction()
		}
		if c.evictFn != nil {
			c.evictFn(entry.key, entry.value)
		}
	}
	if c.metrics != nil && len(expired) > 0 {
		c.metrics.updateSize(size)
	}
}
