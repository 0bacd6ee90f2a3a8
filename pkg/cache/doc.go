// Package cache provides the read-through caching layer for the Merx
// platform: a thread-safe in-process store with LRU eviction and per-entry
// TTLs, plus a fail-open adapter for distributed backends (redis, NATS
// JetStream KV) that transparently falls back to the in-process store when
// the backend is unavailable.
//
// # Overview
//
// Every cache satisfies the same generic Cache[V] contract regardless of
// backend, so call sites never branch on deployment topology:
//   - memory: bounded in-process store, LRU eviction, lazy TTL expiry
//   - redis / nats: distributed tier with an embedded in-process fallback
//   - none: disabled cache that always misses
//
// All implementations track always-on statistics (hits, misses, sets,
// deletes, evictions, latency) and can additionally export Prometheus
// metrics via WithMetrics.
//
// # Quick Start
//
// In-process cache:
//
//	c, err := cache.NewMemory[*Product](ctx, 10000, 5*time.Minute)
//	if err != nil {
//		log.Fatal(err)
//	}
//	_ = c.Set(ctx, cachekeys.Product("p-123"), product, cachekeys.TTLProduct)
//	product, ok := c.Get(ctx, cachekeys.Product("p-123"))
//
// Configuration-driven construction with a memoized provider:
//
//	provider := cache.NewProvider[*Product](cfg,
//		cache.WithMetrics[*Product](registry, "products"),
//	)
//	c, err := provider.Instance(ctx)
//
// # Fail-Open Degradation
//
// Backend failures are never surfaced to callers. When a remote operation
// fails, the adapter enters a cooldown window during which all traffic is
// served from the embedded in-process store; the first operation after the
// cooldown retries the backend. Backend() reports the serving tier, with a
// ":degraded" suffix while in fallback mode.
//
// # Invalidation
//
// Delete is idempotent and reports whether the key existed. DeletePattern
// accepts '*' globs ("product:*") and fails fast on malformed patterns.
// Clear empties the store but preserves accumulated statistics.
package cache
