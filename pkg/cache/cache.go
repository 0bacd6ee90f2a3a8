package cache

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/merxcommerce/merx/errors"
)

// Backend identifiers reported by cache implementations.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNATS   = "nats"
	BackendNone   = "none"

	// DegradedSuffix is appended to a remote backend identifier while the
	// adapter is serving from its embedded fallback store.
	DegradedSuffix = ":degraded"
)

// Cache is the contract every cache tier satisfies. The cache is
// parameterized by value type V for type safety.
//
// Data-plane operations never fail for capacity, staleness, or backend
// availability reasons; the only errors returned are caller programming
// errors (empty key, malformed pattern, unserializable value).
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true on a hit,
	// zero value and false on a miss. Expired entries count as misses.
	Get(ctx context.Context, key string) (V, bool)

	// Set stores a value with the given key. A ttl <= 0 applies the
	// configured default TTL. Setting an existing key replaces its value,
	// resets its expiry, and marks it most recently used.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Delete removes an entry by key. Returns true if the key existed.
	// Deleting an absent key is a no-op, not an error.
	Delete(ctx context.Context, key string) (bool, error)

	// DeletePattern removes every key matching a glob pattern, where '*'
	// matches any run of characters. Returns the number of keys removed.
	// This is a deliberate slow path: it scans all keys.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Clear removes all entries. Cumulative hit/miss metrics survive a
	// clear; they are lifetime-of-process, not lifetime-of-data.
	Clear(ctx context.Context) error

	// Keys returns all live keys, most recently used first.
	Keys() []string

	// Metrics returns a point-in-time snapshot of cache observability data.
	Metrics() Snapshot

	// Backend returns the stable identifier of the serving tier.
	Backend() string

	// Close releases any resources (background goroutines, connections).
	Close() error
}

// EvictCallback is called when an entry leaves the cache, whether by LRU
// eviction, expiry, explicit delete, or clear. It runs outside the cache
// lock and must not call back into the cache synchronously.
type EvictCallback[V any] func(key string, value V)

// Snapshot is a point-in-time view of a cache's observability data.
type Snapshot struct {
	Hits           int64         `json:"hits"`
	Misses         int64         `json:"misses"`
	Sets           int64         `json:"sets"`
	Deletes        int64         `json:"deletes"`
	Evictions      int64         `json:"evictions"`
	HitRate        float64       `json:"hit_rate"`
	MissRate       float64       `json:"miss_rate"`
	TotalRequests  int64         `json:"total_requests"`
	AverageLatency time.Duration `json:"average_latency"`
	CurrentSize    int           `json:"current_size"`
	MaxSize        int           `json:"max_size"`
	Backend        string        `json:"backend"`
}

// validateKey validates a cache key for basic requirements.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidKey, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}

// validatePattern rejects malformed glob syntax up front so a bad pattern
// fails fast instead of silently matching nothing.
func validatePattern(pattern string) error {
	if pattern == "" {
		return errors.WrapInvalid(errors.ErrBadPattern, "cache", "validatePattern", "pattern cannot be empty")
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return errors.WrapInvalid(errors.ErrBadPattern, "cache", "validatePattern", pattern)
	}
	return nil
}

// matchKey reports whether key matches a previously validated pattern.
// Unlike path.Match, '*' matches any run of characters including '/', since
// cache keys are flat strings, not paths. Both strings are mapped onto a
// slash-free alphabet before matching so path.Match never treats '/' as a
// separator; NUL cannot otherwise appear in a key or pattern.
func matchKey(pattern, key string) bool {
	ok, err := path.Match(unslash(pattern), unslash(key))
	return err == nil && ok
}

func unslash(s string) string {
	return strings.ReplaceAll(s, "/", "\x00")
}
