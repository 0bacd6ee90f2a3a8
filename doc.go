// Package merx is the shared infrastructure for the Merx marketplace
// platform. This repository carries the caching layer used by the platform's
// services:
//
//   - pkg/cache: generic read-through cache with in-process (LRU + TTL) and
//     distributed (redis, NATS JetStream KV) backends, fail-open degradation,
//     and always-on statistics with optional Prometheus export
//   - cachekeys: deterministic cache key construction and per-entity TTL
//     policy
//   - pkg/retry: retry with exponential backoff and jitter
//   - errors: classified errors (transient, invalid, fatal) for uniform
//     handling across services
//   - metric: Prometheus registry management and the scrape endpoint
//   - config: layered service configuration (defaults, YAML file, env)
//   - cmd/merx-cachemon: standalone cache monitor and backend smoke test
package merx
