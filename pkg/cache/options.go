package cache

import (
	"log/slog"

	"github.com/merxcommerce/merx/metric"
)

// Option configures cache behavior using the functional options pattern.
type Option[V any] func(*cacheOptions[V])

// cacheOptions holds internal configuration for cache instances.
// Statistics are always collected; Prometheus export is opt-in.
type cacheOptions[V any] struct {
	// metricsReg is optional - if provided, cache stats are also exposed
	// as Prometheus metrics
	metricsReg *metric.MetricsRegistry

	// metricsPrefix is used as the component label for Prometheus metrics
	metricsPrefix string

	// evictCallback is called when items leave the cache
	evictCallback EvictCallback[V]

	// logger defaults to slog.Default()
	logger *slog.Logger

	// latencyWindow bounds the rolling latency sample
	latencyWindow int
}

// WithMetrics enables Prometheus metrics export for cache statistics.
// If registry is nil or prefix is empty, this option is ignored.
func WithMetrics[V any](registry *metric.MetricsRegistry, prefix string) Option[V] {
	return func(opts *cacheOptions[V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithEvictionCallback sets a callback invoked whenever an entry leaves the
// cache. The callback receives the key and value of the departed entry.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.evictCallback = callback
	}
}

// WithLogger sets the structured logger used for operational events such as
// backend degradation. Defaults to slog.Default().
func WithLogger[V any](logger *slog.Logger) Option[V] {
	return func(opts *cacheOptions[V]) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// WithLatencyWindow sets how many recent operation durations are retained
// for the average-latency metric. If n <= 0, this option is ignored.
func WithLatencyWindow[V any](n int) Option[V] {
	return func(opts *cacheOptions[V]) {
		if n > 0 {
			opts.latencyWindow = n
		}
	}
}

// applyOptions applies functional options to create final cache configuration.
func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{
		logger: slog.Default(),
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}

// newRecorderAndMetrics builds the always-on recorder and, when requested,
// the Prometheus exporter for a cache instance.
func newRecorderAndMetrics[V any](opts *cacheOptions[V]) (*Recorder, *cacheMetrics, error) {
	rec := NewRecorder(opts.latencyWindow)

	var metrics *cacheMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, nil, err
		}
	}

	return rec, metrics, nil
}
