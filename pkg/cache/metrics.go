package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/merxcommerce/merx/errors"
	"github.com/merxcommerce/merx/metric"
)

// cacheMetrics holds Prometheus metrics for cache operations. These mirror
// the always-on Recorder counters for scrape-based observability.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	sets      prometheus.Counter
	deletes   prometheus.Counter
	evictions prometheus.Counter
	fallbacks prometheus.Counter

	size    prometheus.Gauge
	latency prometheus.Histogram
}

// newCacheMetrics creates and registers cache metrics with the provided registry.
func newCacheMetrics(registry *metric.MetricsRegistry, prefix string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"component": prefix}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "merx",
			Subsystem:   "cache",
			Name:        name,
			ConstLabels: labels,
			Help:        help,
		})
	}

	m := &cacheMetrics{
		hits:      counter("hits_total", "Total number of cache hits"),
		misses:    counter("misses_total", "Total number of cache misses"),
		sets:      counter("sets_total", "Total number of cache set operations"),
		deletes:   counter("deletes_total", "Total number of cache delete operations"),
		evictions: counter("evictions_total", "Total number of cache evictions"),
		fallbacks: counter("fallbacks_total", "Total number of operations served by the fallback tier"),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "merx",
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of entries in cache",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "merx",
			Subsystem:   "cache",
			Name:        "operation_duration_seconds",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.000010, 4, 10),
			Help:        "Cache operation latency in seconds",
		}),
	}

	registrations := []struct {
		name string
		err  error
	}{
		{"cache_hits", registry.RegisterCounter(prefix, "cache_hits", m.hits)},
		{"cache_misses", registry.RegisterCounter(prefix, "cache_misses", m.misses)},
		{"cache_sets", registry.RegisterCounter(prefix, "cache_sets", m.sets)},
		{"cache_deletes", registry.RegisterCounter(prefix, "cache_deletes", m.deletes)},
		{"cache_evictions", registry.RegisterCounter(prefix, "cache_evictions", m.evictions)},
		{"cache_fallbacks", registry.RegisterCounter(prefix, "cache_fallbacks", m.fallbacks)},
		{"cache_size", registry.RegisterGauge(prefix, "cache_size", m.size)},
		{"cache_latency", registry.RegisterHistogram(prefix, "cache_latency", m.latency)},
	}
	for _, reg := range registrations {
		if reg.err != nil {
			return nil, errors.WrapTransient(reg.err, "cache", "newCacheMetrics", "metrics registration")
		}
	}

	return m, nil
}

func (m *cacheMetrics) recordHit() {
	m.hits.Inc()
}

func (m *cacheMetrics) recordMiss() {
	m.misses.Inc()
}

func (m *cacheMetrics) recordSet() {
	m.sets.Inc()
}

func (m *cacheMetrics) recordDelete() {
	m.deletes.Inc()
}

func (m *cacheMetrics) recordEviction() {
	m.evictions.Inc()
}

func (m *cacheMetrics) recordFallback() {
	m.fallbacks.Inc()
}

func (m *cacheMetrics) updateSize(size int) {
	m.size.Set(float64(size))
}

func (m *cacheMetrics) observeLatency(d time.Duration) {
	m.latency.Observe(d.Seconds())
}
