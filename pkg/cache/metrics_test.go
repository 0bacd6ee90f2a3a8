package cache

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merxcommerce/merx/metric"
)

func gatherValue(t *testing.T, registry *metric.MetricsRegistry, name, component string) float64 {
	t.Helper()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "component" && label.GetValue() == component {
					switch family.GetType() {
					case dto.MetricType_COUNTER:
						return m.GetCounter().GetValue()
					case dto.MetricType_GAUGE:
						return m.GetGauge().GetValue()
					}
				}
			}
		}
	}
	t.Fatalf("metric %s{component=%q} not found", name, component)
	return 0
}

func TestMemoryPrometheusExport(t *testing.T) {
	ctx := context.Background()
	registry := metric.NewMetricsRegistry()

	c, err := NewMemory[string](ctx, 2, time.Minute,
		WithMetrics[string](registry, "products"))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	require.NoError(t, c.Set(ctx, "c", "3", 0)) // evicts LRU
	c.Get(ctx, "c")
	c.Get(ctx, "missing")
	_, err = c.Delete(ctx, "c")
	require.NoError(t, err)

	assert.Equal(t, 1.0, gatherValue(t, registry, "merx_cache_hits_total", "products"))
	assert.Equal(t, 1.0, gatherValue(t, registry, "merx_cache_misses_total", "products"))
	assert.Equal(t, 3.0, gatherValue(t, registry, "merx_cache_sets_total", "products"))
	assert.Equal(t, 1.0, gatherValue(t, registry, "merx_cache_deletes_total", "products"))
	assert.Equal(t, 1.0, gatherValue(t, registry, "merx_cache_evictions_total", "products"))
	assert.Equal(t, 1.0, gatherValue(t, registry, "merx_cache_size", "products"))
}

func TestRemoteFallbackCounterExported(t *testing.T) {
	ctx := context.Background()
	registry := metric.NewMetricsRegistry()

	store := newFakeStore()
	store.failing.Store(true)

	c, err := NewRemote[string](ctx, store, remoteTestConfig(),
		WithMetrics[string](registry, "pricing"))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	c.Get(ctx, "k")

	assert.GreaterOrEqual(t,
		gatherValue(t, registry, "merx_cache_fallbacks_total", "pricing"), 2.0)
	assert.Equal(t, 1.0, gatherValue(t, registry, "merx_cache_hits_total", "pricing"))
}

func TestDuplicateComponentRegistrationRejected(t *testing.T) {
	ctx := context.Background()
	registry := metric.NewMetricsRegistry()

	first, err := NewMemory[string](ctx, 10, time.Minute,
		WithMetrics[string](registry, "shared"))
	require.NoError(t, err)
	defer first.Close()

	_, err = NewMemory[string](ctx, 10, time.Minute,
		WithMetrics[string](registry, "shared"))
	assert.Error(t, err, "two caches must not share one component label")
}
