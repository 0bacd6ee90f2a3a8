package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	merrors "github.com/merxcommerce/merx/errors"
)

// fakeStore is an in-memory RemoteStore with a switchable failure mode.
type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte

	failing atomic.Bool
	ops     atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) fail() error {
	s.ops.Add(1)
	if s.failing.Load() {
		return merrors.ErrBackendUnavailable
	}
	return nil
}

func (s *fakeStore) Name() string { return "fake" }

func (s *fakeStore) Ping(_ context.Context) error { return s.fail() }

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := s.fail(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[key]
	return data, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if err := s.fail(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *fakeStore) Delete(_ context.Context, key string) (bool, error) {
	if err := s.fail(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok, nil
}

func (s *fakeStore) DeletePattern(_ context.Context, pattern string) (int, error) {
	if err := s.fail(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.data {
		if matchKey(pattern, key) {
			delete(s.data, key)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Clear(_ context.Context) error {
	if err := s.fail(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]byte)
	return nil
}

func (s *fakeStore) Keys(_ context.Context) ([]string, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *fakeStore) Size(_ context.Context) (int, error) {
	if err := s.fail(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data), nil
}

func (s *fakeStore) Close() error { return nil }

func remoteTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = BackendRedis // any remote backend, store is injected directly
	cfg.RedisURL = "redis://unused:6379"
	cfg.MaxSize = 100
	cfg.DefaultTTL = time.Minute
	cfg.SweepInterval = 0
	cfg.RemoteTimeout = 100 * time.Millisecond
	cfg.DegradedCooldown = 50 * time.Millisecond
	return cfg
}

func newTestRemote(t *testing.T, store *fakeStore) Cache[string] {
	t.Helper()
	c, err := NewRemote[string](context.Background(), store, remoteTestConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitHealthy(t *testing.T, c Cache[string]) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Backend() == "fake"
	}, 2*time.Second, 5*time.Millisecond, "probe should mark the backend healthy")
}

func TestRemoteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := newTestRemote(t, store)
	waitHealthy(t, c)

	require.NoError(t, c.Set(ctx, "product:p-1", "widget", 0))

	value, ok := c.Get(ctx, "product:p-1")
	assert.True(t, ok)
	assert.Equal(t, "widget", value)

	// The value went through the remote tier, not the fallback.
	store.mu.Lock()
	_, onRemote := store.data["product:p-1"]
	store.mu.Unlock()
	assert.True(t, onRemote)
}

func TestRemoteFailOpenTransparency(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.failing.Store(true)
	c := newTestRemote(t, store)

	// Backend down from the start: every operation must still succeed.
	require.NoError(t, c.Set(ctx, "k", "v", 0))

	value, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", value)

	existed, err := c.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, existed)

	assert.Equal(t, "fake"+DegradedSuffix, c.Backend())
}

func TestRemoteDegradesOnFailureThenRecovers(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := newTestRemote(t, store)
	waitHealthy(t, c)

	require.NoError(t, c.Set(ctx, "k", "v", 0))

	store.failing.Store(true)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok, "remote value is unreachable and the fallback never saw the key")
	assert.Equal(t, "fake"+DegradedSuffix, c.Backend())

	// During cooldown the remote tier is not retried.
	before := store.ops.Load()
	c.Get(ctx, "k")
	c.Get(ctx, "k")
	assert.Equal(t, before, store.ops.Load())

	store.failing.Store(false)
	assert.Eventually(t, func() bool {
		value, ok := c.Get(ctx, "k")
		return ok && value == "v"
	}, 2*time.Second, 20*time.Millisecond, "first operation after cooldown should restore the remote tier")
	assert.Equal(t, "fake", c.Backend())
}

func TestRemoteWritesDuringDegradationLandInFallback(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.failing.Store(true)
	c := newTestRemote(t, store)

	require.NoError(t, c.Set(ctx, "k", "fallback-value", 0))

	store.mu.Lock()
	remoteLen := len(store.data)
	store.mu.Unlock()
	assert.Zero(t, remoteLen)

	value, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "fallback-value", value)
}

func TestRemoteDeleteCoversBothTiers(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := newTestRemote(t, store)

	// Write while degraded so the value lands in the fallback store.
	store.failing.Store(true)
	require.NoError(t, c.Set(ctx, "k", "stale", 0))

	store.failing.Store(false)
	waitHealthy(t, c)
	require.NoError(t, c.Set(ctx, "k", "fresh", 0))

	existed, err := c.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, existed)

	// Degrade again: the fallback copy must not resurrect.
	store.failing.Store(true)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRemoteDeletePatternCoversBothTiers(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := newTestRemote(t, store)

	store.failing.Store(true)
	require.NoError(t, c.Set(ctx, "product:p-1", "a", 0))

	store.failing.Store(false)
	waitHealthy(t, c)
	require.NoError(t, c.Set(ctx, "product:p-2", "b", 0))
	require.NoError(t, c.Set(ctx, "order:o-1", "c", 0))

	n, err := c.DeletePattern(ctx, "product:*")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "count reflects the larger tier")

	store.failing.Store(true)
	_, ok := c.Get(ctx, "product:p-1")
	assert.False(t, ok)
}

func TestRemoteDeletePatternMalformedFailsFast(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := newTestRemote(t, store)

	before := store.ops.Load()
	_, err := c.DeletePattern(ctx, "product:[")
	assert.ErrorIs(t, err, merrors.ErrBadPattern)
	assert.Equal(t, before, store.ops.Load(), "malformed pattern must not reach the backend")
}

func TestRemoteLogicalMetrics(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := newTestRemote(t, store)
	waitHealthy(t, c)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	c.Get(ctx, "k")

	// Hits and misses keep accumulating across a tier switch.
	store.failing.Store(true)
	c.Get(ctx, "k")

	snap := c.Metrics()
	assert.Equal(t, int64(1), snap.Hits)
	assert.Equal(t, int64(1), snap.Misses)
	assert.Equal(t, int64(1), snap.Sets)
	assert.Equal(t, "fake"+DegradedSuffix, snap.Backend)
}

func TestRemoteClearPreservesMetrics(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := newTestRemote(t, store)
	waitHealthy(t, c)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	c.Get(ctx, "k")

	require.NoError(t, c.Clear(ctx))

	snap := c.Metrics()
	assert.Equal(t, 0, snap.CurrentSize)
	assert.Equal(t, int64(1), snap.Hits)
	assert.Equal(t, int64(1), snap.Sets)
}

func TestRemoteUndecodableEntryReadsAsMiss(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := newTestRemote(t, store)
	waitHealthy(t, c)

	store.mu.Lock()
	store.data["corrupt"] = []byte("{not json")
	store.mu.Unlock()

	_, ok := c.Get(ctx, "corrupt")
	assert.False(t, ok)

	// The poisoned entry is dropped so it cannot keep missing forever.
	store.mu.Lock()
	_, still := store.data["corrupt"]
	store.mu.Unlock()
	assert.False(t, still)
}

func TestRemoteNilStoreRejected(t *testing.T) {
	_, err := NewRemote[string](context.Background(), nil, remoteTestConfig())
	assert.ErrorIs(t, err, merrors.ErrInvalidConfig)
}

func TestRemoteStructValues(t *testing.T) {
	type product struct {
		ID    string `json:"id"`
		Price int64  `json:"price"`
	}

	ctx := context.Background()
	store := newFakeStore()
	c, err := NewRemote[product](ctx, store, remoteTestConfig())
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool { return c.Backend() == "fake" },
		2*time.Second, 5*time.Millisecond)

	want := product{ID: "p-1", Price: 1999}
	require.NoError(t, c.Set(ctx, "product:p-1", want, 0))

	got, ok := c.Get(ctx, "product:p-1")
	assert.True(t, ok)
	assert.Equal(t, want, got)
}
