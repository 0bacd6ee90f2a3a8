package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	merrors "github.com/merxcommerce/merx/errors"
)

func TestDefaultConfigValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigBackendResolution(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit wins", Config{Backend: BackendMemory, RedisURL: "redis://x"}, BackendMemory},
		{"redis url", Config{RedisURL: "redis://x"}, BackendRedis},
		{"nats url", Config{NATSURL: "nats://x"}, BackendNATS},
		{"redis before nats", Config{RedisURL: "redis://x", NATSURL: "nats://x"}, BackendRedis},
		{"memory default", Config{}, BackendMemory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.ResolvedBackend())
		})
	}
}

func TestConfigValidate(t *testing.T) {
	base := DefaultConfig()

	t.Run("disabled skips validation", func(t *testing.T) {
		cfg := Config{Enabled: false}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("non-positive max size", func(t *testing.T) {
		cfg := base
		cfg.MaxSize = 0
		assert.ErrorIs(t, cfg.Validate(), merrors.ErrInvalidConfig)
	})

	t.Run("non-positive default ttl", func(t *testing.T) {
		cfg := base
		cfg.DefaultTTL = 0
		assert.ErrorIs(t, cfg.Validate(), merrors.ErrInvalidConfig)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := base
		cfg.Backend = "memcached"
		assert.ErrorIs(t, cfg.Validate(), merrors.ErrInvalidConfig)
	})

	t.Run("redis without url", func(t *testing.T) {
		cfg := base
		cfg.Backend = BackendRedis
		assert.ErrorIs(t, cfg.Validate(), merrors.ErrMissingConfig)
	})

	t.Run("nats without bucket", func(t *testing.T) {
		cfg := base
		cfg.Backend = BackendNATS
		cfg.NATSURL = "nats://localhost:4222"
		cfg.NATSBucket = ""
		assert.ErrorIs(t, cfg.Validate(), merrors.ErrMissingConfig)
	})

	t.Run("remote needs positive timeout", func(t *testing.T) {
		cfg := base
		cfg.RedisURL = "redis://localhost:6379"
		cfg.RemoteTimeout = 0
		assert.ErrorIs(t, cfg.Validate(), merrors.ErrInvalidConfig)
	})
}

func TestNewDisabledReturnsNoop(t *testing.T) {
	ctx := context.Background()

	c, err := New[string](ctx, Config{Enabled: false})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, BackendNone, c.Backend())

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok, "disabled cache always misses")

	existed, err := c.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, existed)

	n, err := c.DeletePattern(ctx, "*")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Empty(t, c.Keys())
	assert.Equal(t, BackendNone, c.Metrics().Backend)
}

func TestNewMemoryBackend(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()

	c, err := New[string](ctx, cfg)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, BackendMemory, c.Backend())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = -1

	_, err := New[string](context.Background(), cfg)
	assert.ErrorIs(t, err, merrors.ErrInvalidConfig)
}
