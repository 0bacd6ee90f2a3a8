package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyEncodingRoundTrip(t *testing.T) {
	for _, key := range []string{
		"product:p-1",
		"pricing:p-1:USD",
		"plain",
	} {
		assert.Equal(t, key, decodeKey(encodeKey(key)))
		assert.NotContains(t, encodeKey(key), ":")
	}
}

func TestNATSEnvelopeExpiry(t *testing.T) {
	now := time.Now()

	live := natsEnvelope{ExpiresAt: now.Add(time.Minute).UnixNano()}
	assert.False(t, live.expired(now))

	boundary := natsEnvelope{ExpiresAt: now.UnixNano()}
	assert.True(t, boundary.expired(now))
}

func TestNewNATSUnreachableServesFromFallback(t *testing.T) {
	ctx := context.Background()

	cfg := DefaultConfig()
	// Nothing listens on port 1; construction must still succeed and the
	// adapter must serve from its embedded store.
	cfg.NATSURL = "nats://127.0.0.1:1"
	cfg.RemoteTimeout = 100 * time.Millisecond
	cfg.DegradedCooldown = 50 * time.Millisecond
	cfg.SweepInterval = 0

	c, err := New[string](ctx, cfg)
	require.NoError(t, err, "an unreachable backend must not fail construction")
	defer c.Close()

	assert.Equal(t, BackendNATS+DegradedSuffix, c.Backend())

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	value, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", value)

	existed, err := c.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, existed)
}
