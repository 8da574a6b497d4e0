package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, rate float64, burst int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLimiter(client, rate, burst), mr
}

func TestAllow(t *testing.T) {
	ctx := context.Background()
	limiter, mr := newTestLimiter(t, 1, 2)
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	mr.SetTime(base)
	key := UserKey("42")

	// the burst is spent one token at a time
	result, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.Remaining)

	result, err = limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)

	result, err = limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Second, result.RetryAfter)

	// tokens refill with time, capped at the burst
	mr.SetTime(base.Add(10 * time.Second))
	result, err = limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.Remaining)

	t.Run("buckets are independent", func(t *testing.T) {
		result, err := limiter.Allow(ctx, UserKey("other"))
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := limiter.Allow(ctx, "")
		assert.Error(t, err)
	})
}

func TestNilLimiter(t *testing.T) {
	var limiter *Limiter

	result, err := limiter.Allow(context.Background(), UserKey("42"))
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	assert.Nil(t, NewLimiter(nil, 1, 1))
}
