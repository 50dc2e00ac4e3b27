package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to the Redis named by MEDIAUPLOAD_TEST_REDIS_ADDR.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("MEDIAUPLOAD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MEDIAUPLOAD_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	client := newTestClient(t)
	limiter := NewRateLimiter(client)
	ctx := context.Background()
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, rateLimitKeyPrefix+key) })

	base := time.Now()
	limiter.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
		base = base.Add(time.Millisecond)
	}

	ok, err := limiter.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := limiter.GetRemaining(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	base = base.Add(2 * time.Minute)
	remaining, err = limiter.GetRemaining(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestRateLimiter_AllowN(t *testing.T) {
	client := newTestClient(t)
	limiter := NewRateLimiter(client)
	ctx := context.Background()
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, rateLimitKeyPrefix+key) })

	ok, err := limiter.AllowN(ctx, key, 5, 4, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.AllowN(ctx, key, 4, 4, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
