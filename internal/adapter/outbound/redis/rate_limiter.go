package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uniedit/mediaupload/internal/port/outbound"
)

const rateLimitKeyPrefix = "mediaupload:ratelimit:"

// RateLimiter is a sliding-window limiter over a Redis sorted set. Each
// admitted request is a member scored by its arrival time in nanoseconds.
type RateLimiter struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter adapter.
func NewRateLimiter(client redis.Cmdable) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow reports whether one more request fits in the window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return r.AllowN(ctx, key, 1, limit, window)
}

// AllowN reports whether n more requests fit in the window and records them
// if they do.
func (r *RateLimiter) AllowN(ctx context.Context, key string, n int, limit int, window time.Duration) (bool, error) {
	fullKey := rateLimitKeyPrefix + key
	now := r.now().UnixNano()

	count, err := r.count(ctx, fullKey, now, window)
	if err != nil {
		return false, err
	}
	if count+int64(n) > int64(limit) {
		return false, nil
	}

	members := make([]redis.Z, n)
	for i := range members {
		members[i] = redis.Z{
			Score:  float64(now + int64(i)),
			Member: strconv.FormatInt(now, 10) + "-" + strconv.Itoa(i),
		}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, fullKey, members...)
		pipe.Expire(ctx, fullKey, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("record requests: %w", err)
	}
	return true, nil
}

// GetRemaining returns how many requests still fit in the window.
func (r *RateLimiter) GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	count, err := r.count(ctx, rateLimitKeyPrefix+key, r.now().UnixNano(), window)
	if err != nil {
		return 0, err
	}
	return max(limit-int(count), 0), nil
}

// count drops members older than the window and returns the rest.
func (r *RateLimiter) count(ctx context.Context, fullKey string, now int64, window time.Duration) (int64, error) {
	windowStart := now - window.Nanoseconds()

	var countCmd *redis.IntCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, fullKey, "0", strconv.FormatInt(windowStart, 10))
		countCmd = pipe.ZCard(ctx, fullKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return countCmd.Val(), nil
}

// Compile-time check
var _ outbound.RateLimiterPort = (*RateLimiter)(nil)
