package service

import (
	"context"
	"fmt"
	"time"

	"github.com/apcs-space/access-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles sensitive endpoints with a sliding window log in
// Redis. A full window yields a rejection plus the wait until the oldest
// entry falls out.
type RateLimiter struct {
	redis  *database.Redis
	limit  int
	window time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redis *database.Redis, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: redis, limit: limit, window: window}
}

// Allow records a request under key and reports whether it fits in the
// window. retryAfter is set only when the request is rejected.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := time.Now()
	windowStart := now.Add(-r.window)
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	if err := r.redis.Client.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano())).Err(); err != nil {
		return false, 0, fmt.Errorf("failed to trim rate limit window: %w", err)
	}

	count, err := r.redis.Client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to count rate limit entries: %w", err)
	}

	if count >= int64(r.limit) {
		retryAfter := r.window
		oldest, err := r.redis.Client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			oldestTime := time.Unix(0, int64(oldest[0].Score))
			retryAfter = r.window - time.Since(oldestTime)
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
		return false, retryAfter, nil
	}

	member := fmt.Sprintf("%d", now.UnixNano())
	if err := r.redis.Client.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	}).Err(); err != nil {
		return false, 0, fmt.Errorf("failed to record request: %w", err)
	}

	// Best effort; an unexpired key only costs memory.
	_ = r.redis.Client.Expire(ctx, redisKey, r.window+time.Minute).Err()

	return true, 0, nil
}
