package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSlidingWindowLimiter counts hits in a per-key sorted set scored by
// timestamp, so rate limits hold across replicas.
type RedisSlidingWindowLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisSlidingWindowLimiter(client redis.UniversalClient, prefix string) *RedisSlidingWindowLimiter {
	if prefix == "" {
		prefix = "rate_limit"
	}
	return &RedisSlidingWindowLimiter{client: client, prefix: prefix}
}

func (l *RedisSlidingWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := time.Now()
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)
	cutoff := now.Add(-window).UnixNano()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", cutoff))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	count := int(countCmd.Val())
	if count >= limit {
		oldest, err := l.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
		retryAfter := window
		resetAt := now.Add(window)
		if err == nil && len(oldest) > 0 {
			oldestAt := time.Unix(0, int64(oldest[0].Score))
			resetAt = oldestAt.Add(window)
			retryAfter = time.Until(resetAt)
		}
		return Decision{Allowed: false, RetryAfter: retryAfter, Remaining: 0, ResetAt: resetAt}, nil
	}

	pipe = l.client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: fmt.Sprintf("%d", now.UnixNano())})
	pipe.Expire(ctx, redisKey, window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: true, Remaining: limit - count - 1, ResetAt: now.Add(window)}, nil
}
