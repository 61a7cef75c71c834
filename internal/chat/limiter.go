package chat

import (
	"context"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// Limiter throttles sends per key
type Limiter interface {
	Allow(ctx context.Context, key string) (retryAfter time.Duration, allowed bool, err error)
}

// RedisLimiter is a GCRA limiter shared by every server instance
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisLimiter allows perMinute sends per key
func NewRedisLimiter(client *redis.Client, perMinute int) *RedisLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit:   redis_rate.PerMinute(perMinute),
	}
}

// Allow consumes one token for key
func (l *RedisLimiter) Allow(ctx context.Context, key string) (time.Duration, bool, error) {
	res, err := l.limiter.Allow(ctx, key, l.limit)
	if err != nil {
		return 0, false, err
	}
	return res.RetryAfter, res.Allowed > 0, nil
}

// SendLimitKey is the rate-limit key for a wallet's chat sends
func SendLimitKey(wallet string) string {
	return "chat:send:" + wallet
}
