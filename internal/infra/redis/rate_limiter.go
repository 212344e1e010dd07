package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter caps support messages per client with a fixed window: the
// first message of a window sets the expiry, every message increments.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one message from client. A limit <= 0 disables the check.
func (r *RateLimiter) Allow(ctx context.Context, client string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	key := ClientMessageKey(client)
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			// a counter without expiry would throttle the client for good
			_ = r.client.Del(ctx, key)
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count <= int64(limit), nil
}

func ClientMessageKey(client string) string {
	return "rate_limit:support:" + client
}
