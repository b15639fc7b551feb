package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultWindow is the length of one rate limit window
const DefaultWindow = time.Minute

// RateLimitStore counts submissions per client in fixed windows shared by
// every replica.
type RateLimitStore struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

// NewRateLimitStore creates a store using DefaultWindow
func NewRateLimitStore(client *redis.Client) *RateLimitStore {
	return &RateLimitStore{
		client: client,
		window: DefaultWindow,
		now:    time.Now,
	}
}

// Allow counts one hit for client and reports whether it is within limit for
// the current window.
func (s *RateLimitStore) Allow(ctx context.Context, client string, limit int) (bool, error) {
	windowStart := s.now().Truncate(s.window).Unix()
	key := RateLimitKey(client, windowStart)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		// Keep the counter one extra window so late hits never reset it.
		pipe.Expire(ctx, key, 2*s.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to count hit: %w", err)
	}

	return incr.Val() <= int64(limit), nil
}

// Ping reports whether the backing Redis answers
func (s *RateLimitStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
