package redis

import (
	"context"
	"fmt"
	"time"

	"audit-ledger/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

const defaultRateLimitPrefix = "audit-ledger:ratelimit:"

// RateLimitStore implements ports.RateLimiter with fixed-window counters.
type RateLimitStore struct {
	client goredis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRateLimitStore creates a new Redis-backed rate limit store.
func NewRateLimitStore(client goredis.Cmdable) *RateLimitStore {
	return &RateLimitStore{
		client: client,
		prefix: defaultRateLimitPrefix,
		now:    time.Now,
	}
}

// WithClock replaces the time source used to compute windows.
func (s *RateLimitStore) WithClock(now func() time.Time) *RateLimitStore {
	s.now = now
	return s
}

// Allow counts one request against key in the current window.
// Windows are aligned to multiples of window since the Unix epoch.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	windowSecs := int64(window / time.Second)
	if windowSecs < 1 {
		windowSecs = 1
	}
	windowID := s.now().Unix() / windowSecs
	redisKey := fmt.Sprintf("%s%s:%d", s.prefix, key, windowID)

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis rate limit incr: %w", err)
	}

	// First hit opens the window; the extra second covers clock skew between nodes.
	if count == 1 {
		ttl := time.Duration(windowSecs)*time.Second + time.Second
		if err := s.client.Expire(ctx, redisKey, ttl).Err(); err != nil {
			return nil, fmt.Errorf("redis rate limit expire: %w", err)
		}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &ports.RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   (windowID + 1) * windowSecs,
	}, nil
}
