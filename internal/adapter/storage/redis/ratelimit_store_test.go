package redis_test

import (
	"context"
	"testing"
	"time"

	"audit-ledger/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitStore_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	now := time.Unix(1_800_000_000, 0)
	store := redis.NewRateLimitStore(client).WithClock(func() time.Time { return now })
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			result, err := store.Allow(ctx, "credential:p1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "request %d should be allowed", i)
			assert.Equal(t, int64(3), result.Limit)
			assert.Equal(t, 3-i, result.Remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		result, err := store.Allow(ctx, "credential:p1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, int64(0), result.Remaining)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		result, err := store.Allow(ctx, "credential:p2", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(4), result.Remaining)
	})

	t.Run("window key expires", func(t *testing.T) {
		_, err := store.Allow(ctx, "audit_read:p3", 1, time.Minute)
		require.NoError(t, err)

		assert.Equal(t, 61*time.Second, mr.TTL("audit-ledger:ratelimit:audit_read:p3:30000000"))

		mr.FastForward(62 * time.Second)
		assert.False(t, mr.Exists("audit-ledger:ratelimit:audit_read:p3:30000000"))
	})

	t.Run("next window resets the count", func(t *testing.T) {
		key := "credential:p4"
		_, err := store.Allow(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		result, err := store.Allow(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)

		later := redis.NewRateLimitStore(client).WithClock(func() time.Time { return now.Add(time.Minute) })
		result, err = later.Allow(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("sets ResetAt to the window end", func(t *testing.T) {
		result, err := store.Allow(ctx, "audit_write:p5", 10, 15*time.Minute)
		require.NoError(t, err)
		windowSecs := int64(15 * 60)
		assert.Equal(t, (now.Unix()/windowSecs+1)*windowSecs, result.ResetAt)
	})
}

func TestRateLimitStore_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err := redis.NewRateLimitStore(client).Allow(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
}
