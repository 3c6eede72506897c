package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter_Window(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lim := NewRedis(client, 2, 500*time.Millisecond, "test:")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := lim.Allow(ctx, "ip|alice", time.Now())
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, retryAfter, err := lim.Allow(ctx, "ip|alice", time.Now())
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.True(t, srv.Exists("test:ip|alice"))

	srv.FastForward(600 * time.Millisecond)

	allowed, _, err = lim.Allow(ctx, "ip|alice", time.Now())
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_ReportsBackendErrors(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	srv.Close()

	_, _, err := NewRedis(client, 1, time.Second, "").Allow(context.Background(), "k", time.Now())
	assert.Error(t, err)
}

func TestRedisLimiter_RejectsZeroWindow(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	_, _, err := NewRedis(client, 1, 0, "").Allow(context.Background(), "k", time.Now())
	assert.Error(t, err)
}
