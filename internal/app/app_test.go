package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-admin/internal/config"
	"card-admin/internal/ratelimit"
)

func limiterConfig(addr string) *config.Config {
	return &config.Config{
		RedisAddr:          addr,
		LoginAttemptLimit:  2,
		LoginAttemptWindow: time.Minute,
	}
}

func TestNewLoginLimiter_Memory(t *testing.T) {
	limiter, closeFn, err := newLoginLimiter(context.Background(), limiterConfig(""))
	require.NoError(t, err)
	assert.Nil(t, closeFn)
	assert.IsType(t, &ratelimit.MemoryLimiter{}, limiter)
}

func TestNewLoginLimiter_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	limiter, closeFn, err := newLoginLimiter(context.Background(), limiterConfig(mr.Addr()))
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	t.Cleanup(closeFn)
	assert.IsType(t, &ratelimit.RedisLimiter{}, limiter)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "10.0.0.1|alice", time.Now())
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, retryAfter, err := limiter.Allow(ctx, "10.0.0.1|alice", time.Now())
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Positive(t, retryAfter)
}

func TestNewLoginLimiter_UnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, _, err := newLoginLimiter(context.Background(), limiterConfig(addr))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}
