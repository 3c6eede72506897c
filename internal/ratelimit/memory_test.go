package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_AllowAndReset(t *testing.T) {
	lim := NewMemory(2, time.Minute)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 2; i++ {
		allowed, retry, err := lim.Allow(ctx, "1.2.3.4|alice", now)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Zero(t, retry)
	}

	allowed, retry, err := lim.Allow(ctx, "1.2.3.4|alice", now.Add(10*time.Second))
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 50*time.Second, retry)

	allowed, _, err = lim.Allow(ctx, "1.2.3.4|bob", now)
	require.NoError(t, err)
	assert.True(t, allowed, "keys are counted independently")

	allowed, _, err = lim.Allow(ctx, "1.2.3.4|alice", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, allowed, "window resets")
}

func TestMemoryLimiter_DropsExpiredWindows(t *testing.T) {
	lim := NewMemory(1, time.Second)
	ctx := context.Background()
	now := time.Now()

	_, _, _ = lim.Allow(ctx, "a", now)
	_, _, _ = lim.Allow(ctx, "b", now)
	require.Equal(t, 2, lim.size())

	_, _, _ = lim.Allow(ctx, "c", now.Add(3*time.Second))
	assert.Equal(t, 1, lim.size())
}
