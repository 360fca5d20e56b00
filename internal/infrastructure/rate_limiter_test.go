package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Disabled(t *testing.T) {
	t.Parallel()

	limiter, err := NewRateLimiter(0, 10)
	require.NoError(t, err)

	for range 100 {
		require.NoError(t, limiter.Wait(t.Context()))
	}

	var nilLimiter *RateLimiter
	assert.NoError(t, nilLimiter.Wait(t.Context()))
}

func TestRateLimiter_Paces(t *testing.T) {
	t.Parallel()

	limiter, err := NewRateLimiter(50, 1)
	require.NoError(t, err)

	startedAt := time.Now()

	for range 3 {
		require.NoError(t, limiter.Wait(t.Context()))
	}

	assert.GreaterOrEqual(t, time.Since(startedAt), 30*time.Millisecond)
}

func TestRateLimiter_StopsOnContext(t *testing.T) {
	t.Parallel()

	limiter, err := NewRateLimiter(1, 1)
	require.NoError(t, err)

	require.NoError(t, limiter.Wait(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, limiter.Wait(ctx), context.DeadlineExceeded)
}
