package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"
)

const (
	rateLimiterKey     = "publish"
	rateLimiterMaxKeys = 1
)

// RateLimiter paces publishing with a GCRA limiter. A zero value does not limit.
type RateLimiter struct {
	limiter *throttled.GCRARateLimiterCtx
}

// NewRateLimiter allows perSecond messages with bursts of burst. perSecond <= 0 disables limiting.
func NewRateLimiter(perSecond, burst int) (*RateLimiter, error) {
	if perSecond <= 0 {
		return &RateLimiter{}, nil
	}

	store, err := memstore.NewCtx(rateLimiterMaxKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter store: %w", err)
	}

	quota := throttled.RateQuota{
		MaxRate:  throttled.PerSec(perSecond),
		MaxBurst: max(burst-1, 0),
	}

	limiter, err := throttled.NewGCRARateLimiterCtx(store, quota)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	return &RateLimiter{limiter: limiter}, nil
}

// Wait blocks until one more message may be published or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.limiter == nil {
		return nil
	}

	for {
		limited, result, err := r.limiter.RateLimitCtx(ctx, rateLimiterKey, 1)
		if err != nil {
			return fmt.Errorf("rate limiter failed: %w", err)
		}

		if !limited {
			return nil
		}

		wait := max(result.RetryAfter, time.Millisecond)
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.C:
		}
	}
}
