package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/joeychilson/rawview/config"
	"github.com/joeychilson/rawview/fetcher"
	"github.com/joeychilson/rawview/ratelimit"
)

// jitterPercent spreads each backoff by +/- 25%.
const jitterPercent = 0.25

// Retrier wraps a Fetcher with throttling and exponential backoff.
type Retrier struct {
	fetcher *fetcher.Fetcher
	limiter *ratelimit.Limiter
	config  config.RetryConfig
}

// New creates a Retrier.
func New(f *fetcher.Fetcher, l *ratelimit.Limiter, cfg config.RetryConfig) *Retrier {
	return &Retrier{fetcher: f, limiter: l, config: cfg}
}

// Fetch fetches url, retrying transport errors and retryable statuses.
// A non-retryable status is returned as a response, not an error.
func (r *Retrier) Fetch(ctx context.Context, url string, opts *fetcher.FetchOptions) (*fetcher.Response, error) {
	maxRetries := r.config.GetMaxRetries()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := r.limiter.Wait(ctx, url); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}

		resp, err := r.fetcher.Fetch(ctx, url, opts)
		r.limiter.Release(url)

		switch {
		case err != nil:
			lastErr = fmt.Errorf("attempt %d failed: %w", attempt, err)
		case !r.config.ShouldRetry(resp.StatusCode):
			return resp, nil
		default:
			r.limiter.UpdateRetryAfter(url, resp.Headers)
			lastErr = fmt.Errorf("attempt %d: HTTP %d", attempt, resp.StatusCode)
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < maxRetries {
			if err := sleep(ctx, r.calculateBackoff(attempt)); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)
}

func (r *Retrier) calculateBackoff(attempt int) time.Duration {
	delay := float64(r.config.GetInitialDelay()) * math.Pow(r.config.GetMultiplier(), float64(attempt))
	if ceiling := float64(r.config.GetMaxDelay()); delay > ceiling || math.IsInf(delay, 0) {
		delay = ceiling
	}
	return addJitter(time.Duration(delay))
}

func addJitter(d time.Duration) time.Duration {
	if d == 0 {
		return 0
	}
	jitter := (rand.Float64()*2.0 - 1.0) * float64(d) * jitterPercent
	return max(time.Duration(float64(d)+jitter), 0)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
