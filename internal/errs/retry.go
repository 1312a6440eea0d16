package errs

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff with jitter, capped at 3
// retries before a call's error is surfaced to its caller.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig matches the "3 retries, exponential backoff, jitter"
// policy applied to fetcher, embedder, and LLM calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
}

// Retry runs fn until it succeeds, exhausts MaxAttempts, or hits a
// non-retryable Kind. BadInput and NotFound are never retried.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Wrap(Cancelled, "retry aborted", err)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !Retryable(KindOf(err)) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoff(attempt, cfg)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Wrap(Cancelled, "retry aborted during backoff", ctx.Err())
		}
	}
	return Wrap(UpstreamUnavailable, "retries exhausted", lastErr)
}

func backoff(attempt int, cfg RetryConfig) time.Duration {
	delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt)))
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	jitter := (rand.Float64()*0.5 + 0.75) // 75%-125%
	return time.Duration(float64(delay) * jitter)
}
