package errors

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig is an exponential backoff policy. MaxRetries counts the
// attempts after the first one.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// ShouldRetry decides whether an error is worth another attempt.
	// Nil means IsRetryable.
	ShouldRetry func(error) bool

	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig waits 1s, 2s, 4s between attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2,
	}
}

// delay returns the wait before retry n (1-based).
func (c RetryConfig) delay(n int) time.Duration {
	d := float64(c.InitialDelay)
	for range n - 1 {
		d *= c.Multiplier
		if c.MaxDelay > 0 && time.Duration(d) >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	return time.Duration(d)
}

// Retry runs fn until it succeeds, returns an error ShouldRetry rejects,
// or the retries run out. Rejected errors come back unwrapped.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is Retry for functions that also return a value.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	retryable := cfg.ShouldRetry
	if retryable == nil {
		retryable = IsRetryable
	}

	var err error
	for n := 0; ; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		var v T
		if v, err = fn(); err == nil {
			return v, nil
		}
		if !retryable(err) {
			return zero, err
		}
		if n == cfg.MaxRetries {
			break
		}

		wait := cfg.delay(n + 1)
		if cfg.OnRetry != nil {
			cfg.OnRetry(n+1, wait, err)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}

	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, err)
}
