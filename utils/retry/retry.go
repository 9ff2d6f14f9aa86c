// Package retry provides a bounded retry helper for remote probe flows.
package retry

import (
	"context"
	"errors"
	"time"
)

// Config bounds a retry loop. IsRetryable decides whether a failure is
// worth another attempt; a nil IsRetryable retries every failure.
type Config struct {
	MaxAttempts int
	Delay       time.Duration
	IsRetryable func(error) bool
}

// ErrInvalidConfig is returned when MaxAttempts is not positive.
var ErrInvalidConfig = errors.New("retry: max attempts must be at least 1")

// Do runs fn up to cfg.MaxAttempts times, sleeping cfg.Delay between
// attempts. It returns the number of attempts made and the last error.
// A non-retryable error stops the loop immediately.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) (int, error) {
	if cfg.MaxAttempts < 1 {
		return 0, ErrInvalidConfig
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return attempt - 1, cerr
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if cfg.IsRetryable != nil && !cfg.IsRetryable(lastErr) {
			return attempt, lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		// Checked here too: with a zero delay the timer below fires
		// immediately and would race a concurrent cancellation.
		if cerr := ctx.Err(); cerr != nil {
			return attempt, cerr
		}
		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}
	return cfg.MaxAttempts, lastErr
}
