package util

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as non-retryable; Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay. It returns nil on the first successful call, the unwrapped error
// of a Permanent failure, or the last error if all attempts fail. Failed
// attempts are logged at warn under op.
func Retry(ctx context.Context, log *slog.Logger, op string, maxAttempts int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	log = OrDefault(log)
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		log.Warn("attempt failed", "op", op, "attempt", attempt, "of", maxAttempts, "error", err)

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return err
}
