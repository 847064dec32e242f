package connection

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPermanent marks an error that must not be retried. Wrap it with
// Permanent.
var ErrPermanent = errors.New("permanent failure")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() []error {
	return []error{e.err, ErrPermanent}
}

// Permanent wraps err so that Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryFunc is one attempt. attempt starts at 1.
type RetryFunc func(ctx context.Context, attempt int) error

// Retry calls fn until it succeeds, returns a permanent error, maxAttempts
// is reached (0 means unlimited), or ctx is done. Delays between attempts
// follow policy.
func Retry(ctx context.Context, policy Backoff, maxAttempts int, fn RetryFunc) error {
	policy = policy.normalized()

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrPermanent):
			return err
		}
		lastErr = err

		if maxAttempts > 0 && attempt >= maxAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, lastErr)
		}

		timer := time.NewTimer(policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
}
