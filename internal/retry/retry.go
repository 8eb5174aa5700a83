// Package retry implements the bounded retry policy shared by every
// network-facing component: a fixed number of attempts with a fixed delay
// between them, no backoff.
//
// Only errors marked transient are retried. Context cancellation aborts
// immediately and is never counted as a transient failure.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// transientError marks an error as retryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so the retry loop will retry it.
// Returns nil if err is nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or any wrapped error) is marked transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	return errors.As(err, &te)
}

// Policy holds the retry parameters for one component.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration
}

// Do runs op under the policy. Op errors that are not transient are
// returned immediately. On exhaustion the last error is returned wrapped
// with the attempt count.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s canceled: %w", name, err)
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		// Only the caller's own signal counts as cancellation. The error
		// chain is not consulted: an http.Client timeout satisfies
		// errors.Is(err, context.DeadlineExceeded) even though the
		// caller's context is live, and those must stay retryable.
		if ctx.Err() != nil {
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		}

		if !IsTransient(err) {
			return fmt.Errorf("%s failed (permanent): %w", name, err)
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(p.Delay):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
