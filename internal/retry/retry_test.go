package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// clientTimeoutError mimics net/http's client timeout error, which matches
// context.DeadlineExceeded without any context having expired.
type clientTimeoutError struct{}

func (e *clientTimeoutError) Error() string { return "request canceled (Client.Timeout exceeded)" }

func (e *clientTimeoutError) Timeout() bool { return true }

func (e *clientTimeoutError) Is(target error) bool { return target == context.DeadlineExceeded }

func TestPolicy_Do(t *testing.T) {
	policy := Policy{Attempts: 3, Delay: time.Millisecond}

	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := policy.Do(context.Background(), "op", func(ctx context.Context) error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		err := policy.Do(context.Background(), "op", func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return Transient(errors.New("unavailable"))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		err := policy.Do(context.Background(), "op", func(ctx context.Context) error {
			calls++
			return Transient(errors.New("unavailable"))
		})
		if err == nil {
			t.Fatal("Do() expected error")
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		calls := 0
		permanent := errors.New("bad request")
		err := policy.Do(context.Background(), "op", func(ctx context.Context) error {
			calls++
			return permanent
		})
		if !errors.Is(err, permanent) {
			t.Errorf("Do() error = %v, want wrapped %v", err, permanent)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("cancellation is not retried", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := policy.Do(ctx, "op", func(ctx context.Context) error {
			calls++
			cancel()
			return ctx.Err()
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("client timeout with live context is retried", func(t *testing.T) {
		// http.Client.Timeout failures report errors.Is(err,
		// context.DeadlineExceeded) through the url.Error chain even when
		// the caller's context never fired. Only the real context decides
		// cancellation.
		calls := 0
		err := policy.Do(context.Background(), "op", func(ctx context.Context) error {
			calls++
			return Transient(fmt.Errorf("request failed: %w", &clientTimeoutError{}))
		})
		if err == nil {
			t.Fatal("Do() expected error")
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
		if !strings.Contains(err.Error(), "after 3 attempts") {
			t.Errorf("Do() error = %v, want exhaustion, not cancellation", err)
		}
	})

	t.Run("canceled before first attempt", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := policy.Do(ctx, "op", func(ctx context.Context) error {
			t.Fatal("op should not run")
			return nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
	})
}

func TestTransient(t *testing.T) {
	if Transient(nil) != nil {
		t.Error("Transient(nil) should be nil")
	}
	base := errors.New("boom")
	wrapped := Transient(base)
	if !IsTransient(wrapped) {
		t.Error("IsTransient(Transient(err)) = false")
	}
	if !errors.Is(wrapped, base) {
		t.Error("Transient should preserve wrapped error")
	}
	if IsTransient(base) {
		t.Error("IsTransient(plain) = true")
	}
	// Transient marker survives further wrapping.
	outer := errors.Join(errors.New("ctx"), wrapped)
	if !IsTransient(outer) {
		t.Error("IsTransient should see through wrapping")
	}
}
