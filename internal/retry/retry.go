// ABOUTME: Bounded exponential backoff helper shared by remote API callers
// ABOUTME: Retries only errors the caller's predicate classifies as transient

package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Policy describes the retry schedule: how many attempts to make and how the
// delay between them grows. The delay doubles after every failed attempt,
// capped at MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy is a sensible schedule for chatty remote APIs:
// 1s, 2s, 4s, 8s between the five attempts.
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	BaseDelay:   time.Second,
	MaxDelay:    30 * time.Second,
}

// Do invokes fn until it succeeds, the attempt budget is exhausted, or the
// error is one the retriable predicate rejects. Non-retriable errors are
// returned immediately. The context cancels both fn and the backoff sleeps.
func Do(ctx context.Context, logger *slog.Logger, op string, policy Policy, retriable func(error) bool, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	delay := policy.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if retriable != nil && !retriable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}

		logger.Warn("retrying after transient failure",
			"op", op,
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"delay", delay.String(),
			"error", lastErr)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, policy.MaxAttempts, lastErr)
}
