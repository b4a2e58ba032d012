// ABOUTME: Tests for the retry helper
// ABOUTME: Verifies attempt counting, predicate short-circuit, and cancellation

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, "test", fastPolicy(5),
		func(err error) bool { return errors.Is(err, errTransient) },
		func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, "test", fastPolicy(3),
		func(err error) bool { return true },
		func(ctx context.Context) error {
			calls++
			return errTransient
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetriableFailsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, "test", fastPolicy(5),
		func(err error) bool { return errors.Is(err, errTransient) },
		func(ctx context.Context) error {
			calls++
			return errFatal
		})

	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := Policy{MaxAttempts: 10, BaseDelay: time.Hour}
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, nil, "test", policy,
			func(err error) bool { return true },
			func(ctx context.Context) error { return errTransient })
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDo_NilPredicateRetriesEverything(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, "test", fastPolicy(2), nil,
		func(ctx context.Context) error {
			calls++
			return errFatal
		})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}
