package coreerr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryPolicy(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Jitter: false}
	err := Retry(context.Background(), policy, func() error {
		calls++
		if calls < 3 {
			return Transient(errors.New("503"), "put object")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsImmediatelyOnNonRetryableError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryPolicy(), func() error {
		calls++
		return Validation("bad dimension")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestRetry_ExhaustsMaxAttempts(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Jitter: false}
	err := Retry(context.Background(), policy, func() error {
		calls++
		return Transient(errors.New("timeout"), "put object")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, DefaultRetryPolicy(), func() error {
		t.Fatal("fn should not be called once context is cancelled")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResult_ReturnsZeroValueOnFailure(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Jitter: false}
	result, err := RetryWithResult(context.Background(), policy, func() (int, error) {
		return 0, Transient(errors.New("boom"), "op")
	})
	require.Error(t, err)
	assert.Equal(t, 0, result)
}

func TestRetryWithResult_ReturnsValueOnSuccess(t *testing.T) {
	result, err := RetryWithResult(context.Background(), DefaultRetryPolicy(), func() (string, error) {
		return "shard-001", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "shard-001", result)
}
