package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), Always, func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("permanent")
	err := Do(context.Background(), fastPolicy(5), func(err error) bool {
		return errors.Is(err, errFlaky)
	}, func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoValue_ReturnsLastError(t *testing.T) {
	calls := 0
	v, err := DoValue(context.Background(), fastPolicy(2), Always, func() (float64, error) {
		calls++
		return 0, errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Zero(t, v)
	assert.Equal(t, 2, calls)
}

func TestDoValue_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: time.Second}
	_, err := DoValue(ctx, policy, Always, func() (int, error) {
		return 0, errFlaky
	})
	assert.ErrorIs(t, err, context.Canceled)
}
