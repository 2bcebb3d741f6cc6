package helpers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"market-dashboard/src/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("snapshot: %w", NewFetchError("ticker/24hr failed", cause))

	assert.True(t, IsFetchError(err))
	assert.False(t, IsDecodeError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "snapshot: ticker/24hr failed: connection refused", err.Error())

	var se *StreamError
	assert.False(t, errors.As(err, &se))

	assert.Equal(t, "bad symbol", NewValidationError("bad symbol").Error())
	assert.True(t, IsValidationError(NewValidationError("x")))
}

func TestRetryWithBackoffSucceedsAfterFailures(t *testing.T) {
	calls := 0
	res, err := RetryWithBackoff(context.Background(), nil, "fetch", 3, time.Millisecond, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffStopsOnPermanent(t *testing.T) {
	calls := 0
	_, err := RetryWithBackoff(context.Background(), nil, "fetch", 5, time.Millisecond, func() (int, error) {
		calls++
		return 0, fmt.Errorf("status 400: %w", ErrPermanent)
	})

	assert.ErrorIs(t, err, ErrPermanent)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoffHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RetryWithBackoff(ctx, nil, "fetch", 5, time.Hour, func() (int, error) {
		return 0, errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithBackoffBoundsAttempts(t *testing.T) {
	calls := 0
	_, err := RetryWithBackoff(context.Background(), logger.NewLogger(nil, "RetryTest"), "fetch", 3, time.Millisecond, func() (int, error) {
		calls++
		return 0, fmt.Errorf("down %d", calls)
	})

	require.Error(t, err)
	assert.Equal(t, "down 3", err.Error())
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffSingleAttempt(t *testing.T) {
	calls := 0
	_, err := RetryWithBackoff(context.Background(), nil, "fetch", 0, time.Hour, func() (int, error) {
		calls++
		return 0, errors.New("down")
	})

	assert.EqualError(t, err, "down")
	assert.Equal(t, 1, calls)
}
