package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-dashboard/src/logger"

	"github.com/cenkalti/backoff/v4"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type DashboardError struct {
	Message string
	Cause   error
}

func (e *DashboardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DashboardError) Unwrap() error {
	return e.Cause
}

// Distinct error kinds for errors.As. A FetchError invalidates the view it
// feeds, a StreamError is recoverable, a DecodeError is dropped at the boundary.
type ConfigurationError struct{ DashboardError }
type NetworkError struct{ DashboardError }
type FetchError struct{ DashboardError }
type StreamError struct{ DashboardError }
type DecodeError struct{ DashboardError }
type DatabaseError struct{ DashboardError }
type ValidationError struct{ DashboardError }

// ErrRetriesExhausted is terminal for a stream subscription.
var ErrRetriesExhausted = errors.New("reconnect attempts exhausted")

// ErrPermanent marks a failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// -----------------------------------------------------------------------------

func NewFetchError(message string, cause error) *FetchError {
	return &FetchError{DashboardError{Message: message, Cause: cause}}
}

func NewStreamError(message string, cause error) *StreamError {
	return &StreamError{DashboardError{Message: message, Cause: cause}}
}

func NewDecodeError(message string, cause error) *DecodeError {
	return &DecodeError{DashboardError{Message: message, Cause: cause}}
}

func NewNetworkError(message string, cause error) *NetworkError {
	return &NetworkError{DashboardError{Message: message, Cause: cause}}
}

func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{DashboardError{Message: message, Cause: cause}}
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{DashboardError{Message: message}}
}

// -----------------------------------------------------------------------------

// IsFetchError reports whether err (or anything it wraps) is a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to attempts times, doubling baseDelay between
// tries. It stops early on context cancellation or an ErrPermanent failure.
func RetryWithBackoff[T any](ctx context.Context, log *logger.Logger, operation string, attempts int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = baseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = baseDelay << min(attempts-1, 16)
	exp.MaxElapsedTime = 0
	exp.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	attempt := 0
	op := func() (T, error) {
		attempt++
		res, err := fn()
		if err != nil && errors.Is(err, ErrPermanent) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}
	notify := func(err error, delay time.Duration) {
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt, attempts, operation, err, delay)
		}
	}

	res, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err != nil {
		var zero T
		return zero, err
	}
	return res, nil
}
