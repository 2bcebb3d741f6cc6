package stream

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// -----------------------------------------------------------------------------

// BackoffPolicy yields min(base*2^(k-1), cap) before reconnect attempt k and
// refuses once MaxAttempts consecutive attempts have been spent.
type BackoffPolicy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int

	attempts int
	b        backoff.BackOff
}

// -----------------------------------------------------------------------------

func NewBackoffPolicy(base, maxDelay time.Duration, maxAttempts int) *BackoffPolicy {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.MaxInterval = maxDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	if maxAttempts < 0 {
		maxAttempts = 0
	}

	return &BackoffPolicy{
		Base:        base,
		Cap:         maxDelay,
		MaxAttempts: maxAttempts,
		b:           backoff.WithMaxRetries(exp, uint64(maxAttempts)),
	}
}

// -----------------------------------------------------------------------------

// Next returns the delay before the next attempt, or false when exhausted.
func (p *BackoffPolicy) Next() (time.Duration, bool) {
	d := p.b.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	p.attempts++
	return d, true
}

// -----------------------------------------------------------------------------

// Reset starts a fresh series; called once a connection proves healthy.
func (p *BackoffPolicy) Reset() {
	p.b.Reset()
	p.attempts = 0
}

// -----------------------------------------------------------------------------

func (p *BackoffPolicy) Attempts() int {
	return p.attempts
}

// -----------------------------------------------------------------------------

// Delay is the closed form of the schedule for attempt k (1-based).
func Delay(base, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		if d >= maxDelay/2 {
			return maxDelay
		}
		d *= 2
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}
