package stream

import "time"

// ThrottleMode selects how a Coalescer spaces deliveries.
type ThrottleMode int

const (
	// ThrottleTrailing opens a window on the first message and delivers the
	// latest one when the window closes.
	ThrottleTrailing ThrottleMode = iota
	// ThrottleMinInterval delivers immediately when the previous delivery is at
	// least one interval old, otherwise the latest message at the window end.
	ThrottleMinInterval
)

// -----------------------------------------------------------------------------

// Coalescer keeps only the newest message per window. It holds no timer; the
// owner arms one for the duration returned by Offer and calls Flush when it
// fires. Not safe for concurrent use.
type Coalescer[T any] struct {
	mode     ThrottleMode
	interval time.Duration

	pending      T
	hasPending   bool
	armed        bool
	delivered    bool
	lastDelivery time.Time
}

// -----------------------------------------------------------------------------

func NewCoalescer[T any](mode ThrottleMode, interval time.Duration) *Coalescer[T] {
	return &Coalescer[T]{mode: mode, interval: interval}
}

// -----------------------------------------------------------------------------

// Offer registers msg at now. When deliver is true out must be delivered right
// away. A positive wait asks the caller to arm a timer and call Flush after it.
func (c *Coalescer[T]) Offer(msg T, now time.Time) (out T, deliver bool, wait time.Duration) {
	if c.interval <= 0 {
		c.markDelivered(now)
		return msg, true, 0
	}

	if c.armed {
		c.hold(msg)
		return out, false, 0
	}

	if c.mode == ThrottleMinInterval {
		elapsed := now.Sub(c.lastDelivery)
		if !c.delivered || elapsed >= c.interval {
			c.markDelivered(now)
			return msg, true, 0
		}
		c.hold(msg)
		c.armed = true
		return out, false, c.interval - elapsed
	}

	c.hold(msg)
	c.armed = true
	return out, false, c.interval
}

// -----------------------------------------------------------------------------

// Flush closes the current window and returns the held message, if any.
func (c *Coalescer[T]) Flush(now time.Time) (T, bool) {
	c.armed = false

	var zero T
	if !c.hasPending {
		return zero, false
	}
	msg := c.pending
	c.pending = zero
	c.hasPending = false
	c.markDelivered(now)
	return msg, true
}

// -----------------------------------------------------------------------------

func (c *Coalescer[T]) Pending() bool {
	return c.hasPending
}

// -----------------------------------------------------------------------------

func (c *Coalescer[T]) hold(msg T) {
	c.pending = msg
	c.hasPending = true
}

func (c *Coalescer[T]) markDelivered(now time.Time) {
	c.delivered = true
	c.lastDelivery = now
}
