package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"market-dashboard/src/helpers"
	"market-dashboard/src/logger"

	"github.com/jonboulle/clockwork"
)

const defaultEventBuffer = 64

// -----------------------------------------------------------------------------

// Options configure one Client. Decode turns a raw frame into a message; a
// decode error drops the frame and never reaches consumers.
type Options[T any] struct {
	Name     string
	URL      string
	Dialer   Dialer
	Decode   func([]byte) (T, error)
	Policy   *BackoffPolicy
	Mode     ThrottleMode
	Throttle time.Duration
	Clock    clockwork.Clock
	Logger   *logger.Logger
	Buffer   int
}

// -----------------------------------------------------------------------------

// Client owns exactly one stream connection at a time and reconnects it with
// exponential backoff until the policy is exhausted or it is closed. All
// connection state lives in the run goroutine.
type Client[T any] struct {
	opts   Options[T]
	events chan Event[T]

	mu      sync.RWMutex
	state   State
	lastErr error

	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type frame struct {
	data []byte
	err  error
}

// -----------------------------------------------------------------------------

func NewClient[T any](opts Options[T]) *Client[T] {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Policy == nil {
		opts.Policy = NewBackoffPolicy(time.Second, 30*time.Second, 5)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewLogger(nil, "StreamClient")
	}
	if opts.Name == "" {
		opts.Name = opts.URL
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultEventBuffer
	}

	return &Client[T]{
		opts:   opts,
		events: make(chan Event[T], opts.Buffer),
		state:  StateIdle,
		done:   make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Start opens the connection in the background. The event channel is closed
// once the client stops, whether by Close, ctx cancellation or giving up.
func (c *Client[T]) Start(parent context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("stream %s is already started", c.opts.Name)
	}

	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel

	go c.run(ctx)
	return nil
}

// -----------------------------------------------------------------------------

// Close stops timers, closes the connection and waits for the run loop.
// No event is emitted after Close returns.
func (c *Client[T]) Close() {
	if !c.started.Load() {
		return
	}
	c.cancel()
	<-c.done
}

// -----------------------------------------------------------------------------

func (c *Client[T]) Events() <-chan Event[T] {
	return c.events
}

// -----------------------------------------------------------------------------

func (c *Client[T]) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// -----------------------------------------------------------------------------

func (c *Client[T]) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// -----------------------------------------------------------------------------

func (c *Client[T]) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)

	log := c.opts.Logger
	policy := c.opts.Policy
	policy.Reset()

	for {
		c.transition(ctx, Event[T]{Kind: EventState, State: StateConnecting})

		conn, err := c.opts.Dialer.Dial(ctx, c.opts.URL)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			serr := helpers.NewStreamError(fmt.Sprintf("stream %s: connect failed", c.opts.Name), err)
			log.Warning("%v", serr)
			c.transition(ctx, Event[T]{Kind: EventState, State: StateErrored, Err: serr})
		} else {
			log.Info("Stream %s connected", c.opts.Name)
			c.transition(ctx, Event[T]{Kind: EventState, State: StateOpen})

			err = c.serve(ctx, conn, policy)
			conn.Close()
			if ctx.Err() != nil {
				return
			}

			serr := helpers.NewStreamError(fmt.Sprintf("stream %s: connection lost", c.opts.Name), err)
			log.Warning("%v", serr)
			c.transition(ctx, Event[T]{Kind: EventState, State: StateClosed, Err: serr})
		}

		if !c.waitForRetry(ctx, policy) {
			return
		}
	}
}

// -----------------------------------------------------------------------------

// serve pumps frames from one connection until it fails or ctx ends. The
// reader goroutine is private to this connection, so frames from an older
// connection can never be delivered.
func (c *Client[T]) serve(ctx context.Context, conn Conn, policy *BackoffPolicy) error {
	frames := make(chan frame)
	stop := make(chan struct{})
	defer close(stop)

	go readLoop(conn, frames, stop)

	clock := c.opts.Clock
	co := NewCoalescer[T](c.opts.Mode, c.opts.Throttle)

	var timer clockwork.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	healthy := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case f := <-frames:
			if f.err != nil {
				if msg, ok := co.Flush(clock.Now()); ok {
					c.emit(ctx, Event[T]{Kind: EventMessage, State: StateOpen, Message: msg})
				}
				return f.err
			}

			msg, err := c.opts.Decode(f.data)
			if err != nil {
				c.opts.Logger.Debug("Stream %s: dropping frame: %v", c.opts.Name, err)
				continue
			}

			if !healthy {
				healthy = true
				policy.Reset()
			}

			out, deliver, wait := co.Offer(msg, clock.Now())
			if deliver {
				c.emit(ctx, Event[T]{Kind: EventMessage, State: StateOpen, Message: out})
			}
			if wait > 0 && timer == nil {
				timer = clock.NewTimer(wait)
				timerC = timer.Chan()
			}

		case <-timerC:
			timer, timerC = nil, nil
			if msg, ok := co.Flush(clock.Now()); ok {
				c.emit(ctx, Event[T]{Kind: EventMessage, State: StateOpen, Message: msg})
			}
		}
	}
}

// -----------------------------------------------------------------------------

func readLoop(conn Conn, frames chan<- frame, stop <-chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		select {
		case frames <- frame{data: data, err: err}:
		case <-stop:
			return
		}
		if err != nil {
			return
		}
	}
}

// -----------------------------------------------------------------------------

// waitForRetry sleeps for the next backoff delay. It returns false when the
// client must stop, emitting the terminal event if attempts ran out.
func (c *Client[T]) waitForRetry(ctx context.Context, policy *BackoffPolicy) bool {
	delay, ok := policy.Next()
	if !ok {
		err := fmt.Errorf("stream %s: %w after %d attempts", c.opts.Name, helpers.ErrRetriesExhausted, policy.MaxAttempts)
		c.opts.Logger.Error("%v", err)
		c.transition(ctx, Event[T]{Kind: EventState, State: StateErrored, Err: err, Terminal: true})
		return false
	}

	c.opts.Logger.Info("Stream %s reconnecting in %v (attempt %d/%d)", c.opts.Name, delay, policy.Attempts(), policy.MaxAttempts)

	timer := c.opts.Clock.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

// -----------------------------------------------------------------------------

func (c *Client[T]) transition(ctx context.Context, ev Event[T]) {
	c.mu.Lock()
	c.state = ev.State
	if ev.Err != nil || ev.State == StateOpen {
		c.lastErr = ev.Err
	}
	c.mu.Unlock()

	c.emit(ctx, ev)
}

// -----------------------------------------------------------------------------

func (c *Client[T]) emit(ctx context.Context, ev Event[T]) {
	if ctx.Err() != nil {
		return
	}
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}
