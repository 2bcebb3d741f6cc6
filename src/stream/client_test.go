package stream

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"market-dashboard/src/helpers"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// In-memory transport
// -----------------------------------------------------------------------------

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	block  bool

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn(block bool, frames ...string) *fakeConn {
	c := &fakeConn{block: block, closed: make(chan struct{})}
	for _, f := range frames {
		c.frames = append(c.frames, []byte(f))
	}
	return c
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	if len(c.frames) > 0 {
		f := c.frames[0]
		c.frames = c.frames[1:]
		c.mu.Unlock()
		return 1, f, nil
	}
	c.mu.Unlock()

	if c.block {
		<-c.closed
		return 0, nil, errors.New("use of closed connection")
	}
	return 0, nil, io.EOF
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeDialer hands out scripted connections; a nil entry or an empty script
// fails the dial.
type fakeDialer struct {
	mu     sync.Mutex
	script []*fakeConn
	dials  int
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if len(d.script) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.script[0]
	d.script = d.script[1:]
	if c == nil {
		return nil, errors.New("connection refused")
	}
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// -----------------------------------------------------------------------------

func decodeInt(b []byte) (int, error) {
	return strconv.Atoi(string(b))
}

func newTestClient(d Dialer, clock clockwork.Clock, policy *BackoffPolicy, mode ThrottleMode, throttle time.Duration) *Client[int] {
	return NewClient(Options[int]{
		Name:     "test",
		URL:      "ws://test",
		Dialer:   d,
		Decode:   decodeInt,
		Policy:   policy,
		Mode:     mode,
		Throttle: throttle,
		Clock:    clock,
	})
}

// blockUntil waits for n sleepers on clock, giving up when ctx ends.
func blockUntil(ctx context.Context, clock clockwork.FakeClock, n int) error {
	done := make(chan struct{})
	go func() {
		clock.BlockUntil(n)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// advanceWhileWaiting fires every timer the client arms until ctx ends.
func advanceWhileWaiting(ctx context.Context, clock clockwork.FakeClock) {
	go func() {
		for {
			if err := blockUntil(ctx, clock, 1); err != nil {
				return
			}
			clock.Advance(time.Minute)
		}
	}()
}

func collect[T any](t *testing.T, events <-chan Event[T], until func(Event[T]) bool) []Event[T] {
	t.Helper()
	timeout := time.After(5 * time.Second)
	var out []Event[T]
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
			if until != nil && until(ev) {
				return out
			}
		case <-timeout:
			t.Fatalf("timed out after %d events", len(out))
			return out
		}
	}
}

func messages[T any](events []Event[T]) []T {
	var out []T
	for _, ev := range events {
		if ev.Kind == EventMessage {
			out = append(out, ev.Message)
		}
	}
	return out
}

func states[T any](events []Event[T]) []State {
	var out []State
	for _, ev := range events {
		if ev.Kind == EventState {
			out = append(out, ev.State)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

func TestClientGivesUpAfterMaxAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	dialer := &fakeDialer{}
	c := newTestClient(dialer, clock, NewBackoffPolicy(time.Second, 30*time.Second, 5), ThrottleTrailing, 0)

	require.NoError(t, c.Start(ctx))
	advanceWhileWaiting(ctx, clock)

	events := collect(t, c.Events(), nil)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.True(t, last.Terminal)
	assert.Equal(t, StateErrored, last.State)
	assert.ErrorIs(t, last.Err, helpers.ErrRetriesExhausted)

	assert.Equal(t, 6, dialer.dialCount(), "initial connect plus five retries")
	assert.Equal(t, StateErrored, c.State())
	assert.ErrorIs(t, c.LastError(), helpers.ErrRetriesExhausted)

	for _, ev := range events[:len(events)-1] {
		assert.False(t, ev.Terminal)
		if ev.State == StateErrored {
			var se *helpers.StreamError
			assert.ErrorAs(t, ev.Err, &se)
		}
	}
}

func TestClientCoalescesBurstIntoLatest(t *testing.T) {
	clock := clockwork.NewFakeClock()
	conn := newFakeConn(false, "1", "2", "3", "4", "5", "6", "7", "8", "9", "10")
	dialer := &fakeDialer{script: []*fakeConn{conn}}
	c := newTestClient(dialer, clock, NewBackoffPolicy(time.Second, 30*time.Second, 5), ThrottleTrailing, 500*time.Millisecond)

	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	events := collect(t, c.Events(), func(ev Event[int]) bool { return ev.State == StateClosed })

	assert.Equal(t, []int{10}, messages(events))
	assert.Equal(t, []State{StateConnecting, StateOpen, StateClosed}, states(events))
}

func TestClientMinIntervalFirstMessageImmediate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	conn := newFakeConn(false, "1", "2", "3")
	dialer := &fakeDialer{script: []*fakeConn{conn}}
	c := newTestClient(dialer, clock, NewBackoffPolicy(time.Second, 30*time.Second, 5), ThrottleMinInterval, time.Second)

	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	events := collect(t, c.Events(), func(ev Event[int]) bool { return ev.State == StateClosed })
	assert.Equal(t, []int{1, 3}, messages(events))
}

func TestClientDropsUndecodableFrames(t *testing.T) {
	clock := clockwork.NewFakeClock()
	conn := newFakeConn(false, "garbage", "", "5")
	dialer := &fakeDialer{script: []*fakeConn{conn}}
	c := newTestClient(dialer, clock, NewBackoffPolicy(time.Second, 30*time.Second, 5), ThrottleTrailing, 0)

	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	events := collect(t, c.Events(), func(ev Event[int]) bool { return ev.State == StateClosed })
	assert.Equal(t, []int{5}, messages(events))
	for _, ev := range events {
		if ev.Err != nil {
			assert.False(t, helpers.IsDecodeError(ev.Err))
			assert.Equal(t, StateClosed, ev.State)
		}
	}
}

func TestClientHealthyConnectionResetsAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	dialer := &fakeDialer{script: []*fakeConn{
		newFakeConn(false, "1"),
		newFakeConn(false, "2"),
		newFakeConn(false, "3"),
		newFakeConn(false, "4"),
	}}
	c := newTestClient(dialer, clock, NewBackoffPolicy(time.Second, 30*time.Second, 2), ThrottleTrailing, 0)

	require.NoError(t, c.Start(ctx))
	advanceWhileWaiting(ctx, clock)

	events := collect(t, c.Events(), nil)

	assert.Equal(t, []int{1, 2, 3, 4}, messages(events))
	assert.Equal(t, 6, dialer.dialCount(), "four healthy connections, then two failed retries")
	assert.True(t, events[len(events)-1].Terminal)
}

func TestClientSilentConnectionsCountAsFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	dialer := &fakeDialer{script: []*fakeConn{
		newFakeConn(false),
		newFakeConn(false),
		newFakeConn(false),
		newFakeConn(false),
	}}
	c := newTestClient(dialer, clock, NewBackoffPolicy(time.Second, 30*time.Second, 2), ThrottleTrailing, 0)

	require.NoError(t, c.Start(ctx))
	advanceWhileWaiting(ctx, clock)

	events := collect(t, c.Events(), nil)
	assert.Equal(t, 3, dialer.dialCount())
	assert.True(t, events[len(events)-1].Terminal)
}

func TestClientCloseStopsEverything(t *testing.T) {
	clock := clockwork.NewFakeClock()
	conn := newFakeConn(true)
	dialer := &fakeDialer{script: []*fakeConn{conn}}
	c := newTestClient(dialer, clock, NewBackoffPolicy(time.Second, 30*time.Second, 5), ThrottleTrailing, 0)

	require.NoError(t, c.Start(context.Background()))
	collect(t, c.Events(), func(ev Event[int]) bool { return ev.State == StateOpen })

	c.Close()

	assert.True(t, conn.isClosed())
	_, ok := <-c.Events()
	assert.False(t, ok, "event channel closed after Close")
	assert.Error(t, c.Start(context.Background()), "a closed client cannot be restarted")
}
