package binance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"market-dashboard/src/config"
	"market-dashboard/src/logger"
	"market-dashboard/src/stream"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed chan struct{}
	once   sync.Once
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	if len(c.frames) > 0 {
		f := c.frames[0]
		c.frames = c.frames[1:]
		c.mu.Unlock()
		return 1, f, nil
	}
	c.mu.Unlock()
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *scriptedConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type recordingDialer struct {
	mu   sync.Mutex
	urls []string
	conn *scriptedConn
}

func (d *recordingDialer) Dial(ctx context.Context, url string) (stream.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	return d.conn, nil
}

func newTestFactory(conn *scriptedConn) (*StreamFactory, *recordingDialer) {
	cfg := config.Defaults()
	cfg.Stream.KlineThrottleMs = 0
	cfg.Stream.TickerThrottleMs = 0

	d := &recordingDialer{conn: conn}
	f := NewStreamFactory(cfg, logger.NewLogger(nil, "StreamFactoryTest"))
	f.Dialer = d
	f.Clock = clockwork.NewFakeClock()
	return f, d
}

func TestStreamURLs(t *testing.T) {
	f, _ := newTestFactory(nil)
	assert.Equal(t, "wss://stream.binance.com:9443/ws/!ticker@arr", f.TickerURL())
	assert.Equal(t, "wss://stream.binance.com:9443/ws/ethusdt@kline_1h", f.KlineURL("ETHUSDT", "1h"))
}

func TestSubscribeKlinesDecodesFrames(t *testing.T) {
	conn := &scriptedConn{frames: [][]byte{[]byte("noise"), []byte(klineFrame)}, closed: make(chan struct{})}
	f, d := newTestFactory(conn)

	ctx, cancel := context.WithCancel(context.Background())
	events := f.SubscribeKlines(ctx, "BTCUSDT", "1h")

	var got []stream.Event[float64]
	timeout := time.After(5 * time.Second)
	for len(got) == 0 {
		select {
		case ev := <-events:
			if ev.Kind == stream.EventMessage {
				got = append(got, stream.Event[float64]{Message: ev.Message.Close})
			}
		case <-timeout:
			t.Fatal("no kline delivered")
		}
	}
	assert.Equal(t, 40100.5, got[0].Message)

	cancel()
	for range events {
	}
	assert.Equal(t, []string{"wss://stream.binance.com:9443/ws/btcusdt@kline_1h"}, d.urls)
}

func TestSubscribeTickerDecodesFrames(t *testing.T) {
	conn := &scriptedConn{frames: [][]byte{[]byte(tickerFrame)}, closed: make(chan struct{})}
	f, _ := newTestFactory(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := f.SubscribeTicker(ctx)

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind != stream.EventMessage {
				continue
			}
			require.Len(t, ev.Message, 2)
			assert.Equal(t, "ETHUSDT", ev.Message[1].Symbol)
			return
		case <-timeout:
			t.Fatal("no ticker batch delivered")
		}
	}
}
