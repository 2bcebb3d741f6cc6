package stream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	maxFrameSize     = 8 * 1024 * 1024 // full-universe ticker arrays run to a few MB
	controlWait      = 2 * time.Second
)

// -----------------------------------------------------------------------------

// Conn is the read side of one stream connection.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens connections. Tests substitute an in-memory implementation.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// -----------------------------------------------------------------------------

// WebsocketDialer dials real websocket endpoints with gorilla/websocket.
type WebsocketDialer struct {
	Dialer      *websocket.Dialer
	Header      http.Header
	ReadTimeout time.Duration
}

// -----------------------------------------------------------------------------

func NewWebsocketDialer(readTimeout time.Duration) *WebsocketDialer {
	return &WebsocketDialer{
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   64 * 1024,
		},
		ReadTimeout: readTimeout,
	}
}

// -----------------------------------------------------------------------------

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.Dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	conn.SetReadLimit(maxFrameSize)

	c := &wsConn{Conn: conn, readTimeout: d.ReadTimeout}
	conn.SetPingHandler(func(appData string) error {
		c.extendDeadline()
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	return c, nil
}

// -----------------------------------------------------------------------------

type wsConn struct {
	*websocket.Conn
	readTimeout time.Duration
}

func (c *wsConn) ReadMessage() (int, []byte, error) {
	c.extendDeadline()
	return c.Conn.ReadMessage()
}

func (c *wsConn) extendDeadline() {
	if c.readTimeout > 0 {
		c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
}
