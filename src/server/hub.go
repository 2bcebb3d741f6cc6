package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"market-dashboard/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Commands a browser may send over the websocket.
const (
	CommandSelect  = "select"
	CommandRefresh = "refresh"
	CommandRestart = "restart"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *DashboardServer) handleWebsockets() {
	for {
		select {
		case <-s.quit:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.connections.Store(int64(len(s.clients)))
			// Catch the new client up with the latest views
			for _, env := range s.initialEnvelopes() {
				client.send <- env
			}

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.connections.Store(int64(len(s.clients)))
			}

		case r := <-s.replies:
			if _, ok := s.clients[r.client]; ok {
				select {
				case r.client.send <- r.envelope:
				default:
				}
			}

		case message := <-s.broadcast:
			s.deliver(message)

		case <-s.wake:
			s.flushOverflow()
		}
	}
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) deliver(message *models.MEnvelope) {
	for client := range s.clients {
		select {
		case client.send <- message:
		default:
			// Client too slow, disconnect to prevent Hub blocking
			s.Logger.Warning("Dropping slow client %s", client.id)
			delete(s.clients, client)
			close(client.send)
		}
	}
	s.connections.Store(int64(len(s.clients)))
}

// -----------------------------------------------------------------------------

// flushOverflow sends what is still queued, then the held latest views.
func (s *DashboardServer) flushOverflow() {
	for drained := false; !drained; {
		select {
		case message := <-s.broadcast:
			s.deliver(message)
		default:
			drained = true
		}
	}

	for _, message := range s.takeOverflow() {
		s.deliver(message)
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warning("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MEnvelope, 256),
	}

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}
	s.Logger.Debug("Client %s connected from %s", client.id, c.ClientIP())

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage runs one client command. A frame that is not a command
// disconnects the client; a command that fails is answered with an error
// envelope.
func (s *DashboardServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Warning("Failed to parse client command: %v, disconnecting client %s", err, client.id)
		client.conn.Close()
		return
	}

	var err error
	switch strings.ToLower(cmd.Command) {
	case CommandSelect:
		if s.Candles == nil {
			err = errNotReady
			break
		}
		err = s.Candles.SelectSymbol(cmd.Symbol)
	case CommandRefresh:
		if s.Markets == nil {
			err = errNotReady
			break
		}
		s.Markets.RefreshSnapshot()
	case CommandRestart:
		if s.Markets == nil {
			err = errNotReady
			break
		}
		s.Markets.RestartStream()
	default:
		s.Logger.Debug("Ignoring unknown command %q from %s", cmd.Command, client.id)
		return
	}

	if err != nil {
		s.reply(client, &models.MEnvelope{Type: EnvelopeError, Timestamp: nowMillis(), Error: err.Error()})
	}
}

// -----------------------------------------------------------------------------

// reply goes through the hub, which is the only writer allowed to close
// client.send.
func (s *DashboardServer) reply(client *Client, env *models.MEnvelope) {
	select {
	case s.replies <- clientReply{client: client, envelope: env}:
	case <-s.quit:
	}
}
