package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"market-dashboard/src/display"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"

	"github.com/gin-gonic/gin"
)

// Envelope types pushed over the websocket.
const (
	EnvelopeMarkets = "markets"
	EnvelopeCandles = "candles"
	EnvelopeError   = "error"
)

const broadcastQueue = 256

var _ interfaces.IDataExchanger = (*DashboardServer)(nil)

var errNotReady = errors.New("dashboard is still starting")

type clientReply struct {
	client   *Client
	envelope *models.MEnvelope
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// -----------------------------------------------------------------------------
// DashboardServer
// -----------------------------------------------------------------------------

// DashboardServer serves the reconciled views over REST and pushes every
// published view to websocket clients.
type DashboardServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine
	http   *http.Server

	Markets interfaces.ITickerController
	Candles interfaces.ISymbolSelector
	Layouts interfaces.ILayoutStore
	News    interfaces.INewsSource

	oscillator *display.OscillatorTracker

	// WebSocket clients, owned by the hub goroutine
	clients     map[*Client]struct{}
	broadcast   chan *models.MEnvelope
	overflow    []*models.MEnvelope
	overflowMu  sync.Mutex
	wake        chan struct{}
	register    chan *Client
	unregister  chan *Client
	replies     chan clientReply
	quit        chan struct{}
	stopOnce    sync.Once
	connections atomic.Int64

	// Local cache
	latestMarkets *models.MEnvelope
	latestCandles *models.MEnvelope
	prevMarkets   []models.MMarketRecord
	stateMutex    sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewDashboardServer(cfg *models.MConfig, logger *logger.Logger, layouts interfaces.ILayoutStore, news interfaces.INewsSource) *DashboardServer {
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &DashboardServer{
		Config:     cfg,
		Logger:     logger,
		engine:     gin.Default(),
		Layouts:    layouts,
		News:       news,
		oscillator: display.NewOscillatorTracker(),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan *models.MEnvelope, broadcastQueue),
		wake:       make(chan struct{}, 1),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		replies:    make(chan clientReply, 16),
		quit:       make(chan struct{}),
	}

	s.engine.Use(corsMiddleware)
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------

// AttachControllers wires the reconcilers. They are created after the server
// because they publish into it.
func (s *DashboardServer) AttachControllers(markets interfaces.ITickerController, candles interfaces.ISymbolSelector) {
	s.Markets = markets
	s.Candles = candles
}

// -----------------------------------------------------------------------------

func corsMiddleware(c *gin.Context) {
	origin := c.Request.Header.Get("Origin")
	if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
	}
	c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	c.Next()
}

// -----------------------------------------------------------------------------

// Handler exposes the router, mainly for httptest.
func (s *DashboardServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// RunHub runs the websocket hub until Stop. Start calls it; tests that only
// use Handler may call it themselves.
func (s *DashboardServer) RunHub() {
	s.handleWebsockets()
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.stateMutex.Lock()
	s.http = httpServer
	s.stateMutex.Unlock()

	go s.RunHub()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.quit)
		s.stateMutex.RLock()
		httpServer := s.http
		s.stateMutex.RUnlock()
		if httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = httpServer.Shutdown(ctx)
		}
		s.Logger.Info("Server stopped")
	})
	return err
}

// -----------------------------------------------------------------------------
// View publishing
// -----------------------------------------------------------------------------

func (s *DashboardServer) PublishMarkets(view models.MMarketView) {
	env := &models.MEnvelope{Type: EnvelopeMarkets, Timestamp: view.UpdatedAt, Markets: &view}

	s.stateMutex.Lock()
	if s.latestMarkets != nil {
		s.prevMarkets = s.latestMarkets.Markets.Records
	}
	s.latestMarkets = env
	s.stateMutex.Unlock()

	s.oscillator.Observe(view.Records)
	s.enqueue(env)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) PublishCandles(view models.MCandleView) {
	env := &models.MEnvelope{Type: EnvelopeCandles, Timestamp: view.UpdatedAt, Candles: &view}

	s.stateMutex.Lock()
	s.latestCandles = env
	s.stateMutex.Unlock()

	s.enqueue(env)
}

// -----------------------------------------------------------------------------

// enqueue never blocks a reconciler. When the queue is full the envelope is
// held in a latest-per-type slot; while any slot is held every new envelope
// goes there too, so the hub never sends an older view after a newer one.
func (s *DashboardServer) enqueue(env *models.MEnvelope) {
	s.overflowMu.Lock()
	defer s.overflowMu.Unlock()

	if len(s.overflow) == 0 {
		select {
		case s.broadcast <- env:
			return
		default:
			s.Logger.Warning("Broadcast queue full, holding latest %s update", env.Type)
		}
	}

	for i, held := range s.overflow {
		if held.Type == env.Type {
			s.overflow[i] = env
			return
		}
	}
	s.overflow = append(s.overflow, env)

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

// takeOverflow empties the held slots. The hub calls it only after draining
// the queue, which cannot refill while slots are held.
func (s *DashboardServer) takeOverflow() []*models.MEnvelope {
	s.overflowMu.Lock()
	defer s.overflowMu.Unlock()

	held := s.overflow
	s.overflow = nil
	return held
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) initialEnvelopes() []*models.MEnvelope {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	var out []*models.MEnvelope
	if s.latestMarkets != nil {
		out = append(out, s.latestMarkets)
	}
	if s.latestCandles != nil {
		out = append(out, s.latestCandles)
	}
	return out
}
