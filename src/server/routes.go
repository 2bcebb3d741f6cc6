package server

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"market-dashboard/src/data_source/news"
	"market-dashboard/src/display"
	"market-dashboard/src/helpers"
	"market-dashboard/src/models"
	"market-dashboard/src/reconciler"
	"market-dashboard/src/storage"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *DashboardServer) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ws", s.handleWebSocket)

	api := s.engine.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/config", s.handleConfig)
		api.GET("/status", s.requireControllers, s.handleStatus)

		api.GET("/markets", s.requireControllers, s.handleMarkets)
		api.GET("/markets/:symbol/display", s.requireControllers, s.handleMarketDisplay)
		api.POST("/markets/refresh", s.requireControllers, s.handleRefresh)
		api.POST("/ticker/restart", s.requireControllers, s.handleRestart)
		api.GET("/oscillator", s.requireControllers, s.handleOscillator)

		api.GET("/candles", s.requireControllers, s.handleCandles)
		api.POST("/symbol", s.requireControllers, s.handleSelectSymbol)

		api.GET("/layout/:profile", s.handleGetLayout)
		api.PUT("/layout/:profile", s.handleSaveLayout)
		api.DELETE("/layout/:profile", s.handleResetLayout)

		api.GET("/news", s.handleNews)
	}
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) requireControllers(c *gin.Context) {
	if s.Markets == nil || s.Candles == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": errNotReady.Error()})
		return
	}
	c.Next()
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"name":        s.Config.Name,
		"connections": s.connections.Load(),
	})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"defaultSymbol": s.Config.Exchange.DefaultSymbol,
		"interval":      s.Config.Exchange.KlineInterval,
		"maxCandles":    s.Config.Exchange.MaxCandles,
		"pageSizes":     reconciler.PageSizes,
		"pageSize":      reconciler.DefaultPageSize,
		"gauge":         gin.H{"min": display.GaugeMin, "max": display.GaugeMax},
		"newsEnabled":   s.News != nil,
	})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ticker":      s.Markets.Status(),
		"klines":      s.Candles.Status(),
		"connections": s.connections.Load(),
	})
}

// -----------------------------------------------------------------------------
// Markets
// -----------------------------------------------------------------------------

func parseMarketQuery(c *gin.Context) (reconciler.MarketQuery, error) {
	q := reconciler.MarketQuery{
		Filter:   c.Query("q"),
		SortKey:  strings.ToLower(c.Query("sort")),
		Page:     1,
		PageSize: reconciler.DefaultPageSize,
	}

	switch q.SortKey {
	case "", reconciler.SortSymbol, reconciler.SortPrice, reconciler.SortChange, reconciler.SortVolume:
	default:
		return q, helpers.NewValidationError("unknown sort key " + strconv.Quote(q.SortKey))
	}

	if raw := c.Query("desc"); raw != "" {
		desc, err := strconv.ParseBool(raw)
		if err != nil {
			return q, helpers.NewValidationError("desc must be a boolean")
		}
		q.Desc = desc
	}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return q, helpers.NewValidationError("page must be an integer")
		}
		q.Page = page
	}

	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || !slices.Contains(reconciler.PageSizes, size) {
			return q, helpers.NewValidationError("unsupported page_size " + strconv.Quote(raw))
		}
		q.PageSize = size
	}

	return q, nil
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleMarkets(c *gin.Context) {
	q, err := parseMarketQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view := s.Markets.Latest()
	c.JSON(http.StatusOK, gin.H{
		"page":        reconciler.QueryMarkets(view.Records, q),
		"isConnected": view.IsConnected,
		"loading":     view.Loading,
		"error":       view.Error,
		"liveError":   view.LiveError,
		"updatedAt":   view.UpdatedAt,
	})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleMarketDisplay(c *gin.Context) {
	symbol := c.Param("symbol")
	rec, ok := display.FindRecord(s.Markets.Latest().Records, symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol " + strconv.Quote(symbol)})
		return
	}

	var previous *models.MMarketRecord
	s.stateMutex.RLock()
	if prev, found := display.FindRecord(s.prevMarkets, symbol); found {
		previous = &prev
	}
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, display.BuildDisplay(rec, previous))
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleRefresh(c *gin.Context) {
	s.Markets.RefreshSnapshot()
	c.JSON(http.StatusAccepted, gin.H{"status": "refreshing"})
}

func (s *DashboardServer) handleRestart(c *gin.Context) {
	s.Markets.RestartStream()
	c.JSON(http.StatusAccepted, gin.H{"status": "restarting"})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleOscillator(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		symbol = s.Candles.Symbol()
	}
	c.JSON(http.StatusOK, s.oscillator.Reading(symbol))
}

// -----------------------------------------------------------------------------
// Candles
// -----------------------------------------------------------------------------

func (s *DashboardServer) handleCandles(c *gin.Context) {
	c.JSON(http.StatusOK, s.Candles.Latest())
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleSelectSymbol(c *gin.Context) {
	var body struct {
		Symbol string `json:"symbol"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	if err := s.Candles.SelectSymbol(body.Symbol); err != nil {
		status := http.StatusServiceUnavailable
		if helpers.IsValidationError(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbol": s.Candles.Symbol()})
}

// -----------------------------------------------------------------------------
// Layouts
// -----------------------------------------------------------------------------

func (s *DashboardServer) handleGetLayout(c *gin.Context) {
	profile := c.Param("profile")
	if err := storage.ValidateProfile(profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	layout, found, err := s.Layouts.GetLayout(c.Request.Context(), profile)
	if err != nil {
		s.Logger.Error("Failed to load layout %s: %v", profile, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		layout = storage.DefaultLayout(profile)
	}
	c.JSON(http.StatusOK, layout)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleSaveLayout(c *gin.Context) {
	var layout models.MLayout
	if err := c.ShouldBindJSON(&layout); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	layout.Profile = c.Param("profile")
	layout.IsDefault = false
	layout.UpdatedAt = 0

	if err := storage.ValidateLayout(layout); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.Layouts.SaveLayout(c.Request.Context(), layout); err != nil {
		s.Logger.Error("Failed to save layout %s: %v", layout.Profile, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	saved, _, err := s.Layouts.GetLayout(c.Request.Context(), layout.Profile)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleResetLayout(c *gin.Context) {
	profile := c.Param("profile")
	if err := storage.ValidateProfile(profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.Layouts.DeleteLayout(c.Request.Context(), profile); err != nil {
		s.Logger.Error("Failed to reset layout %s: %v", profile, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, storage.DefaultLayout(profile))
}

// -----------------------------------------------------------------------------
// News
// -----------------------------------------------------------------------------

func (s *DashboardServer) handleNews(c *gin.Context) {
	if s.News == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": news.ErrDisabled.Error()})
		return
	}

	symbol := c.Query("symbol")
	if symbol == "" && s.Candles != nil {
		symbol = s.Candles.Symbol()
	}

	articles, err := s.News.FetchNews(c.Request.Context(), symbol)
	switch {
	case errors.Is(err, news.ErrDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case helpers.IsFetchError(err):
		s.Logger.Warning("News lookup for %s failed: %v", symbol, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   strings.ToUpper(symbol),
		"query":    news.BuildQuery(symbol),
		"articles": articles,
	})
}
