package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"market-dashboard/src/helpers"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"
)

const (
	tickerPath = "/api/v3/ticker/24hr"
	klinesPath = "/api/v3/klines"
)

// -----------------------------------------------------------------------------

// BinanceSource reads the public spot REST API.
type BinanceSource struct {
	Config         *models.MConfig
	NetworkManager interfaces.INetworkManager
	Logger         *logger.Logger
}

// -----------------------------------------------------------------------------

func NewBinanceSource(cfg *models.MConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *BinanceSource {
	return &BinanceSource{
		Config:         cfg,
		NetworkManager: netMgr,
		Logger:         log,
	}
}

// -----------------------------------------------------------------------------

func (s *BinanceSource) Name() string {
	return "binance"
}

// -----------------------------------------------------------------------------

func (s *BinanceSource) url(path string) string {
	return strings.TrimRight(s.Config.Exchange.RestBaseURL, "/") + path
}

// -----------------------------------------------------------------------------

// FetchSnapshot returns the 24h ticker for every listed symbol.
func (s *BinanceSource) FetchSnapshot(ctx context.Context) ([]models.MRawMarketEntry, error) {
	body, err := s.NetworkManager.Get(ctx, s.url(tickerPath), nil)
	if err != nil {
		return nil, helpers.NewFetchError("fetch 24h ticker snapshot", err)
	}

	var entries []models.MRawMarketEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, helpers.NewFetchError("decode 24h ticker snapshot", err)
	}

	s.Logger.Debug("Fetched snapshot with %d symbols", len(entries))
	return entries, nil
}

// -----------------------------------------------------------------------------

// FetchKlines returns historical bars for symbol, oldest first.
func (s *BinanceSource) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]models.MCandle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, helpers.NewFetchError("fetch klines", helpers.NewValidationError("symbol is required"))
	}

	params := map[string]string{
		"symbol":   symbol,
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	}

	body, err := s.NetworkManager.Get(ctx, s.url(klinesPath), params)
	if err != nil {
		return nil, helpers.NewFetchError(fmt.Sprintf("fetch klines for %s", symbol), err)
	}

	candles, err := ParseKlineRows(body)
	if err != nil {
		return nil, helpers.NewFetchError(fmt.Sprintf("decode klines for %s", symbol), err)
	}

	s.Logger.Debug("Fetched %d %s klines for %s", len(candles), interval, symbol)
	return candles, nil
}

// -----------------------------------------------------------------------------

// ParseKlineRows decodes the array-of-arrays kline payload:
// [openTime, "open", "high", "low", "close", "volume", closeTime, ...].
func ParseKlineRows(body []byte) ([]models.MCandle, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}

	candles := make([]models.MCandle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("row %d: expected at least 6 fields, got %d", i, len(row))
		}

		var c models.MCandle
		if err := json.Unmarshal(row[0], &c.OpenTime); err != nil {
			return nil, fmt.Errorf("row %d: open time: %w", i, err)
		}

		fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		for j, dst := range fields {
			var raw string
			if err := json.Unmarshal(row[j+1], &raw); err != nil {
				return nil, fmt.Errorf("row %d field %d: %w", i, j+1, err)
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d field %d: %w", i, j+1, err)
			}
			*dst = v
		}
		candles = append(candles, c)
	}
	return candles, nil
}
