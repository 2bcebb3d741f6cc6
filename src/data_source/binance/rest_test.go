package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"market-dashboard/src/helpers"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"
	"market-dashboard/src/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *BinanceSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &models.MConfig{
		Network:  models.MNetworkConfig{RequestTimeout: 5},
		Exchange: models.MExchangeConfig{RestBaseURL: srv.URL + "/"},
	}
	log := logger.NewLogger(nil, "BinanceTest")
	return NewBinanceSource(cfg, network.NewAsyncNetworkManager(cfg, log), log)
}

func TestFetchSnapshot(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, tickerPath, r.URL.Path)
		w.Write([]byte(`[{"symbol":"BTCUSDT","priceChange":"10","priceChangePercent":"0.5","lastPrice":"40000.00","volume":"100","openTime":1,"closeTime":2,"firstId":3,"lastId":4,"count":2}]`))
	})

	entries, err := src.FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "BTCUSDT", entries[0].Symbol)
	assert.Equal(t, int64(2), entries[0].Count)
	assert.Equal(t, models.MMarketRecord{Symbol: "BTCUSDT", LastPrice: "40000.00", PriceChangePercent: "0.5", Volume: "100"}, entries[0].Record())
}

func TestFetchSnapshotErrorsAreFetchErrors(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	})

	_, err := src.FetchSnapshot(context.Background())
	require.Error(t, err)
	assert.True(t, helpers.IsFetchError(err))
}

func TestFetchKlines(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, klinesPath, r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		w.Write([]byte(`[
			[1700000000000,"10.0","12.0","9.5","11.0","100.0",1700003599999,"1100.0",10,"50","550","0"],
			[1700003600000,"11.0","11.5","10.0","10.5","80.5",1700007199999,"850.0",8,"40","420","0"]
		]`))
	})

	candles, err := src.FetchKlines(context.Background(), " ethusdt ", "1h", 2)
	require.NoError(t, err)
	assert.Equal(t, []models.MCandle{
		{OpenTime: 1700000000000, Open: 10, High: 12, Low: 9.5, Close: 11, Volume: 100},
		{OpenTime: 1700003600000, Open: 11, High: 11.5, Low: 10, Close: 10.5, Volume: 80.5},
	}, candles)
}

func TestFetchKlinesRequiresSymbol(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := src.FetchKlines(context.Background(), "", "1h", 10)
	assert.True(t, helpers.IsFetchError(err))
	assert.True(t, helpers.IsValidationError(err))
}

func TestParseKlineRowsRejectsShortRows(t *testing.T) {
	_, err := ParseKlineRows([]byte(`[[1,"1","1","1"]]`))
	assert.Error(t, err)

	_, err = ParseKlineRows([]byte(`[[1,"1","1","1","x","1"]]`))
	assert.Error(t, err)

	candles, err := ParseKlineRows([]byte(`[]`))
	assert.NoError(t, err)
	assert.Empty(t, candles)
}
