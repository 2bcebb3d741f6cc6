package grpc_control

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"market-dashboard/src/helpers"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type stubMarkets struct {
	restarts int
}

func (s *stubMarkets) RestartStream()   { s.restarts++ }
func (s *stubMarkets) RefreshSnapshot() {}
func (s *stubMarkets) Latest() models.MMarketView {
	return models.MMarketView{Records: make([]models.MMarketRecord, 3)}
}
func (s *stubMarkets) Status() models.MStreamStatus {
	return models.MStreamStatus{Name: "ticker", State: "open", Label: "● Live"}
}

type stubCandles struct {
	symbol string
}

func (s *stubCandles) SelectSymbol(symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	switch symbol {
	case "":
		return helpers.NewValidationError("symbol cannot be empty")
	case "DOWN":
		return errors.New("time series reconciler is not running")
	}
	s.symbol = symbol
	return nil
}
func (s *stubCandles) Symbol() string { return s.symbol }
func (s *stubCandles) Latest() models.MCandleView {
	return models.MCandleView{Symbol: s.symbol, Candles: make([]models.MCandle, 2), Loading: true}
}
func (s *stubCandles) Status() models.MStreamStatus {
	return models.MStreamStatus{Name: "klines", State: "connecting", Symbol: s.symbol}
}

func dial(t *testing.T, svc *ControlService) *ControlClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv, _ := Serve(lis, svc, svc.Logger)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewControlClient(conn)
}

func TestControlService(t *testing.T) {
	markets := &stubMarkets{}
	candles := &stubCandles{symbol: "BTCUSDT"}
	client := dial(t, NewControlService(markets, candles, logger.NewLogger(nil, "ControlTest")))
	ctx := context.Background()

	sym, err := client.SelectSymbol(ctx, "ethusdt")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", sym)

	_, err = client.SelectSymbol(ctx, "  ")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SelectSymbol(ctx, "down")
	assert.Equal(t, codes.Unavailable, status.Code(err))

	require.NoError(t, client.RestartTicker(ctx))
	assert.Equal(t, 1, markets.restarts)

	st, err := client.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", st["symbol"])
	assert.Equal(t, float64(3), st["markets"])
	assert.Equal(t, float64(2), st["candles"])
	assert.Equal(t, true, st["loading"])
	ticker, ok := st["ticker"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "open", ticker["state"])
}
