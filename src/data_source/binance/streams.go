package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"market-dashboard/src/logger"
	"market-dashboard/src/models"
	"market-dashboard/src/stream"

	"github.com/jonboulle/clockwork"
)

// -----------------------------------------------------------------------------

// StreamFactory builds one stream.Client per subscription. Clients are never
// shared; cancelling the subscription ctx closes the connection.
type StreamFactory struct {
	Config *models.MConfig
	Dialer stream.Dialer
	Clock  clockwork.Clock
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewStreamFactory(cfg *models.MConfig, log *logger.Logger) *StreamFactory {
	readTimeout := time.Duration(cfg.Stream.ReadTimeoutSeconds) * time.Second
	return &StreamFactory{
		Config: cfg,
		Dialer: stream.NewWebsocketDialer(readTimeout),
		Clock:  clockwork.NewRealClock(),
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (f *StreamFactory) TickerURL() string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(f.Config.Exchange.StreamBaseURL, "/"), f.Config.Exchange.TickerStream)
}

// -----------------------------------------------------------------------------

func (f *StreamFactory) KlineURL(symbol, interval string) string {
	return fmt.Sprintf("%s/%s@kline_%s", strings.TrimRight(f.Config.Exchange.StreamBaseURL, "/"), strings.ToLower(symbol), interval)
}

// -----------------------------------------------------------------------------

func (f *StreamFactory) policy() *stream.BackoffPolicy {
	st := f.Config.Stream
	return stream.NewBackoffPolicy(
		time.Duration(st.BaseDelayMs)*time.Millisecond,
		time.Duration(st.MaxDelayMs)*time.Millisecond,
		st.MaxAttempts,
	)
}

// -----------------------------------------------------------------------------

// SubscribeTicker streams the full-universe ticker, coalesced on a trailing window.
func (f *StreamFactory) SubscribeTicker(ctx context.Context) <-chan stream.Event[[]models.MMarketRecord] {
	client := stream.NewClient(stream.Options[[]models.MMarketRecord]{
		Name:     "ticker",
		URL:      f.TickerURL(),
		Dialer:   f.Dialer,
		Decode:   DecodeTickerBatch,
		Policy:   f.policy(),
		Mode:     stream.ThrottleTrailing,
		Throttle: time.Duration(f.Config.Stream.TickerThrottleMs) * time.Millisecond,
		Clock:    f.Clock,
		Logger:   f.Logger.Named("TickerStream"),
	})
	client.Start(ctx)
	return client.Events()
}

// -----------------------------------------------------------------------------

// SubscribeKlines streams live bars for one symbol at most once per interval.
func (f *StreamFactory) SubscribeKlines(ctx context.Context, symbol, interval string) <-chan stream.Event[models.MCandle] {
	client := stream.NewClient(stream.Options[models.MCandle]{
		Name:     fmt.Sprintf("kline %s %s", strings.ToUpper(symbol), interval),
		URL:      f.KlineURL(symbol, interval),
		Dialer:   f.Dialer,
		Decode:   DecodeKline,
		Policy:   f.policy(),
		Mode:     stream.ThrottleMinInterval,
		Throttle: time.Duration(f.Config.Stream.KlineThrottleMs) * time.Millisecond,
		Clock:    f.Clock,
		Logger:   f.Logger.Named("KlineStream").With("symbol", strings.ToUpper(symbol)),
	})
	client.Start(ctx)
	return client.Events()
}
