package interfaces

import (
	"context"

	"market-dashboard/src/models"
	"market-dashboard/src/stream"
)

// -----------------------------------------------------------------------------
// Stream subscriptions. Each call owns a fresh connection whose lifetime is
// bound to ctx; the returned channel closes once the connection is gone.
// -----------------------------------------------------------------------------

type ITickerStreamer interface {
	SubscribeTicker(ctx context.Context) <-chan stream.Event[[]models.MMarketRecord]
}

type IKlineStreamer interface {
	SubscribeKlines(ctx context.Context, symbol, interval string) <-chan stream.Event[models.MCandle]
}
