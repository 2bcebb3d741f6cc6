package interfaces

import (
	"context"
	"sync"

	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// IMarketDataSource is the exchange's request/response side.
// -----------------------------------------------------------------------------

type IMarketDataSource interface {

	// FetchSnapshot returns the full 24h ticker universe.
	FetchSnapshot(ctx context.Context) ([]models.MRawMarketEntry, error)

	// FetchKlines returns up to limit historical bars, oldest first.
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]models.MCandle, error)
}

// -----------------------------------------------------------------------------
// ISnapshotFetcher emits snapshot lifecycle events (loading, result, error).
// -----------------------------------------------------------------------------

type ISnapshotFetcher interface {

	// Start begins fetching. Cancelling ctx stops the fetcher and it calls
	// wg.Done once fully stopped.
	Start(ctx context.Context, outputChan chan<- models.MSnapshotEvent, wg *sync.WaitGroup) error

	// Refresh asks for an out-of-schedule fetch.
	Refresh()

	// Stop terminates the fetch loop.
	Stop() error
}

// -----------------------------------------------------------------------------
// INewsSource looks up recent headlines for a symbol.
// -----------------------------------------------------------------------------

type INewsSource interface {
	FetchNews(ctx context.Context, symbol string) ([]models.MNewsArticle, error)
}
