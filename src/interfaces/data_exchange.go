package interfaces

import "market-dashboard/src/models"

// -----------------------------------------------------------------------------
// IViewPublisher receives every view the reconcilers publish. Views are
// immutable once published.
// -----------------------------------------------------------------------------

type IViewPublisher interface {
	PublishMarkets(view models.MMarketView)
	PublishCandles(view models.MCandleView)
}

// -----------------------------------------------------------------------------
// IDataExchanger is a publisher that also serves the views to clients.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	IViewPublisher

	// Start the server
	Start() error

	// Stop the server gracefully
	Stop() error
}
