package interfaces

import "market-dashboard/src/models"

// -----------------------------------------------------------------------------
// Control surfaces exposed by the reconcilers to the HTTP and gRPC servers.
// -----------------------------------------------------------------------------

type ISymbolSelector interface {
	SelectSymbol(symbol string) error
	Symbol() string
	Status() models.MStreamStatus
	Latest() models.MCandleView
}

type ITickerController interface {
	RestartStream()
	RefreshSnapshot()
	Status() models.MStreamStatus
	Latest() models.MMarketView
}
