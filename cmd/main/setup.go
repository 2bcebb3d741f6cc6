package main

import (
	"market-dashboard/src/data_source/binance"
	"market-dashboard/src/data_source/news"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"
	"market-dashboard/src/network"
	"market-dashboard/src/storage"
)

// -----------------------------------------------------------------------------

// setupStorage opens the layout store selected by the config
func setupStorage(config *models.MConfig, appLogger *logger.Logger) (interfaces.ILayoutStore, error) {
	store, err := storage.NewLayoutStore(config, logger.NewLogger(config, "LayoutStore"))
	if err != nil {
		appLogger.Critical("Failed to init layout store: %v", err)
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate layout store: %v", err)
		return nil, err
	}
	return store, nil
}

// -----------------------------------------------------------------------------

// setupNetwork initializes the network manager
func setupNetwork(config *models.MConfig) interfaces.INetworkManager {
	return network.NewAsyncNetworkManager(config, logger.NewLogger(config, "NetworkManager"))
}

// -----------------------------------------------------------------------------

// setupSources builds the exchange REST source, its stream factory and the
// news lookup.
func setupSources(config *models.MConfig, netMgr interfaces.INetworkManager) (*binance.BinanceSource, *binance.StreamFactory, *news.NewsSource) {
	rest := binance.NewBinanceSource(config, netMgr, logger.NewLogger(config, "Binance"))
	streams := binance.NewStreamFactory(config, logger.NewLogger(config, "BinanceStreams"))
	newsSource := news.NewNewsSource(config, netMgr, logger.NewLogger(config, "News"))
	return rest, streams, newsSource
}
