package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"market-dashboard/src/config"
	datasource "market-dashboard/src/data_source"
	"market-dashboard/src/grpc_control"
	"market-dashboard/src/logger"
	"market-dashboard/src/reconciler"
	"market-dashboard/src/server"

	"google.golang.org/grpc"
)

// -----------------------------------------------------------------------------

// run wires every component, blocks until SIGINT/SIGTERM and shuts down.
func run(configPath string) error {
	conf, err := config.NewConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := conf.MConfig
	appLogger := logger.NewLogger(cfg, cfg.Name)

	layouts, err := setupStorage(cfg, appLogger)
	if err != nil {
		return err
	}
	defer layouts.Close()

	netMgr := setupNetwork(cfg)
	rest, streams, newsSource := setupSources(cfg, netMgr)

	// The server is the publisher, so it exists before the reconcilers.
	srv := server.NewDashboardServer(cfg, logger.NewLogger(cfg, "DashboardServer"), layouts, newsSource)

	fetcher := datasource.NewSnapshotFetcher(cfg, rest, logger.NewLogger(cfg, "SnapshotFetcher"))
	markets := reconciler.NewMarketReconciler(cfg, fetcher, streams, srv, logger.NewLogger(cfg, "MarketReconciler"))
	candles := reconciler.NewTimeSeriesReconciler(cfg, rest, streams, srv, logger.NewLogger(cfg, "TimeSeriesReconciler"))
	srv.AttachControllers(markets, candles)

	grpcServer, err := startServers(srv, grpc_control.NewControlService(markets, candles, logger.NewLogger(cfg, "ControlService")), conf, appLogger)
	if err != nil {
		srv.Stop()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	if err := markets.Start(ctx, &wg); err != nil {
		appLogger.Error("Failed to start market reconciler: %v", err)
		return err
	}
	if err := candles.Start(ctx, &wg); err != nil {
		appLogger.Error("Failed to start time series reconciler: %v", err)
		return err
	}
	appLogger.Info("Dashboard running (symbol %s, interval %s)", cfg.Exchange.DefaultSymbol, cfg.Exchange.KlineInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	wg.Wait()

	grpcServer.GracefulStop()
	if err := srv.Stop(); err != nil {
		appLogger.Warning("HTTP shutdown: %v", err)
	}
	appLogger.Info("Shutdown complete.")
	return nil
}

// -----------------------------------------------------------------------------

// startServers launches the HTTP/WebSocket server and the gRPC control server
func startServers(srv *server.DashboardServer, control *grpc_control.ControlService, conf *config.Config, appLogger *logger.Logger) (*grpc.Server, error) {
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	port := conf.GrpcPort
	if port == 0 {
		port = 50051
	}
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", conf.GrpcHost, port))
	if err != nil {
		appLogger.Critical("failed to listen for gRPC: %v", err)
		return nil, err
	}

	grpcServer, errs := grpc_control.Serve(lis, control, appLogger)
	go func() {
		if err := <-errs; err != nil {
			appLogger.Critical("%v", err)
		}
	}()
	return grpcServer, nil
}
