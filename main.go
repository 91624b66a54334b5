package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"threeStopJournal/config"
	"threeStopJournal/internal/app"
	"threeStopJournal/internal/bootstrap"
	"threeStopJournal/internal/metrics"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Wire logger, tracing, store, market data and the journal service
	a, err := bootstrap.New(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize journal: %v", err)
	}
	appLogger := a.Logger
	defer func() {
		if err := a.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing journal components")
		}
	}()
	appLogger.Info(context.Background(), "Journal initialized", map[string]interface{}{
		"store":      cfg.StoreDriver,
		"marketData": a.Market.Enabled(),
	})

	// 3. Metrics endpoint
	var server *metrics.Server
	if cfg.MetricsAddr != "" {
		server = metrics.NewServer(cfg.MetricsAddr, a.Metrics)
	}

	// 4. Run until interrupted
	err = a.Journal.Run(context.Background(), app.DaemonOptions{
		RefreshInterval:   cfg.RefreshInterval,
		BackgroundRefresh: cfg.EnableBackgroundRefresh,
		MetricsServer:     server,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "Journal daemon exited with error")
		log.Fatalf("FATAL: Journal daemon exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
