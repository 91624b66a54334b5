package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/metrics"
	"threeStopJournal/internal/ports"
)

const shutdownTimeout = 5 * time.Second

// DaemonOptions configure Run.
type DaemonOptions struct {
	RefreshInterval   time.Duration
	BackgroundRefresh bool
	MetricsServer     *metrics.Server // nil disables /metrics
}

// Run keeps the journal's market data fresh until ctx is cancelled or the process
// receives SIGINT/SIGTERM.
func (s *JournalService) Run(ctx context.Context, opts DaemonOptions) error {
	s.logger.Info(ctx, "Starting journal daemon...")

	// Create a context that can be canceled by signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	// Sync initial state so a broken store fails fast.
	open, err := s.repo.List(ctx, ports.TradeFilter{Status: domain.StatusOpen})
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load open trades")
		return fmt.Errorf("failed to load open trades: %w", err)
	}
	partial, err := s.repo.List(ctx, ports.TradeFilter{Status: domain.StatusPartial})
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load partial trades")
		return fmt.Errorf("failed to load partial trades: %w", err)
	}
	s.logger.Info(ctx, "Initial state synchronized", map[string]interface{}{
		"openTrades":    len(open),
		"partialTrades": len(partial),
		"marketData":    s.market.Enabled(),
	})

	serverErr := make(chan error, 1)
	if opts.MetricsServer != nil {
		opts.MetricsServer.Start(func(err error) { serverErr <- err })
		s.logger.Info(ctx, "Metrics server started", map[string]interface{}{"addr": opts.MetricsServer.Addr()})
	}

	refreshDone := make(chan struct{})
	if opts.BackgroundRefresh && s.market.Enabled() {
		go func() {
			defer close(refreshDone)
			s.RunBackgroundRefresh(ctx, opts.RefreshInterval)
		}()
	} else {
		close(refreshDone)
		if opts.BackgroundRefresh {
			s.logger.Warn(ctx, "Background refresh requested but no market data provider is configured")
		}
	}

	// --- Main Loop ---
	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "Main context cancelled, initiating shutdown...")
	case err := <-serverErr:
		s.logger.Error(ctx, err, "Metrics server stopped")
		runErr = fmt.Errorf("metrics server: %w", err)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if opts.MetricsServer != nil {
		if err := opts.MetricsServer.Stop(shutdownCtx); err != nil {
			s.logger.Warn(ctx, "Metrics server did not shut down cleanly", map[string]interface{}{"error": err.Error()})
		}
	}
	select {
	case <-refreshDone:
		s.logger.Info(ctx, "Background refresh shut down gracefully")
	case <-shutdownCtx.Done():
		s.logger.Warn(ctx, "Timeout waiting for background refresh to shut down")
	}

	s.logger.Info(ctx, "Journal daemon stopped.")
	return runErr
}
