// Package bootstrap builds the journal's object graph from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"threeStopJournal/config"
	"threeStopJournal/internal/adapters/binanceclient"
	"threeStopJournal/internal/adapters/logger"
	"threeStopJournal/internal/adapters/polygon"
	"threeStopJournal/internal/adapters/postgres"
	"threeStopJournal/internal/adapters/redis"
	"threeStopJournal/internal/adapters/sqlite"
	"threeStopJournal/internal/app"
	"threeStopJournal/internal/marketdata"
	"threeStopJournal/internal/metrics"
	"threeStopJournal/internal/ports"
	"threeStopJournal/internal/tracing"
)

// Version is stamped into traces. Overridden at build time with -ldflags.
var Version = "dev"

// App holds every wired component. Close releases them in reverse order.
type App struct {
	Config  *config.Config
	Logger  *logger.StdLogger
	Metrics *metrics.Metrics
	Repo    ports.JournalRepository
	Market  *marketdata.Service
	Journal *app.JournalService

	closers []func() error
}

// New wires logging, tracing, metrics, storage, market data and the journal service.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil configuration: %w", ports.ErrConfigurationError)
	}
	ctx := context.Background()

	a := &App{
		Config:  cfg,
		Logger:  logger.NewStdLogger(cfg.LogLevel),
		Metrics: metrics.NewMetrics(),
	}
	a.Logger.Debug(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	if err := tracing.Init(cfg.TracingEnabled, Version); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.closers = append(a.closers, func() error { return tracing.Shutdown(context.Background()) })

	repo, err := OpenStore(cfg, a.Logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Repo = repo
	a.closers = append(a.closers, repo.Close)
	a.Logger.Debug(ctx, "Journal store initialized", map[string]interface{}{"driver": cfg.StoreDriver})

	provider, closeProvider, err := NewProvider(cfg, a.Metrics, a.Logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if closeProvider != nil {
		a.closers = append(a.closers, closeProvider)
	}
	a.Market = marketdata.NewService(provider, a.Logger, marketdata.Config{
		CurrentLookbackDays: cfg.CurrentLookbackDays,
		EntryLookbackDays:   cfg.EntryLookbackDays,
	})

	a.Journal, err = app.NewJournalService(a.Repo, a.Market, a.Metrics, a.Logger, app.Options{
		StopBuffer:           cfg.StopBuffer,
		DefaultPortfolioSize: cfg.DefaultPortfolioSize,
		RefreshWorkers:       cfg.RefreshWorkers,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize journal service: %w", err)
	}
	return a, nil
}

// Close releases every component, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenStore opens the repository selected by STORE_DRIVER.
func OpenStore(cfg *config.Config, log ports.Logger) (ports.JournalRepository, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite, "":
		return sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: log})
	case config.DriverPostgres:
		return postgres.NewStore(postgres.Config{DSN: cfg.DatabaseURL, Logger: log})
	default:
		return nil, fmt.Errorf("unknown store driver '%s': %w", cfg.StoreDriver, ports.ErrConfigurationError)
	}
}

// NewProvider builds the market data chain: Polygon for equities, Binance for crypto pairs
// when enabled, each instrumented, behind an optional Redis cache. A nil provider means
// market data is disabled. The returned close func is nil when nothing needs closing.
func NewProvider(cfg *config.Config, m *metrics.Metrics, log ports.Logger) (ports.MarketDataProvider, func() error, error) {
	ctx := context.Background()
	if !cfg.MarketDataEnabled {
		log.Info(ctx, "Market data disabled; snapshots will not be fetched")
		return nil, nil, nil
	}

	equities, err := polygon.New(polygon.Config{
		APIKey:            cfg.PolygonAPIKey,
		BaseURL:           cfg.PolygonBaseURL,
		RequestsPerMinute: cfg.PolygonRequestsPerMinute,
		Timeout:           cfg.MarketDataTimeout,
		MaxRetries:        3,
		Logger:            log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize Polygon client: %w", err)
	}
	var provider ports.MarketDataProvider = marketdata.NewObserved(equities, m, log)

	if cfg.BinanceEnabled {
		crypto, err := binanceclient.New(binanceclient.Config{
			APIKey:    cfg.BinanceAPIKey,
			SecretKey: cfg.BinanceSecretKey,
			Timeout:   cfg.MarketDataTimeout,
			Logger:    log,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Binance client: %w", err)
		}
		provider = marketdata.NewRouter(provider, marketdata.NewObserved(crypto, m, log), cfg.CryptoQuoteSuffixes)
	}

	if cfg.RedisAddr == "" {
		return provider, nil, nil
	}
	cache, err := redis.New(redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PriceTTL: cfg.PriceCacheTTL,
	}, provider, m, log)
	if err != nil {
		// The cache is an optimization; run uncached rather than refuse to start.
		log.Warn(ctx, "Market data cache unavailable, continuing without it", map[string]interface{}{"error": err.Error()})
		return provider, nil, nil
	}
	return cache, cache.Close, nil
}
