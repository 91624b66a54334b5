package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"threeStopJournal/config"
	"threeStopJournal/internal/adapters/logger"
	"threeStopJournal/internal/bootstrap"
	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/marketdata"
	"threeStopJournal/internal/metrics"
	"threeStopJournal/internal/money"
	"threeStopJournal/internal/utils"
)

var (
	ticker = flag.String("ticker", "AAPL", "Ticker or crypto pair to fetch")
	days   = flag.Int("days", 120, "Calendar days of history")
	outDir = flag.String("out", "data", "Directory for the CSV file")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	if !cfg.MarketDataEnabled {
		log.Fatalf("FATAL: MARKET_DATA_ENABLED must be true to fetch bars")
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Market Data Provider
	provider, closeProvider, err := bootstrap.NewProvider(cfg, metrics.NewMetrics(), appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize market data provider")
		log.Fatalf("FATAL: Failed to initialize market data provider: %v", err)
	}
	if closeProvider != nil {
		defer closeProvider()
	}
	market := marketdata.NewService(provider, appLogger, marketdata.Config{
		CurrentLookbackDays: cfg.CurrentLookbackDays,
		EntryLookbackDays:   cfg.EntryLookbackDays,
	})
	appLogger.Info(context.Background(), "Market data provider initialized", map[string]interface{}{"provider": provider.Name()})

	symbol := strings.ToUpper(*ticker)
	end := domain.Day(time.Now())
	start := end.AddDate(0, 0, -*days)

	fmt.Printf("Fetching daily bars for %s from %s to %s...\n", symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	bars, err := market.Bars(ctx, symbol, start, end)
	if err != nil {
		appLogger.Error(context.Background(), err, "Error fetching bars")
		log.Fatalf("Error fetching bars: %v", err)
	}
	appLogger.Info(context.Background(), "Fetched bars", map[string]interface{}{"count": len(bars)})

	set, err := market.Indicators().Current(ctx, bars)
	if err != nil {
		appLogger.Warn(context.Background(), "Could not compute indicators", map[string]interface{}{"error": err.Error()})
	} else {
		appLogger.Info(context.Background(), "Indicators at last bar", map[string]interface{}{
			"atr14": money.String(set.ATR14),
			"sma50": money.String(set.SMA50),
			"sma10": money.String(set.SMA10),
		})
	}

	filename := fmt.Sprintf("%s/%s_1d_%s_to_%s.csv", *outDir, symbol, start.Format("20060102"), end.Format("20060102"))
	err = utils.WriteBarsToCSV(bars, filename)
	if err != nil {
		appLogger.Error(context.Background(), err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(context.Background(), "Saved to", map[string]interface{}{"filename": filename})
}
