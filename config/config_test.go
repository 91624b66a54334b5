package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"threeStopJournal/internal/adapters/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"STOP3_BUFFER_PCT", "DEFAULT_PORTFOLIO_SIZE", "STORE_DRIVER", "DB_PATH", "DATABASE_URL",
	"POLYGON_API_KEY", "POLYGON_BASE_URL", "POLYGON_REQUESTS_PER_MINUTE", "MARKET_DATA_ENABLED",
	"MARKET_DATA_TIMEOUT_SECONDS", "ENTRY_LOOKBACK_DAYS", "CURRENT_LOOKBACK_DAYS",
	"BINANCE_ENABLED", "BINANCE_API_KEY", "BINANCE_API_SECRET", "CRYPTO_QUOTE_SUFFIXES",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "PRICE_CACHE_TTL_SECONDS",
	"ENABLE_BACKGROUND_REFRESH", "REFRESH_INTERVAL_MINUTES", "REFRESH_WORKERS",
	"METRICS_ADDR", "TRACING_ENABLED", "LOG_LEVEL", "CONFIG_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLYGON_API_KEY", "pk")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.005", cfg.StopBuffer.String())
	assert.Nil(t, cfg.DefaultPortfolioSize)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "./data/journal.db", cfg.DBPath)
	assert.True(t, cfg.MarketDataEnabled)
	assert.Equal(t, "https://api.polygon.io", cfg.PolygonBaseURL)
	assert.Equal(t, 5, cfg.PolygonRequestsPerMinute)
	assert.Equal(t, 30*time.Second, cfg.MarketDataTimeout)
	assert.Equal(t, 100, cfg.EntryLookbackDays)
	assert.Equal(t, 120, cfg.CurrentLookbackDays)
	assert.Equal(t, []string{"USDT", "BUSD", "USDC"}, cfg.CryptoQuoteSuffixes)
	assert.Equal(t, time.Minute, cfg.PriceCacheTTL)
	assert.Equal(t, time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 4, cfg.RefreshWorkers)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
}

func TestLoad_ValidationErrorsAreCollected(t *testing.T) {
	clearEnv(t)
	t.Setenv("STOP3_BUFFER_PCT", "1")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("REFRESH_WORKERS", "zero")
	t.Setenv("DEFAULT_PORTFOLIO_SIZE", "-5")

	_, err := Load("")
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "STOP3_BUFFER_PCT must be in [0, 1)")
	assert.Contains(t, msg, "DATABASE_URL must be set")
	assert.Contains(t, msg, "POLYGON_API_KEY must be set")
	assert.Contains(t, msg, "invalid REFRESH_WORKERS")
	assert.Contains(t, msg, "DEFAULT_PORTFOLIO_SIZE cannot be negative")
}

func TestLoad_MarketDataDisabledNeedsNoKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("MARKET_DATA_ENABLED", "false")
	t.Setenv("DEFAULT_PORTFOLIO_SIZE", "100000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.MarketDataEnabled)
	require.NotNil(t, cfg.DefaultPortfolioSize)
	assert.Equal(t, "100000", cfg.DefaultPortfolioSize.String())
}

func TestLoad_YAMLOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "journal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
polygon_api_key: from-file
STOP3_BUFFER_PCT: 0.01
REFRESH_WORKERS: 8
CRYPTO_QUOTE_SUFFIXES: [usdt, fdusd]
LOG_LEVEL: debug
`), 0o644))

	t.Setenv("REFRESH_WORKERS", "2") // env wins over file

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.PolygonAPIKey)
	assert.Equal(t, "0.01", cfg.StopBuffer.String())
	assert.Equal(t, 2, cfg.RefreshWorkers)
	assert.Equal(t, []string{"USDT", "FDUSD"}, cfg.CryptoQuoteSuffixes)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
