package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"threeStopJournal/internal/adapters/logger" // Import the logger package for LogLevel
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	// Calculation
	StopBuffer           decimal.Decimal  // Fraction below the entry-day low for Stop3 (e.g., 0.005)
	DefaultPortfolioSize *decimal.Decimal // Applied at trade creation when none supplied

	// Storage
	StoreDriver string
	DBPath      string
	DatabaseURL string

	// Market data
	MarketDataEnabled        bool
	PolygonAPIKey            string
	PolygonBaseURL           string
	PolygonRequestsPerMinute int
	MarketDataTimeout        time.Duration
	EntryLookbackDays        int
	CurrentLookbackDays      int

	// Crypto tickers (Binance futures)
	BinanceEnabled      bool
	BinanceAPIKey       string
	BinanceSecretKey    string
	CryptoQuoteSuffixes []string

	// Cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PriceCacheTTL time.Duration

	// Background refresh
	EnableBackgroundRefresh bool
	RefreshInterval         time.Duration
	RefreshWorkers          int

	// Observability
	MetricsAddr    string
	TracingEnabled bool
	LogLevel       logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file), layered over
// the YAML file named by CONFIG_FILE when set.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()
	return Load(os.Getenv("CONFIG_FILE"))
}

// Load builds the configuration with values from path (if non-empty) as defaults
// that environment variables override.
func Load(path string) (*Config, error) {
	src := source{file: map[string]string{}}
	if path != "" {
		file, err := readYAML(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Calculation
	cfg.StopBuffer, err = src.getDecimal("STOP3_BUFFER_PCT", decimal.RequireFromString("0.005"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP3_BUFFER_PCT: %v", err))
	} else if cfg.StopBuffer.IsNegative() || cfg.StopBuffer.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, "STOP3_BUFFER_PCT must be in [0, 1)")
	}

	portfolio, err := src.getDecimal("DEFAULT_PORTFOLIO_SIZE", decimal.Zero)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_PORTFOLIO_SIZE: %v", err))
	} else if portfolio.IsNegative() {
		errs = append(errs, "DEFAULT_PORTFOLIO_SIZE cannot be negative")
	} else if portfolio.IsPositive() {
		cfg.DefaultPortfolioSize = &portfolio
	}

	// Storage
	cfg.StoreDriver = strings.ToLower(src.get("STORE_DRIVER", DriverSQLite))
	cfg.DBPath = src.get("DB_PATH", "./data/journal.db")
	cfg.DatabaseURL = src.get("DATABASE_URL", "")
	switch cfg.StoreDriver {
	case DriverSQLite:
		if cfg.DBPath == "" {
			errs = append(errs, "DB_PATH must be set")
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL must be set when STORE_DRIVER=postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER must be '%s' or '%s'", DriverSQLite, DriverPostgres))
	}

	// Market data
	cfg.MarketDataEnabled = src.getBool("MARKET_DATA_ENABLED", true)
	cfg.PolygonAPIKey = src.get("POLYGON_API_KEY", "")
	cfg.PolygonBaseURL = src.get("POLYGON_BASE_URL", "https://api.polygon.io")
	if cfg.MarketDataEnabled && cfg.PolygonAPIKey == "" {
		errs = append(errs, "POLYGON_API_KEY must be set (or MARKET_DATA_ENABLED=false)")
	}

	cfg.PolygonRequestsPerMinute, err = src.getIntRequired("POLYGON_REQUESTS_PER_MINUTE", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid POLYGON_REQUESTS_PER_MINUTE: %v", err))
	} else if cfg.PolygonRequestsPerMinute <= 0 {
		errs = append(errs, "POLYGON_REQUESTS_PER_MINUTE must be positive")
	}

	timeoutSeconds := src.getInt("MARKET_DATA_TIMEOUT_SECONDS", 30)
	if timeoutSeconds <= 0 {
		errs = append(errs, "MARKET_DATA_TIMEOUT_SECONDS must be positive")
	}
	cfg.MarketDataTimeout = time.Duration(timeoutSeconds) * time.Second

	cfg.EntryLookbackDays, err = src.getIntRequired("ENTRY_LOOKBACK_DAYS", 100)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ENTRY_LOOKBACK_DAYS: %v", err))
	} else if cfg.EntryLookbackDays <= 0 {
		errs = append(errs, "ENTRY_LOOKBACK_DAYS must be positive")
	}

	cfg.CurrentLookbackDays, err = src.getIntRequired("CURRENT_LOOKBACK_DAYS", 120)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CURRENT_LOOKBACK_DAYS: %v", err))
	} else if cfg.CurrentLookbackDays <= 0 {
		errs = append(errs, "CURRENT_LOOKBACK_DAYS must be positive")
	}

	// Crypto
	cfg.BinanceEnabled = src.getBool("BINANCE_ENABLED", false)
	cfg.BinanceAPIKey = src.get("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = src.get("BINANCE_API_SECRET", "")
	cfg.CryptoQuoteSuffixes = splitList(src.get("CRYPTO_QUOTE_SUFFIXES", "USDT,BUSD,USDC"))
	if cfg.BinanceEnabled && len(cfg.CryptoQuoteSuffixes) == 0 {
		errs = append(errs, "CRYPTO_QUOTE_SUFFIXES must list at least one suffix when BINANCE_ENABLED=true")
	}

	// Cache
	cfg.RedisAddr = src.get("REDIS_ADDR", "")
	cfg.RedisPassword = src.get("REDIS_PASSWORD", "")
	cfg.RedisDB = src.getInt("REDIS_DB", 0)
	if cfg.RedisDB < 0 {
		errs = append(errs, "REDIS_DB cannot be negative")
	}
	ttlSeconds := src.getInt("PRICE_CACHE_TTL_SECONDS", 60)
	if ttlSeconds <= 0 {
		errs = append(errs, "PRICE_CACHE_TTL_SECONDS must be positive")
	}
	cfg.PriceCacheTTL = time.Duration(ttlSeconds) * time.Second

	// Background refresh
	cfg.EnableBackgroundRefresh = src.getBool("ENABLE_BACKGROUND_REFRESH", false)
	intervalMinutes := src.getInt("REFRESH_INTERVAL_MINUTES", 60)
	if intervalMinutes <= 0 {
		errs = append(errs, "REFRESH_INTERVAL_MINUTES must be positive")
	}
	cfg.RefreshInterval = time.Duration(intervalMinutes) * time.Minute

	cfg.RefreshWorkers, err = src.getIntRequired("REFRESH_WORKERS", 4)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REFRESH_WORKERS: %v", err))
	} else if cfg.RefreshWorkers <= 0 {
		errs = append(errs, "REFRESH_WORKERS must be positive")
	}

	// Observability
	cfg.MetricsAddr = src.get("METRICS_ADDR", ":9090")
	cfg.TracingEnabled = src.getBool("TRACING_ENABLED", false)
	cfg.LogLevel = logger.ParseLevel(src.get("LOG_LEVEL", "INFO"))

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// readYAML reads a flat mapping of configuration keys to scalar values.
func readYAML(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	out := make(map[string]string, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
			continue
		case []interface{}:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			out[strings.ToUpper(k)] = strings.Join(parts, ",")
		default:
			out[strings.ToUpper(k)] = fmt.Sprint(val)
		}
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// --- Value Helpers ---

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[key]
}

func (s source) get(key, defaultValue string) string {
	value := s.lookup(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func (s source) getInt(key string, defaultValue int) int {
	valueStr := s.lookup(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s source) getIntRequired(key string, defaultValue int) (int, error) {
	valueStr := s.lookup(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if the key is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func (s source) getDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	valueStr := s.lookup(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := decimal.NewFromString(strings.TrimSpace(valueStr))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func (s source) getBool(key string, defaultValue bool) bool {
	valueStr := s.lookup(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
