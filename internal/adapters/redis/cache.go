// Package redis caches market data responses in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/metrics"
	"threeStopJournal/internal/ports"

	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const (
	keyPrefix  = "journal:md"
	historyTTL = 24 * time.Hour
)

// Store is the subset of the go-redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	PriceTTL time.Duration // current prices and ranges that reach today
}

// Cache decorates a MarketDataProvider. Redis failures degrade to a pass-through.
type Cache struct {
	next     ports.MarketDataProvider
	store    Store
	client   *goredis.Client
	priceTTL time.Duration
	metrics  *metrics.Metrics
	logger   ports.Logger
	now      func() time.Time
}

// New connects to Redis and pings it.
func New(cfg Config, next ports.MarketDataProvider, m *metrics.Metrics, logger ports.Logger) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w: %w", cfg.Addr, ports.ErrDBConnection, err)
	}

	c := NewWithStore(client, next, cfg.PriceTTL, m, logger)
	c.client = client
	c.logger.Info(ctx, "Market data cache connected", map[string]interface{}{"addr": cfg.Addr, "db": cfg.DB})
	return c, nil
}

// NewWithStore builds a cache over an existing store.
func NewWithStore(store Store, next ports.MarketDataProvider, priceTTL time.Duration, m *metrics.Metrics, logger ports.Logger) *Cache {
	if priceTTL <= 0 {
		priceTTL = time.Minute
	}
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &Cache{
		next:     next,
		store:    store,
		priceTTL: priceTTL,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

func (c *Cache) Name() string { return c.next.Name() }

// Close releases the Redis connection when the cache owns it.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) key(parts ...string) string {
	return strings.Join(append([]string{keyPrefix, c.next.Name()}, parts...), ":")
}

func (c *Cache) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	key := c.key("price", strings.ToUpper(ticker))

	var cached decimal.Decimal
	if c.lookup(ctx, "price", key, &cached) {
		return cached, nil
	}

	price, err := c.next.CurrentPrice(ctx, ticker)
	if err != nil {
		return price, err
	}
	c.save(ctx, key, price, c.priceTTL)
	return price, nil
}

func (c *Cache) DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]*domain.Bar, error) {
	start, end := domain.Day(from), domain.Day(to)
	key := c.key("bars", strings.ToUpper(ticker), start.Format("20060102"), end.Format("20060102"))

	var cached []*domain.Bar
	if c.lookup(ctx, "bars", key, &cached) {
		return cached, nil
	}

	bars, err := c.next.DailyBars(ctx, ticker, from, to)
	if err != nil {
		return bars, err
	}
	// A range that ends before today is settled; one that reaches today still changes.
	ttl := c.priceTTL
	if end.Before(domain.Day(c.now().UTC())) {
		ttl = historyTTL
	}
	c.save(ctx, key, bars, ttl)
	return bars, nil
}

// lookup decodes a cached value into out and reports a hit.
func (c *Cache) lookup(ctx context.Context, op, key string, out interface{}) bool {
	raw, err := c.store.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		c.metrics.ObserveCache(op, false)
		return false
	case err != nil:
		c.logger.Warn(ctx, "Market data cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		c.metrics.ObserveCache(op, false)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn(ctx, "Market data cache entry unreadable", map[string]interface{}{"key": key, "error": err.Error()})
		c.metrics.ObserveCache(op, false)
		return false
	}
	c.metrics.ObserveCache(op, true)
	return true
}

func (c *Cache) save(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn(ctx, "Market data cache encode failed", map[string]interface{}{"key": key, "error": err.Error()})
		return
	}
	if err := c.store.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn(ctx, "Market data cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
