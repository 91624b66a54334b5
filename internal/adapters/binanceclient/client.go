package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	dailyInterval = "1d"
	maxKlineLimit = 1500
)

// Client implements ports.MarketDataProvider for crypto pairs using the go-binance futures API.
type Client struct {
	futuresClient *futures.Client
	limiter       *rate.Limiter
	logger        ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	BaseURL    string // overrides the production/testnet URL when set
	Logger     ports.Logger
	Timeout    time.Duration
	// Requests per second sent to Binance. Defaults to 10 with a burst of 20.
	RequestsPerSecond float64
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Debug(context.Background(), "Binance keys not set; using public market data endpoints only")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	cfg.Logger.Info(context.Background(), "Binance market data client configured", map[string]interface{}{"baseURL": client.BaseURL})

	return &Client{
		futuresClient: client,
		limiter:       rate.NewLimiter(rate.Limit(rps), int(rps*2)),
		logger:        cfg.Logger,
	}, nil
}

func (c *Client) Name() string { return "binance" }

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Bad signature or API key
			mappedErr = ports.ErrAuthenticationFailed
		case -1121: // Invalid symbol
			mappedErr = ports.ErrUnknownTicker
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1125, -1127, -1128, -1130:
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrProviderUnavailable
		}
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"),
		strings.Contains(err.Error(), "use of closed network connection"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrProviderUnavailable, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// CurrentPrice returns the last traded price for a pair.
func (c *Client) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	op := "CurrentPrice"
	symbol := strings.ToUpper(ticker)
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, c.handleError(ctx, err, op)
	}

	prices, err := c.futuresClient.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, c.handleError(ctx, err, op)
	}
	for _, p := range prices {
		if p == nil || p.Symbol != symbol {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return decimal.Zero, c.handleError(ctx, fmt.Errorf("could not parse price '%s': %w", p.Price, err), op)
		}
		return price, nil
	}
	return decimal.Zero, fmt.Errorf("%s: no price returned for %s: %w", op, symbol, ports.ErrUnknownTicker)
}

// DailyBars fetches every daily kline for a pair between from and to, paging as needed.
func (c *Client) DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]*domain.Bar, error) {
	op := "DailyBars"
	symbol := strings.ToUpper(ticker)
	start := domain.Day(from)
	end := to.UTC()
	if end.Before(start) {
		return nil, fmt.Errorf("%s: range end %s before start %s: %w", op, end, start, ports.ErrInvalidRequest)
	}

	var bars []*domain.Bar
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(dailyInterval).
			StartTime(start.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxKlineLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			bar, err := translateBinanceKline(bk, symbol)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate daily kline: %w", err), op)
			}
			bars = append(bars, bar)
		}
		last := klines[len(klines)-1]
		start = time.UnixMilli(last.CloseTime + 1).UTC()
		if start.After(end) || len(klines) < maxKlineLimit {
			break
		}
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "bars": len(bars)})
	return domain.NormalizeBars(bars), nil
}

func translateBinanceKline(bk *futures.Kline, symbol string) (*domain.Bar, error) {
	if bk == nil {
		return nil, errors.New("received nil kline")
	}
	fields := []struct {
		name string
		raw  string
	}{
		{"open", bk.Open}, {"high", bk.High}, {"low", bk.Low}, {"close", bk.Close}, {"volume", bk.Volume},
	}
	values := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("parsing %s '%s': %w", f.name, f.raw, err)
		}
		values[i] = v
	}

	return &domain.Bar{
		Ticker: symbol,
		Date:   domain.Day(time.UnixMilli(bk.OpenTime).UTC()),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
