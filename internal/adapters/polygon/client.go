// Package polygon implements ports.MarketDataProvider over the Polygon.io aggregates API.
package polygon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/ports"

	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is Polygon's production REST endpoint.
	DefaultBaseURL = "https://api.polygon.io"

	dateLayout    = "2006-01-02"
	maxAggsLimit  = 50000
	maxErrBodyLen = 256
)

// Config holds the client settings.
type Config struct {
	APIKey            string
	BaseURL           string
	RequestsPerMinute int           // client-side throttle, free tier allows 5
	Timeout           time.Duration // per HTTP request
	MaxRetries        int           // retries on 429 and 5xx
	RetryMin          time.Duration
	RetryMax          time.Duration
	Logger            ports.Logger
	HTTPClient        *http.Client
}

// Client is a Polygon.io REST client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryMin   time.Duration
	retryMax   time.Duration
	logger     ports.Logger
}

// New creates a Polygon client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("polygon API key is required: %w", ports.ErrConfigurationError)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Polygon client")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 5
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	retryMin, retryMax := cfg.RetryMin, cfg.RetryMax
	if retryMin <= 0 {
		retryMin = time.Second
	}
	if retryMax < retryMin {
		retryMax = 30 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		maxRetries: retries,
		retryMin:   retryMin,
		retryMax:   retryMax,
		logger:     cfg.Logger,
	}, nil
}

func (c *Client) Name() string { return "polygon" }

// aggBar is one element of an aggregates response.
type aggBar struct {
	Symbol    string          `json:"T"` // only on /prev; keeps "T" from matching "t"
	Timestamp int64           `json:"t"` // bar start, unix millis
	Open      decimal.Decimal `json:"o"`
	High      decimal.Decimal `json:"h"`
	Low       decimal.Decimal `json:"l"`
	Close     decimal.Decimal `json:"c"`
	Volume    decimal.Decimal `json:"v"`
}

type aggsResponse struct {
	Ticker       string   `json:"ticker"`
	Status       string   `json:"status"`
	ResultsCount int      `json:"resultsCount"`
	Results      []aggBar `json:"results"`
	NextURL      string   `json:"next_url"`
	Error        string   `json:"error"`
	Message      string   `json:"message"`
}

// CurrentPrice returns the previous session's close, which is the latest price on the free tier.
func (c *Client) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	op := "CurrentPrice"
	symbol := strings.ToUpper(ticker)
	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev", c.baseURL, url.PathEscape(symbol))

	var resp aggsResponse
	if err := c.get(ctx, endpoint, url.Values{"adjusted": {"true"}}, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("%s %s: %w", op, symbol, err)
	}
	if len(resp.Results) == 0 {
		return decimal.Zero, fmt.Errorf("%s %s: no previous close: %w", op, symbol, ports.ErrUnknownTicker)
	}
	return resp.Results[0].Close, nil
}

// DailyBars returns adjusted daily bars for [from, to], following next_url pages.
func (c *Client) DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]*domain.Bar, error) {
	op := "DailyBars"
	symbol := strings.ToUpper(ticker)
	start, end := domain.Day(from), domain.Day(to)
	if end.Before(start) {
		return nil, fmt.Errorf("%s %s: range end %s before start %s: %w",
			op, symbol, end.Format(dateLayout), start.Format(dateLayout), ports.ErrInvalidRequest)
	}

	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s",
		c.baseURL, url.PathEscape(symbol), start.Format(dateLayout), end.Format(dateLayout))
	query := url.Values{
		"adjusted": {"true"},
		"sort":     {"asc"},
		"limit":    {fmt.Sprint(maxAggsLimit)},
	}

	var bars []*domain.Bar
	for endpoint != "" {
		var resp aggsResponse
		if err := c.get(ctx, endpoint, query, &resp); err != nil {
			return nil, fmt.Errorf("%s %s: %w", op, symbol, err)
		}
		for _, r := range resp.Results {
			bars = append(bars, &domain.Bar{
				Ticker: symbol,
				Date:   domain.Day(time.UnixMilli(r.Timestamp).UTC()),
				Open:   r.Open,
				High:   r.High,
				Low:    r.Low,
				Close:  r.Close,
				Volume: r.Volume,
			})
		}
		// next_url already carries the cursor and filters.
		endpoint, query = resp.NextURL, nil
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"ticker": symbol, "bars": len(bars)})
	return domain.NormalizeBars(bars), nil
}

// get performs a throttled GET, retrying rate-limit and server errors with exponential backoff.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("bad url %q: %w", endpoint, ports.ErrInvalidRequest)
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	q.Set("apiKey", c.apiKey)
	u.RawQuery = q.Encode()

	b := &backoff.Backoff{Min: c.retryMin, Max: c.retryMax, Factor: 2, Jitter: true}
	for {
		err := c.do(ctx, u.String(), out)
		if err == nil {
			return nil
		}
		if !retryable(err) || int(b.Attempt()) >= c.maxRetries {
			return err
		}
		wait := b.Duration()
		c.logger.Debug(ctx, "Polygon request failed, retrying", map[string]interface{}{
			"path": u.Path, "attempt": int(b.Attempt()), "wait": wait.String(), "error": err.Error(),
		})
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ports.ErrContextCanceled, ctx.Err())
		case <-time.After(wait):
		}
	}
}

func (c *Client) do(ctx context.Context, rawURL string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ports.ErrTimeout, err)
		}
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
		}
		return fmt.Errorf("%w: %w", ports.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w: %w", ports.ErrProviderUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrBodyLen {
		msg = msg[:maxErrBodyLen]
	}
	var sentinel error
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		sentinel = ports.ErrAuthenticationFailed
	case code == http.StatusNotFound:
		sentinel = ports.ErrUnknownTicker
	case code == http.StatusTooManyRequests:
		sentinel = ports.ErrRateLimited
	case code >= 500:
		sentinel = ports.ErrProviderUnavailable
	default:
		sentinel = ports.ErrInvalidRequest
	}
	return fmt.Errorf("polygon status %d: %s: %w", code, msg, sentinel)
}

func retryable(err error) bool {
	return errors.Is(err, ports.ErrRateLimited) || errors.Is(err, ports.ErrProviderUnavailable)
}
