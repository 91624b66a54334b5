// Package marketdata fetches prices and bars and turns them into trade snapshots.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/indicators"
	"threeStopJournal/internal/money"
	"threeStopJournal/internal/ports"
)

// FetchStatus tells the caller how much of a snapshot could be obtained.
type FetchStatus string

const (
	NotFetched  FetchStatus = "not_fetched" // no provider configured
	Fetched     FetchStatus = "fetched"
	Partial     FetchStatus = "partial" // some values missing, see Err
	Unavailable FetchStatus = "unavailable"
)

// Result carries a fetched value together with how it was obtained.
type Result[T any] struct {
	Status FetchStatus
	Value  T
	Err    error
}

// OK reports whether Value holds anything usable.
func (r Result[T]) OK() bool {
	return r.Status == Fetched || r.Status == Partial
}

const (
	DefaultCurrentLookbackDays = 120
	DefaultEntryLookbackDays   = 100

	// Current bars always reach at least this far before the purchase date.
	purchaseBufferDays = 30
)

// Config controls the fetch windows.
type Config struct {
	CurrentLookbackDays int
	EntryLookbackDays   int
}

// Service builds MarketSnapshot and EntrySnapshot values from a provider.
type Service struct {
	provider   ports.MarketDataProvider
	indicators *indicators.Engine
	logger     ports.Logger
	cfg        Config
	now        func() time.Time
}

// NewService creates the snapshot service. A nil provider yields NotFetched results.
func NewService(provider ports.MarketDataProvider, logger ports.Logger, cfg Config) *Service {
	if cfg.CurrentLookbackDays <= 0 {
		cfg.CurrentLookbackDays = DefaultCurrentLookbackDays
	}
	if cfg.EntryLookbackDays <= 0 {
		cfg.EntryLookbackDays = DefaultEntryLookbackDays
	}
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &Service{
		provider:   provider,
		indicators: indicators.NewEngine(),
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Enabled reports whether a provider is wired.
func (s *Service) Enabled() bool {
	return s.provider != nil
}

// Current fetches the latest price and the current ATR14/SMA50/SMA10.
// When the price call fails the last bar's close stands in and the result is Partial.
func (s *Service) Current(ctx context.Context, ticker string, purchaseDate time.Time) Result[domain.MarketSnapshot] {
	if s.provider == nil {
		return Result[domain.MarketSnapshot]{Status: NotFetched}
	}

	now := s.now().UTC()
	from := domain.Day(now.AddDate(0, 0, -s.cfg.CurrentLookbackDays))
	if early := domain.Day(purchaseDate.AddDate(0, 0, -purchaseBufferDays)); early.Before(from) {
		from = early
	}

	price, priceErr := s.provider.CurrentPrice(ctx, ticker)
	bars, barsErr := s.provider.DailyBars(ctx, ticker, from, now)

	var snap domain.MarketSnapshot
	var errs []error
	if priceErr == nil {
		snap.CurrentPrice = money.Ptr(price)
	} else {
		errs = append(errs, fmt.Errorf("current price: %w", priceErr))
	}

	if barsErr == nil {
		set, err := s.indicators.Current(ctx, bars)
		if err != nil {
			errs = append(errs, fmt.Errorf("indicators: %w", err))
		} else {
			snap.ATR14, snap.SMA50, snap.SMA10 = set.ATR14, set.SMA50, set.SMA10
		}
		if snap.CurrentPrice == nil && len(bars) > 0 {
			snap.CurrentPrice = money.Ptr(bars[len(bars)-1].Close)
		}
	} else {
		errs = append(errs, fmt.Errorf("daily bars: %w", barsErr))
	}

	if snap.CurrentPrice == nil && snap.ATR14 == nil && snap.SMA50 == nil && snap.SMA10 == nil {
		err := errors.Join(append(errs, ports.ErrMarketDataUnavailable)...)
		s.logger.Warn(ctx, "Current market data unavailable", map[string]interface{}{"ticker": ticker, "error": err.Error()})
		return Result[domain.MarketSnapshot]{Status: Unavailable, Err: err}
	}

	updated := now
	snap.UpdatedAt = &updated
	if len(errs) > 0 {
		err := errors.Join(errs...)
		s.logger.Warn(ctx, "Current market data partially fetched", map[string]interface{}{"ticker": ticker, "error": err.Error()})
		return Result[domain.MarketSnapshot]{Status: Partial, Value: snap, Err: err}
	}
	s.logger.Debug(ctx, "Current market data fetched", map[string]interface{}{"ticker": ticker, "bars": len(bars)})
	return Result[domain.MarketSnapshot]{Status: Fetched, Value: snap}
}

// Entry values ATR14 and SMA50 as of the purchase date.
func (s *Service) Entry(ctx context.Context, ticker string, purchaseDate time.Time) Result[domain.EntrySnapshot] {
	if s.provider == nil {
		return Result[domain.EntrySnapshot]{Status: NotFetched}
	}

	to := domain.Day(purchaseDate)
	from := to.AddDate(0, 0, -s.cfg.EntryLookbackDays)
	bars, err := s.provider.DailyBars(ctx, ticker, from, to)
	if err != nil {
		err = fmt.Errorf("entry bars: %w", err)
		s.logger.Warn(ctx, "Entry market data unavailable", map[string]interface{}{"ticker": ticker, "error": err.Error()})
		return Result[domain.EntrySnapshot]{Status: Unavailable, Err: err}
	}

	set, err := s.indicators.AsOf(ctx, bars, purchaseDate)
	if err != nil {
		return Result[domain.EntrySnapshot]{Status: Unavailable, Err: fmt.Errorf("entry indicators: %w", err)}
	}
	snap := domain.EntrySnapshot{ATR14: set.ATR14, SMA50: set.SMA50}
	if snap.ATR14 == nil || snap.SMA50 == nil {
		return Result[domain.EntrySnapshot]{
			Status: Partial,
			Value:  snap,
			Err:    fmt.Errorf("%d bars before %s: %w", len(bars), to.Format("2006-01-02"), ports.ErrMarketDataUnavailable),
		}
	}
	return Result[domain.EntrySnapshot]{Status: Fetched, Value: snap}
}

// Snapshots fetches the current and entry snapshots concurrently.
func (s *Service) Snapshots(ctx context.Context, ticker string, purchaseDate time.Time) (Result[domain.MarketSnapshot], Result[domain.EntrySnapshot]) {
	var (
		wg      sync.WaitGroup
		current Result[domain.MarketSnapshot]
		entry   Result[domain.EntrySnapshot]
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		current = s.Current(ctx, ticker, purchaseDate)
	}()
	go func() {
		defer wg.Done()
		entry = s.Entry(ctx, ticker, purchaseDate)
	}()
	wg.Wait()
	return current, entry
}

// Bars passes a raw range request through to the provider.
func (s *Service) Bars(ctx context.Context, ticker string, from, to time.Time) ([]*domain.Bar, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no market data provider: %w", ports.ErrConfigurationError)
	}
	return s.provider.DailyBars(ctx, ticker, from, to)
}

// Indicators exposes the indicator engine used for snapshots.
func (s *Service) Indicators() *indicators.Engine {
	return s.indicators
}
