package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/marketdata"
	"threeStopJournal/internal/money"
	"threeStopJournal/internal/ports"

	"github.com/shopspring/decimal"
)

// NewTrade is the input for CreateTrade.
type NewTrade struct {
	ID            string
	Ticker        string
	PurchaseDate  time.Time
	PurchasePrice decimal.Decimal
	Shares        int64
	EntryDayLow   *decimal.Decimal
	StopOverride  *decimal.Decimal
	PortfolioSize *decimal.Decimal
}

// TradeUpdate changes the user-editable inputs. Nil fields are left as they are.
type TradeUpdate struct {
	EntryDayLow   *decimal.Decimal
	StopOverride  *decimal.Decimal
	PortfolioSize *decimal.Decimal

	ClearStopOverride bool // drop the manual Stop3 and fall back to the entry-day low
}

// Empty reports whether the update changes nothing.
func (u TradeUpdate) Empty() bool {
	return u.EntryDayLow == nil && u.StopOverride == nil && u.PortfolioSize == nil && !u.ClearStopOverride
}

// CreateResult reports the stored trade and how its snapshots were obtained.
type CreateResult struct {
	Trade         *domain.Trade
	CurrentStatus marketdata.FetchStatus
	EntryStatus   marketdata.FetchStatus
}

func validateNewTrade(in *NewTrade) error {
	var errs []string
	in.ID = strings.TrimSpace(in.ID)
	in.Ticker = strings.ToUpper(strings.TrimSpace(in.Ticker))

	if l := len(in.ID); l == 0 || l > maxTradeIDLength {
		errs = append(errs, fmt.Sprintf("trade id must be 1..%d characters", maxTradeIDLength))
	}
	if l := len(in.Ticker); l == 0 || l > maxTickerLength {
		errs = append(errs, fmt.Sprintf("ticker must be 1..%d characters", maxTickerLength))
	}
	if in.PurchaseDate.IsZero() {
		errs = append(errs, "purchase date is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(errs, "; "), ports.ErrInvalidRequest)
	}

	if !in.PurchasePrice.IsPositive() {
		return fmt.Errorf("purchase price must be positive: %w", ports.ErrNonPositiveInput)
	}
	if in.Shares <= 0 {
		return fmt.Errorf("shares must be positive: %w", ports.ErrNonPositiveInput)
	}
	return validateEditable(in.EntryDayLow, in.StopOverride, in.PortfolioSize)
}

func validateEditable(entryDayLow, stopOverride, portfolioSize *decimal.Decimal) error {
	if entryDayLow != nil && !entryDayLow.IsPositive() {
		return fmt.Errorf("entry day low must be positive: %w", ports.ErrNonPositiveInput)
	}
	if stopOverride != nil && !stopOverride.IsPositive() {
		return fmt.Errorf("stop override must be positive: %w", ports.ErrNonPositiveInput)
	}
	if portfolioSize != nil && !portfolioSize.IsPositive() {
		return fmt.Errorf("portfolio size must be positive: %w", ports.ErrNonPositiveInput)
	}
	return nil
}

// CreateTrade validates the input, fetches market snapshots, runs the pipeline and stores the trade.
// Snapshot failures are logged and leave the affected fields null.
func (s *JournalService) CreateTrade(ctx context.Context, in NewTrade) (*CreateResult, error) {
	const op = "CreateTrade"
	if err := validateNewTrade(&in); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(in.ID)
	defer unlock()

	existing, err := s.repo.FindByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("trade '%s' already exists: %w", in.ID, ports.ErrDuplicateEntry)
	}

	portfolio := in.PortfolioSize
	if portfolio == nil && s.opts.DefaultPortfolioSize != nil {
		portfolio = money.Ptr(*s.opts.DefaultPortfolioSize)
	}

	now := s.now().UTC()
	trade := &domain.Trade{
		ID:            in.ID,
		Ticker:        in.Ticker,
		PurchaseDate:  domain.Day(in.PurchaseDate),
		PurchasePrice: in.PurchasePrice,
		Shares:        in.Shares,
		EntryDayLow:   in.EntryDayLow,
		StopOverride:  in.StopOverride,
		PortfolioSize: portfolio,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	current, entry := s.market.Snapshots(ctx, trade.Ticker, trade.PurchaseDate)
	applyCurrent(trade, current)
	if entry.OK() {
		trade.Entry = entry.Value
	}
	s.logFetch(ctx, op, trade.ID, "current", current.Status, current.Err)
	s.logFetch(ctx, op, trade.ID, "entry", entry.Status, entry.Err)

	if err := s.recalculate(ctx, trade, nil); err != nil {
		s.logger.Warn(ctx, "Trade rejected", logFields(op, trade.ID, map[string]interface{}{"error": err.Error()}))
		return nil, err
	}
	if err := s.repo.Create(ctx, trade); err != nil {
		s.logger.Error(ctx, err, "Failed to store trade", logFields(op, trade.ID))
		return nil, err
	}

	s.logger.Info(ctx, "Trade created", logFields(op, trade.ID, map[string]interface{}{
		"ticker": trade.Ticker,
		"stop3":  money.String(trade.Derived.Stops.Stop3),
		"status": trade.Status(),
	}))
	return &CreateResult{Trade: trade, CurrentStatus: current.Status, EntryStatus: entry.Status}, nil
}

// ListTrades returns trades newest purchase first.
func (s *JournalService) ListTrades(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, error) {
	filter.Ticker = strings.ToUpper(strings.TrimSpace(filter.Ticker))
	return s.repo.List(ctx, filter)
}

// GetTrade returns one trade or ErrNotFound.
func (s *JournalService) GetTrade(ctx context.Context, id string) (*domain.Trade, error) {
	return s.loadTrade(ctx, id)
}

// UpdateTrade applies the supplied inputs and recalculates. A fatal input error
// (for example an override at or above the purchase price) leaves the stored trade untouched.
func (s *JournalService) UpdateTrade(ctx context.Context, id string, upd TradeUpdate) (*domain.Trade, error) {
	const op = "UpdateTrade"
	if upd.Empty() {
		return nil, fmt.Errorf("no fields to update: %w", ports.ErrInvalidRequest)
	}
	if upd.ClearStopOverride && upd.StopOverride != nil {
		return nil, fmt.Errorf("stop override cannot be both set and cleared: %w", ports.ErrInvalidRequest)
	}
	if err := validateEditable(upd.EntryDayLow, upd.StopOverride, upd.PortfolioSize); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	stored, err := s.loadTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	txns, err := s.loadTransactions(ctx, id)
	if err != nil {
		return nil, err
	}

	trade := stored.Clone()
	if upd.EntryDayLow != nil {
		trade.EntryDayLow = upd.EntryDayLow
	}
	if upd.StopOverride != nil {
		trade.StopOverride = upd.StopOverride
	}
	if upd.ClearStopOverride {
		trade.StopOverride = nil
	}
	if upd.PortfolioSize != nil {
		trade.PortfolioSize = upd.PortfolioSize
	}
	trade.UpdatedAt = s.now().UTC()

	if err := s.recalculate(ctx, trade, txns); err != nil {
		s.logger.Warn(ctx, "Trade update rejected", logFields(op, id, map[string]interface{}{"error": err.Error()}))
		return nil, err
	}
	if err := s.repo.Save(ctx, trade); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "Trade updated", logFields(op, id, map[string]interface{}{"stop3": money.String(trade.Derived.Stops.Stop3)}))
	return trade, nil
}

// RefreshResult is the outcome of refreshing one trade's current market snapshot.
type RefreshResult struct {
	TradeID  string
	Trade    *domain.Trade // nil when Err is set
	Status   marketdata.FetchStatus
	FetchErr error // why the fetch was partial or unavailable
	Err      error // load, pass or store failure (bulk refresh only)
}

// RefreshMarketData re-fetches the current snapshot and recalculates. The entry snapshot
// is never refreshed. The pass runs even when the fetch fails so trading days keep advancing.
func (s *JournalService) RefreshMarketData(ctx context.Context, id string) (*RefreshResult, error) {
	const op = "RefreshMarketData"
	unlock := s.locks.Lock(id)
	defer unlock()

	stored, err := s.loadTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	txns, err := s.loadTransactions(ctx, id)
	if err != nil {
		return nil, err
	}

	trade := stored.Clone()
	current := s.market.Current(ctx, trade.Ticker, trade.PurchaseDate)
	applyCurrent(trade, current)
	s.logFetch(ctx, op, id, "current", current.Status, current.Err)
	trade.UpdatedAt = s.now().UTC()

	if err := s.recalculate(ctx, trade, txns); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, trade); err != nil {
		return nil, err
	}
	s.metrics.ObserveRefreshResult(string(current.Status))
	return &RefreshResult{TradeID: id, Trade: trade, Status: current.Status, FetchErr: current.Err}, nil
}

// DeleteTrade removes a trade and every transaction against it.
func (s *JournalService) DeleteTrade(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("trade '%s': %w", id, ports.ErrNotFound)
		}
		return err
	}
	s.logger.Info(ctx, "Trade deleted", logFields("DeleteTrade", id))
	return nil
}

// applyCurrent merges the usable fields of a current-snapshot fetch into trade.
// Fields the fetch could not produce keep their previous values.
func applyCurrent(trade *domain.Trade, r marketdata.Result[domain.MarketSnapshot]) {
	if !r.OK() {
		return
	}
	v := r.Value
	if v.CurrentPrice != nil {
		trade.Market.CurrentPrice = v.CurrentPrice
	}
	if v.ATR14 != nil {
		trade.Market.ATR14 = v.ATR14
	}
	if v.SMA50 != nil {
		trade.Market.SMA50 = v.SMA50
	}
	if v.SMA10 != nil {
		trade.Market.SMA10 = v.SMA10
	}
	if v.UpdatedAt != nil {
		trade.Market.UpdatedAt = v.UpdatedAt
	}
}

func (s *JournalService) logFetch(ctx context.Context, op, tradeID, which string, status marketdata.FetchStatus, err error) {
	fields := logFields(op, tradeID, map[string]interface{}{"snapshot": which, "status": status})
	switch status {
	case marketdata.Fetched, marketdata.NotFetched:
		s.logger.Debug(ctx, "Market snapshot", fields)
	default:
		if err != nil {
			fields["error"] = err.Error()
		}
		s.logger.Warn(ctx, "Market snapshot incomplete", fields)
	}
}
