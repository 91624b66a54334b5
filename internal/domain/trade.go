package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is the refreshable view of the market for a trade's ticker.
type MarketSnapshot struct {
	CurrentPrice *decimal.Decimal
	ATR14        *decimal.Decimal
	SMA50        *decimal.Decimal
	SMA10        *decimal.Decimal
	UpdatedAt    *time.Time // nil until the first successful fetch
}

// EntrySnapshot holds indicators valued as of the purchase date. Captured once at creation.
type EntrySnapshot struct {
	ATR14 *decimal.Decimal
	SMA50 *decimal.Decimal
}

// StopLevels are the three stop tiers, the risk unit and the take-profit targets.
// Every field is nil while no stop determinant (override or entry-day low) is known.
type StopLevels struct {
	Stop3              *decimal.Decimal
	Stop2              *decimal.Decimal
	Stop1              *decimal.Decimal
	OneR               *decimal.Decimal
	TP1R               *decimal.Decimal
	TP2R               *decimal.Decimal
	TP3R               *decimal.Decimal
	EntryPctAboveStop3 *decimal.Decimal
}

// Determined reports whether Stop3 could be established.
func (s StopLevels) Determined() bool {
	return s.Stop3 != nil
}

// Rollup aggregates a trade's exit transactions.
type Rollup struct {
	SharesExited    int64
	SharesRemaining int64
	TotalProceeds   decimal.Decimal
	TotalFees       decimal.Decimal
	AvgExitPrice    *decimal.Decimal // nil when nothing exited
	RealizedPnL     decimal.Decimal
	UnrealizedPnL   decimal.Decimal
	TotalPnL        decimal.Decimal
	Status          TradeStatus
}

// Metrics are the price, portfolio, volatility and R-multiple figures.
type Metrics struct {
	DayPctMoved                 *decimal.Decimal
	CPPctDiffFromEntry          *decimal.Decimal
	SoldPrice                   *decimal.Decimal
	PctGainLossTrade            *decimal.Decimal
	PctPortfolioAtEntry         *decimal.Decimal
	PctPortfolioCurrent         *decimal.Decimal
	GainLossPortfolioImpact     *decimal.Decimal
	RiskATRRUnits               *decimal.Decimal
	ATRPctMultipleFromMAAtEntry *decimal.Decimal
	ATRPctMultipleFromMACurrent *decimal.Decimal
	RMultiple                   *decimal.Decimal
	TradingDaysOpen             int
}

// Derived is everything a recalculation pass produces.
type Derived struct {
	Stops   StopLevels
	Rollup  Rollup
	Metrics Metrics
}

// Trade is one position, keyed by a caller-supplied ID.
type Trade struct {
	ID            string          // Caller-supplied unique identifier (e.g. "AAPL-001")
	Ticker        string          // Equity symbol
	PurchaseDate  time.Time       // Entry date
	PurchasePrice decimal.Decimal // Entry price (PP)
	Shares        int64           // Shares bought

	// User-editable inputs
	EntryDayLow   *decimal.Decimal // Low of the entry day (LoD)
	StopOverride  *decimal.Decimal // Manual Stop3
	PortfolioSize *decimal.Decimal // Portfolio size snapshot

	Market MarketSnapshot
	Entry  EntrySnapshot

	Derived Derived

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status is shorthand for the derived status.
func (t *Trade) Status() TradeStatus {
	return t.Derived.Rollup.Status
}

// IsActive reports whether the trade still holds shares.
func (t *Trade) IsActive() bool {
	s := t.Status()
	return s == StatusOpen || s == StatusPartial
}

// Clone returns a deep copy so a pass can work on a scratch value.
func (t *Trade) Clone() *Trade {
	if t == nil {
		return nil
	}
	c := *t
	c.EntryDayLow = cloneDec(t.EntryDayLow)
	c.StopOverride = cloneDec(t.StopOverride)
	c.PortfolioSize = cloneDec(t.PortfolioSize)
	c.Market = MarketSnapshot{
		CurrentPrice: cloneDec(t.Market.CurrentPrice),
		ATR14:        cloneDec(t.Market.ATR14),
		SMA50:        cloneDec(t.Market.SMA50),
		SMA10:        cloneDec(t.Market.SMA10),
	}
	if t.Market.UpdatedAt != nil {
		ts := *t.Market.UpdatedAt
		c.Market.UpdatedAt = &ts
	}
	c.Entry = EntrySnapshot{ATR14: cloneDec(t.Entry.ATR14), SMA50: cloneDec(t.Entry.SMA50)}
	// Derived values are replaced wholesale on every pass; the pointers are never mutated in place.
	return &c
}

func cloneDec(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
