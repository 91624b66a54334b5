package indicators

import (
	"context"
	"fmt"
	"time"

	"threeStopJournal/internal/domain"

	"github.com/shopspring/decimal"
)

// Indicator represents a technical indicator calculated from daily bars.
type Indicator interface {
	// Calculate returns the indicator value at the last bar.
	// A nil value with a nil error means there was not enough history.
	Calculate(ctx context.Context, bars []*domain.Bar) (*decimal.Decimal, error)

	// RequiredDataPoints returns the minimum number of bars needed for a value.
	RequiredDataPoints() int

	// Name returns the name of the indicator, e.g. "ATR14".
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// Validate rejects non-positive periods.
func (c IndicatorConfig) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("indicator period must be positive, got %d", c.Period)
	}
	return nil
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints defaults to the period length.
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

// AsOf returns the prefix of an ascending series whose bars fall on or before date.
// The input slice is not copied.
func AsOf(bars []*domain.Bar, date time.Time) []*domain.Bar {
	cutoff := domain.Day(date)
	n := 0
	for n < len(bars) && !domain.Day(bars[n].Date).After(cutoff) {
		n++
	}
	return bars[:n]
}

// CalculateAsOf evaluates ind with the series truncated to bars on or before date.
func CalculateAsOf(ctx context.Context, ind Indicator, bars []*domain.Bar, date time.Time) (*decimal.Decimal, error) {
	return ind.Calculate(ctx, AsOf(bars, date))
}
