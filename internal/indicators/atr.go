package indicators

import (
	"context"
	"fmt"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/money"

	"github.com/shopspring/decimal"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
}

// ATR is the simple (unweighted) mean of the last Period true ranges.
type ATR struct {
	BaseIndicator
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) *ATR {
	return &ATR{BaseIndicator: BaseIndicator{Config: config.IndicatorConfig}}
}

// Name returns e.g. "ATR14".
func (a *ATR) Name() string {
	return fmt.Sprintf("ATR%d", a.Config.Period)
}

// RequiredDataPoints is Period+1: the extra bar supplies the first previous close.
func (a *ATR) RequiredDataPoints() int {
	return a.Config.Period + 1
}

// Calculate returns the ATR at the last bar rounded to 4 places, or nil with too few bars.
func (a *ATR) Calculate(ctx context.Context, bars []*domain.Bar) (*decimal.Decimal, error) {
	if err := a.Config.Validate(); err != nil {
		return nil, err
	}
	period := a.Config.Period
	if len(bars) < period+1 {
		return nil, nil
	}

	sum := decimal.Zero
	for i := len(bars) - period; i < len(bars); i++ {
		sum = sum.Add(TrueRange(bars[i], bars[i-1].Close))
	}
	atr := money.Ratio(sum.Div(decimal.NewFromInt(int64(period))))
	return &atr, nil
}

// TrueRange is the greatest of:
// 1. High - Low
// 2. |High - previous close|
// 3. |Low - previous close|
func TrueRange(bar *domain.Bar, prevClose decimal.Decimal) decimal.Decimal {
	tr1 := bar.High.Sub(bar.Low)
	tr2 := bar.High.Sub(prevClose).Abs()
	tr3 := bar.Low.Sub(prevClose).Abs()
	return decimal.Max(tr1, tr2, tr3)
}
