package indicators

import (
	"context"
	"fmt"
	"time"

	"threeStopJournal/internal/domain"

	"github.com/shopspring/decimal"
)

// Standard periods used by the journal.
const (
	ATRPeriod     = 14
	SlowSMAPeriod = 50
	FastSMAPeriod = 10
)

// Set is the indicator bundle stored on a trade.
type Set struct {
	ATR14 *decimal.Decimal
	SMA50 *decimal.Decimal
	SMA10 *decimal.Decimal
}

// Empty reports whether no indicator could be computed.
func (s Set) Empty() bool {
	return s.ATR14 == nil && s.SMA50 == nil && s.SMA10 == nil
}

// Engine computes the standard indicator set from a bar series.
type Engine struct {
	atr  Indicator
	slow Indicator
	fast Indicator
}

// NewEngine wires ATR(14), SMA(50) and SMA(10).
func NewEngine() *Engine {
	return &Engine{
		atr:  NewATR(ATRConfig{IndicatorConfig{Period: ATRPeriod}}),
		slow: NewSMA(MovingAverageConfig{IndicatorConfig{Period: SlowSMAPeriod}}),
		fast: NewSMA(MovingAverageConfig{IndicatorConfig{Period: FastSMAPeriod}}),
	}
}

// MinBars is the longest history any indicator in the set needs.
func (e *Engine) MinBars() int {
	n := 0
	for _, ind := range []Indicator{e.atr, e.slow, e.fast} {
		if r := ind.RequiredDataPoints(); r > n {
			n = r
		}
	}
	return n
}

// Current values the set at the latest bar. Bars may arrive in any order.
func (e *Engine) Current(ctx context.Context, bars []*domain.Bar) (Set, error) {
	return e.compute(ctx, domain.NormalizeBars(bars))
}

// AsOf values the set at the last bar on or before date. Bars may arrive in any order.
func (e *Engine) AsOf(ctx context.Context, bars []*domain.Bar, date time.Time) (Set, error) {
	return e.compute(ctx, AsOf(domain.NormalizeBars(bars), date))
}

func (e *Engine) compute(ctx context.Context, bars []*domain.Bar) (Set, error) {
	var (
		s   Set
		err error
	)
	if s.ATR14, err = e.atr.Calculate(ctx, bars); err != nil {
		return Set{}, fmt.Errorf("%s: %w", e.atr.Name(), err)
	}
	if s.SMA50, err = e.slow.Calculate(ctx, bars); err != nil {
		return Set{}, fmt.Errorf("%s: %w", e.slow.Name(), err)
	}
	if s.SMA10, err = e.fast.Calculate(ctx, bars); err != nil {
		return Set{}, fmt.Errorf("%s: %w", e.fast.Name(), err)
	}
	return s, nil
}
