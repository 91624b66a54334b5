package indicators

import (
	"context"
	"fmt"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/money"

	"github.com/shopspring/decimal"
)

// MovingAverageConfig holds configuration for the simple moving average
type MovingAverageConfig struct {
	IndicatorConfig
}

// SMA is the simple mean of the last Period closes.
type SMA struct {
	BaseIndicator
}

// NewSMA creates a new simple moving average instance
func NewSMA(config MovingAverageConfig) *SMA {
	return &SMA{BaseIndicator: BaseIndicator{Config: config.IndicatorConfig}}
}

// Name returns e.g. "SMA50".
func (m *SMA) Name() string {
	return fmt.Sprintf("SMA%d", m.Config.Period)
}

// Calculate returns the SMA at the last bar rounded to 4 places, or nil with too few bars.
func (m *SMA) Calculate(ctx context.Context, bars []*domain.Bar) (*decimal.Decimal, error) {
	if err := m.Config.Validate(); err != nil {
		return nil, err
	}
	period := m.Config.Period
	if len(bars) < period {
		return nil, nil
	}

	total := decimal.Zero
	for i := len(bars) - period; i < len(bars); i++ {
		total = total.Add(bars[i].Close)
	}
	sma := money.Ratio(total.Div(decimal.NewFromInt(int64(period))))
	return &sma, nil
}
