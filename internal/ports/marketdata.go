package ports

import (
	"context"
	"time"

	"threeStopJournal/internal/domain"

	"github.com/shopspring/decimal"
)

// MarketDataProvider supplies prices and daily bars for a ticker.
// Implementations never compute indicators; that is the indicator engine's job.
type MarketDataProvider interface {
	// Name identifies the provider in logs and metrics (e.g. "polygon").
	Name() string

	// CurrentPrice returns the latest available price (previous close when the market is shut).
	CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error)

	// DailyBars returns daily bars with from <= date <= to, ascending, one per date.
	// An empty slice with a nil error means the provider had no data for the range.
	DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]*domain.Bar, error)
}
