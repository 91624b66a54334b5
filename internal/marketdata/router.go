package marketdata

import (
	"context"
	"strings"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/ports"

	"github.com/shopspring/decimal"
)

// Router sends crypto pairs to one provider and everything else to the equity provider.
type Router struct {
	equities ports.MarketDataProvider
	crypto   ports.MarketDataProvider
	suffixes []string
}

// NewRouter returns a router. With a nil crypto provider every ticker goes to equities.
func NewRouter(equities, crypto ports.MarketDataProvider, cryptoSuffixes []string) *Router {
	suffixes := make([]string, 0, len(cryptoSuffixes))
	for _, s := range cryptoSuffixes {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			suffixes = append(suffixes, s)
		}
	}
	return &Router{equities: equities, crypto: crypto, suffixes: suffixes}
}

func (r *Router) Name() string { return "router" }

// Route picks the provider for ticker.
func (r *Router) Route(ticker string) ports.MarketDataProvider {
	if r.crypto == nil {
		return r.equities
	}
	t := strings.ToUpper(ticker)
	for _, s := range r.suffixes {
		if len(t) > len(s) && strings.HasSuffix(t, s) {
			return r.crypto
		}
	}
	return r.equities
}

func (r *Router) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	return r.Route(ticker).CurrentPrice(ctx, ticker)
}

func (r *Router) DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]*domain.Bar, error) {
	return r.Route(ticker).DailyBars(ctx, ticker, from, to)
}
