package engine

import (
	"testing"
	"time"

	"threeStopJournal/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestPrices(t *testing.T) {
	open := domain.Rollup{Status: domain.StatusPartial, AvgExitPrice: dp("105")}
	m := Prices(d("100"), dp("110"), dp("98"), open)

	assertDecPtr(t, "12.2449", m.DayPctMoved) // (110-98)/98*100
	assertDecPtr(t, "0.1000", m.CPPctDiffFromEntry)
	assertDecPtr(t, "110.0000", m.SoldPrice)
	assertDecPtr(t, "0.1000", m.PctGainLossTrade)

	closed := domain.Rollup{Status: domain.StatusClosed, AvgExitPrice: dp("95")}
	m = Prices(d("100"), dp("110"), dp("98"), closed)
	assertDecPtr(t, "95.0000", m.SoldPrice)
	assertDecPtr(t, "-0.0500", m.PctGainLossTrade)
}

func TestPrices_MissingInputs(t *testing.T) {
	m := Prices(d("100"), nil, nil, domain.Rollup{Status: domain.StatusOpen})
	assert.Nil(t, m.DayPctMoved)
	assert.Nil(t, m.CPPctDiffFromEntry)
	assert.Nil(t, m.SoldPrice)
	assert.Nil(t, m.PctGainLossTrade)

	// A closed trade still has a sold price without any market data.
	m = Prices(d("100"), nil, nil, domain.Rollup{Status: domain.StatusClosed, AvgExitPrice: dp("90")})
	assertDecPtr(t, "90", m.SoldPrice)
	assertDecPtr(t, "-0.1", m.PctGainLossTrade)
}

func TestPortfolio(t *testing.T) {
	m := Portfolio(100, d("100"), dp("110"), dp("100000"), 50, dp("0.1"))
	assertDecPtr(t, "10.0000", m.PctPortfolioAtEntry)
	assertDecPtr(t, "5.5000", m.PctPortfolioCurrent)
	assertDecPtr(t, "1.0000", m.GainLossPortfolioImpact)

	t.Run("no portfolio size", func(t *testing.T) {
		m := Portfolio(100, d("100"), dp("110"), nil, 50, dp("0.1"))
		assert.Nil(t, m.PctPortfolioAtEntry)
		assert.Nil(t, m.PctPortfolioCurrent)
		assert.Nil(t, m.GainLossPortfolioImpact)
	})

	t.Run("closed position", func(t *testing.T) {
		m := Portfolio(100, d("100"), dp("110"), dp("100000"), 0, dp("0.1"))
		assertDecPtr(t, "10", m.PctPortfolioAtEntry)
		assert.Nil(t, m.PctPortfolioCurrent)
	})

	t.Run("impact uses rounded inputs", func(t *testing.T) {
		// entry allocation 33.3333 (rounded) times gain 0.1235 (rounded)
		m := Portfolio(1, d("100"), nil, dp("300"), 1, dp("0.1235"))
		assertDecPtr(t, "33.3333", m.PctPortfolioAtEntry)
		assertDecPtr(t, "4.1167", m.GainLossPortfolioImpact) // 4.11666...
		assert.Nil(t, m.PctPortfolioCurrent)
	})
}

func TestVolatility(t *testing.T) {
	m := Volatility(d("100"), dp("110"), dp("2.49"), dp("2"), dp("95"), dp("2.2"), dp("100"))

	assertDecPtr(t, "1.2450", m.RiskATRRUnits)
	assertDecPtr(t, "2.6316", m.ATRPctMultipleFromMAAtEntry) // (5/95) / (2/100)
	assertDecPtr(t, "5.0000", m.ATRPctMultipleFromMACurrent) // (10/100) / (2.2/110)
}

func TestVolatility_NullPropagation(t *testing.T) {
	m := Volatility(d("100"), nil, nil, dp("2"), nil, nil, nil)
	assert.Nil(t, m.RiskATRRUnits)
	assert.Nil(t, m.ATRPctMultipleFromMAAtEntry)
	assert.Nil(t, m.ATRPctMultipleFromMACurrent)

	m = Volatility(d("100"), dp("100"), dp("1"), dp("0"), dp("90"), dp("0"), dp("0"))
	assert.Nil(t, m.RiskATRRUnits)
	assert.Nil(t, m.ATRPctMultipleFromMAAtEntry)
	assert.Nil(t, m.ATRPctMultipleFromMACurrent)
}

func TestRMultiple(t *testing.T) {
	assertDecPtr(t, "2.0000", RMultiple(d("1000.00"), 100, dp("5.00")))
	assertDecPtr(t, "-0.5000", RMultiple(d("-250"), 100, dp("5")))
	assert.Nil(t, RMultiple(d("1000"), 100, nil))
	assert.Nil(t, RMultiple(d("1000"), 100, dp("0")))
}

func TestTradingDaysOpen(t *testing.T) {
	date := func(y int, m time.Month, day int) time.Time {
		return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name     string
		purchase time.Time
		asOf     time.Time
		want     int
	}{
		{"same day", date(2024, 1, 1), date(2024, 1, 1), 0},
		{"as-of before purchase", date(2024, 1, 10), date(2024, 1, 1), 0},
		{"monday to friday", date(2024, 1, 1), date(2024, 1, 5), 4},
		{"monday to next monday", date(2024, 1, 1), date(2024, 1, 8), 5},
		{"friday over weekend", date(2024, 1, 5), date(2024, 1, 8), 1},
		{"saturday purchase to monday", date(2024, 1, 6), date(2024, 1, 8), 0},
		{"sunday purchase to monday", date(2024, 1, 7), date(2024, 1, 8), 0},
		{"saturday purchase to tuesday", date(2024, 1, 6), date(2024, 1, 9), 1},
		{"saturday to sunday", date(2024, 1, 6), date(2024, 1, 7), 0},
		{"saturday purchase over two weeks", date(2024, 1, 6), date(2024, 1, 22), 10},
		{"weekend only", date(2024, 1, 5), date(2024, 1, 7), 0},
		{"three weeks", date(2024, 1, 1), date(2024, 1, 22), 15},
		{"intraday timestamps", date(2024, 1, 1).Add(15 * time.Hour), date(2024, 1, 2).Add(9 * time.Hour), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TradingDaysOpen(tt.purchase, tt.asOf))
		})
	}
}
