package engine

import (
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/money"

	"github.com/shopspring/decimal"
)

// PriceMetrics are the figures that only need prices and the rollup.
type PriceMetrics struct {
	DayPctMoved        *decimal.Decimal
	CPPctDiffFromEntry *decimal.Decimal
	SoldPrice          *decimal.Decimal
	PctGainLossTrade   *decimal.Decimal
}

// Prices computes the price-movement group.
// soldPrice is the average exit once CLOSED, the current price otherwise.
func Prices(purchasePrice decimal.Decimal, currentPrice, entryDayLow *decimal.Decimal, rollup domain.Rollup) PriceMetrics {
	pp := &purchasePrice
	var m PriceMetrics

	if move := money.Div(money.Sub(currentPrice, entryDayLow), entryDayLow); move != nil {
		m.DayPctMoved = money.Ptr(money.Ratio(move.Mul(money.Hundred)))
	}
	m.CPPctDiffFromEntry = money.RatioPtr(money.Div(money.Sub(currentPrice, pp), pp))

	sold := currentPrice
	if rollup.Status == domain.StatusClosed && rollup.AvgExitPrice != nil {
		sold = rollup.AvgExitPrice
	}
	m.SoldPrice = money.RatioPtr(sold)
	m.PctGainLossTrade = money.RatioPtr(money.Div(money.Sub(sold, pp), pp))
	return m
}

// PortfolioMetrics express the position against the portfolio snapshot.
type PortfolioMetrics struct {
	PctPortfolioAtEntry     *decimal.Decimal
	PctPortfolioCurrent     *decimal.Decimal
	GainLossPortfolioImpact *decimal.Decimal
}

// Portfolio computes allocation percentages. Without a positive portfolio size every field is nil.
// The impact multiplies the already rounded trade gain and entry allocation.
func Portfolio(shares int64, purchasePrice decimal.Decimal, currentPrice, portfolioSize *decimal.Decimal, sharesRemaining int64, pctGainLossTrade *decimal.Decimal) PortfolioMetrics {
	var m PortfolioMetrics
	if !money.IsPositive(portfolioSize) {
		return m
	}

	entryValue := money.Shares(shares).Mul(purchasePrice)
	m.PctPortfolioAtEntry = money.Ptr(money.Ratio(entryValue.Div(*portfolioSize).Mul(money.Hundred)))

	if sharesRemaining > 0 && currentPrice != nil {
		currentValue := money.Shares(sharesRemaining).Mul(*currentPrice)
		m.PctPortfolioCurrent = money.Ptr(money.Ratio(currentValue.Div(*portfolioSize).Mul(money.Hundred)))
	}
	m.GainLossPortfolioImpact = money.RatioPtr(money.Mul(pctGainLossTrade, m.PctPortfolioAtEntry))
	return m
}

// VolatilityMetrics normalize risk and trend distance by ATR.
type VolatilityMetrics struct {
	RiskATRRUnits               *decimal.Decimal
	ATRPctMultipleFromMAAtEntry *decimal.Decimal
	ATRPctMultipleFromMACurrent *decimal.Decimal
}

// Volatility computes the ATR/SMA group.
//
//	riskAtrRUnits = OneR / atrAtEntry
//	multiple      = ((price - sma) / sma) / (atr / price)
//
// The at-entry multiple uses the purchase price and the entry snapshot; the current one
// uses the current price, SMA50 and ATR14.
func Volatility(purchasePrice decimal.Decimal, currentPrice, oneR, atrAtEntry, smaAtEntry, atr14, sma50 *decimal.Decimal) VolatilityMetrics {
	var m VolatilityMetrics
	if money.IsPositive(atrAtEntry) {
		m.RiskATRRUnits = money.RatioPtr(money.Div(oneR, atrAtEntry))
	}
	m.ATRPctMultipleFromMAAtEntry = money.RatioPtr(atrMultiple(&purchasePrice, smaAtEntry, atrAtEntry))
	m.ATRPctMultipleFromMACurrent = money.RatioPtr(atrMultiple(currentPrice, sma50, atr14))
	return m
}

func atrMultiple(price, sma, atr *decimal.Decimal) *decimal.Decimal {
	distance := money.Div(money.Sub(price, sma), sma)
	atrPct := money.Div(atr, price)
	return money.Div(distance, atrPct)
}

// RMultiple is total P&L over the initial dollar risk (shares * OneR). Nil without a positive OneR.
func RMultiple(totalPnL decimal.Decimal, shares int64, oneR *decimal.Decimal) *decimal.Decimal {
	if !money.IsPositive(oneR) || shares <= 0 {
		return nil
	}
	risk := money.Shares(shares).Mul(*oneR)
	return money.Ptr(money.Ratio(totalPnL.Div(risk)))
}

// TradingDaysOpen counts the weekdays from the purchase date through asOf, less one for
// the entry day itself. A weekend purchase therefore shows 0 on the following Monday.
// Market holidays are not consulted. Never negative.
func TradingDaysOpen(purchaseDate, asOf time.Time) int {
	start := domain.Day(purchaseDate)
	end := domain.Day(asOf)
	if !end.After(start) {
		return 0
	}

	days := int(end.Sub(start).Hours()/24) + 1
	weeks := days / 7
	count := weeks * 5
	for d := start.AddDate(0, 0, weeks*7); !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return count - 1
}
