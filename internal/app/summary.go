package app

import (
	"context"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/money"
	"threeStopJournal/internal/ports"

	"github.com/shopspring/decimal"
)

// Summary aggregates the journal.
type Summary struct {
	TotalTrades   int
	OpenTrades    int
	PartialTrades int
	ClosedTrades  int

	TotalRealizedPnL   decimal.Decimal
	TotalUnrealizedPnL decimal.Decimal
	TotalPnL           decimal.Decimal

	// Average over closed trades that have an R-multiple.
	AvgRMultiple *decimal.Decimal

	// Shares remaining at the current price, summed over trades with a price.
	TotalPositionValue decimal.Decimal

	// Sum of current portfolio percentages over OPEN and PARTIAL trades.
	PctPortfolioInvested decimal.Decimal

	DefaultPortfolioSize *decimal.Decimal
	StopBuffer           decimal.Decimal

	// Closed-trade statistics
	Winners      int
	Losers       int
	WinRate      *decimal.Decimal // percent of closed trades with positive P&L
	AvgWin       *decimal.Decimal
	AvgLoss      *decimal.Decimal
	ProfitFactor *decimal.Decimal // gross wins over gross losses
}

// Summary computes journal-wide totals from the stored derived fields.
func (s *JournalService) Summary(ctx context.Context) (*Summary, error) {
	trades, err := s.repo.List(ctx, ports.TradeFilter{})
	if err != nil {
		return nil, err
	}
	return summarize(trades, s.opts), nil
}

func summarize(trades []*domain.Trade, opts Options) *Summary {
	sum := &Summary{
		TotalTrades:          len(trades),
		TotalRealizedPnL:     decimal.Zero,
		TotalUnrealizedPnL:   decimal.Zero,
		TotalPnL:             decimal.Zero,
		TotalPositionValue:   decimal.Zero,
		PctPortfolioInvested: decimal.Zero,
		DefaultPortfolioSize: opts.DefaultPortfolioSize,
		StopBuffer:           opts.StopBuffer,
	}

	rTotal, rCount := decimal.Zero, 0
	grossWin, grossLoss := decimal.Zero, decimal.Zero
	for _, t := range trades {
		ro, m := t.Derived.Rollup, t.Derived.Metrics
		switch ro.Status {
		case domain.StatusOpen:
			sum.OpenTrades++
		case domain.StatusPartial:
			sum.PartialTrades++
		case domain.StatusClosed:
			sum.ClosedTrades++
		}

		sum.TotalRealizedPnL = sum.TotalRealizedPnL.Add(ro.RealizedPnL)
		sum.TotalUnrealizedPnL = sum.TotalUnrealizedPnL.Add(ro.UnrealizedPnL)
		sum.TotalPnL = sum.TotalPnL.Add(ro.TotalPnL)

		if t.Market.CurrentPrice != nil && ro.SharesRemaining > 0 {
			sum.TotalPositionValue = sum.TotalPositionValue.Add(money.Shares(ro.SharesRemaining).Mul(*t.Market.CurrentPrice))
		}
		if t.IsActive() && m.PctPortfolioCurrent != nil {
			sum.PctPortfolioInvested = sum.PctPortfolioInvested.Add(*m.PctPortfolioCurrent)
		}

		if ro.Status != domain.StatusClosed {
			continue
		}
		if m.RMultiple != nil {
			rTotal = rTotal.Add(*m.RMultiple)
			rCount++
		}
		switch {
		case ro.TotalPnL.IsPositive():
			sum.Winners++
			grossWin = grossWin.Add(ro.TotalPnL)
		case ro.TotalPnL.IsNegative():
			sum.Losers++
			grossLoss = grossLoss.Add(ro.TotalPnL.Abs())
		}
	}

	sum.TotalRealizedPnL = money.Money(sum.TotalRealizedPnL)
	sum.TotalUnrealizedPnL = money.Money(sum.TotalUnrealizedPnL)
	sum.TotalPnL = money.Money(sum.TotalPnL)
	sum.TotalPositionValue = money.Money(sum.TotalPositionValue)
	sum.PctPortfolioInvested = money.Ratio(sum.PctPortfolioInvested)

	if rCount > 0 {
		sum.AvgRMultiple = money.Ptr(money.Ratio(rTotal.Div(decimal.NewFromInt(int64(rCount)))))
	}
	if sum.ClosedTrades > 0 {
		sum.WinRate = money.Ptr(money.Ratio(decimal.NewFromInt(int64(sum.Winners)).
			Div(decimal.NewFromInt(int64(sum.ClosedTrades))).Mul(money.Hundred)))
	}
	if sum.Winners > 0 {
		sum.AvgWin = money.Ptr(money.Money(grossWin.Div(decimal.NewFromInt(int64(sum.Winners)))))
	}
	if sum.Losers > 0 {
		sum.AvgLoss = money.Ptr(money.Money(grossLoss.Div(decimal.NewFromInt(int64(sum.Losers))).Neg()))
	}
	if grossLoss.IsPositive() {
		sum.ProfitFactor = money.Ptr(money.Ratio(grossWin.Div(grossLoss)))
	}
	return sum
}
