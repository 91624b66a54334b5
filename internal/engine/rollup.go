package engine

import (
	"fmt"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/money"
	"threeStopJournal/internal/ports"

	"github.com/shopspring/decimal"
)

// Proceeds is shares*price - fees, rounded to cents.
func Proceeds(shares int64, price, fees decimal.Decimal) decimal.Decimal {
	return money.Money(money.Shares(shares).Mul(price).Sub(fees))
}

// StatusFor maps shares remaining onto the trade status.
func StatusFor(shares, remaining int64) domain.TradeStatus {
	switch {
	case remaining == shares:
		return domain.StatusOpen
	case remaining == 0:
		return domain.StatusClosed
	default:
		return domain.StatusPartial
	}
}

// Rollups folds a trade's exits into share counts, proceeds, average exit and P&L.
// Exiting more shares than were bought is rejected with ports.ErrOverExit.
func Rollups(shares int64, purchasePrice decimal.Decimal, currentPrice *decimal.Decimal, txns []*domain.Transaction) (domain.Rollup, error) {
	if shares <= 0 {
		return domain.Rollup{}, fmt.Errorf("shares %d: %w", shares, ports.ErrNonPositiveInput)
	}

	var exited int64
	exitValue, proceeds, fees := decimal.Zero, decimal.Zero, decimal.Zero
	for _, txn := range txns {
		exited += txn.Shares
		exitValue = exitValue.Add(money.Shares(txn.Shares).Mul(txn.Price))
		proceeds = proceeds.Add(Proceeds(txn.Shares, txn.Price, txn.Fees))
		fees = fees.Add(txn.Fees)
	}

	remaining := shares - exited
	if remaining < 0 {
		return domain.Rollup{}, fmt.Errorf("bought %d, exited %d: %w", shares, exited, ports.ErrOverExit)
	}

	r := domain.Rollup{
		SharesExited:    exited,
		SharesRemaining: remaining,
		TotalProceeds:   money.Money(proceeds),
		TotalFees:       money.Money(fees),
		UnrealizedPnL:   decimal.Zero,
		Status:          StatusFor(shares, remaining),
	}
	if exited > 0 {
		r.AvgExitPrice = money.Ptr(money.Ratio(exitValue.Div(money.Shares(exited))))
	}
	r.RealizedPnL = money.Money(proceeds.Sub(money.Shares(exited).Mul(purchasePrice)))
	if remaining > 0 && currentPrice != nil {
		r.UnrealizedPnL = money.Money(money.Shares(remaining).Mul(currentPrice.Sub(purchasePrice)))
	}
	r.TotalPnL = money.Money(r.RealizedPnL.Add(r.UnrealizedPnL))
	return r, nil
}
