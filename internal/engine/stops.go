package engine

import (
	"fmt"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/money"
	"threeStopJournal/internal/ports"

	"github.com/shopspring/decimal"
)

// DefaultStopBuffer places Stop3 half a percent under the entry-day low.
var DefaultStopBuffer = decimal.RequireFromString("0.005")

var (
	two   = decimal.NewFromInt(2)
	three = decimal.NewFromInt(3)
)

// Stop3 picks the stop determinant: the manual override, else the entry-day low less the buffer.
// Returns nil when neither is known.
func Stop3(entryDayLow, override *decimal.Decimal, buffer decimal.Decimal) *decimal.Decimal {
	switch {
	case override != nil:
		return money.Ptr(*override)
	case entryDayLow != nil:
		return money.Ptr(entryDayLow.Mul(money.One.Sub(buffer)))
	default:
		return nil
	}
}

// Stops derives the three stop tiers, the risk unit and the 1R/2R/3R targets.
//
// An undetermined Stop3 is not an error: every level comes back nil.
// Stop3 at or above the purchase price is rejected with ports.ErrStopAboveEntry.
func Stops(purchasePrice decimal.Decimal, entryDayLow, override *decimal.Decimal, buffer decimal.Decimal) (domain.StopLevels, error) {
	if !purchasePrice.IsPositive() {
		return domain.StopLevels{}, fmt.Errorf("purchase price %s: %w", purchasePrice, ports.ErrNonPositiveInput)
	}

	stop3 := Stop3(entryDayLow, override, buffer)
	if stop3 == nil {
		return domain.StopLevels{}, nil
	}
	// Levels are stored at 4 places, so validate the stored Stop3.
	*stop3 = money.Ratio(*stop3)
	if stop3.GreaterThanOrEqual(purchasePrice) {
		return domain.StopLevels{}, fmt.Errorf("stop3 %s vs purchase price %s: %w",
			stop3, purchasePrice, ports.ErrStopAboveEntry)
	}

	oneR := purchasePrice.Sub(*stop3)
	levels := domain.StopLevels{
		Stop3: money.Ptr(*stop3),
		Stop2: money.Ptr(money.Ratio(purchasePrice.Sub(oneR.Mul(two).Div(three)))),
		Stop1: money.Ptr(money.Ratio(purchasePrice.Sub(oneR.Div(three)))),
		OneR:  money.Ptr(money.Ratio(oneR)),
		TP1R:  money.Ptr(money.Ratio(purchasePrice.Add(oneR))),
		TP2R:  money.Ptr(money.Ratio(purchasePrice.Add(oneR.Mul(two)))),
		TP3R:  money.Ptr(money.Ratio(purchasePrice.Add(oneR.Mul(three)))),
	}
	if !ordered(purchasePrice, levels) {
		return domain.StopLevels{}, fmt.Errorf("stop3 %s too close to purchase price %s for distinct stop tiers: %w",
			stop3, purchasePrice, ports.ErrStopAboveEntry)
	}
	if pct := money.Div(&oneR, stop3); pct != nil {
		levels.EntryPctAboveStop3 = money.Ptr(money.Ratio(pct.Mul(money.Hundred)))
	}
	return levels, nil
}

// ordered reports Stop3 < Stop2 < Stop1 < PP and TP1R < TP2R < TP3R after rounding.
func ordered(purchasePrice decimal.Decimal, l domain.StopLevels) bool {
	return l.Stop3.LessThan(*l.Stop2) && l.Stop2.LessThan(*l.Stop1) && l.Stop1.LessThan(purchasePrice) &&
		l.OneR.IsPositive() && l.TP1R.LessThan(*l.TP2R) && l.TP2R.LessThan(*l.TP3R)
}
