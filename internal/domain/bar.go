package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one trading day of OHLCV data. Series are ascending by Date with one bar per day.
type Bar struct {
	Ticker string    // Symbol the bar belongs to
	Date   time.Time // Trading day, truncated to midnight UTC
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeBars returns copies of bars sorted ascending by day, keeping the last bar seen
// for each day. The input is left untouched.
func NormalizeBars(bars []*Bar) []*Bar {
	byDay := make(map[time.Time]int, len(bars))
	out := make([]*Bar, 0, len(bars))
	for _, b := range bars {
		if b == nil {
			continue
		}
		c := *b
		c.Date = Day(b.Date)
		if i, ok := byDay[c.Date]; ok {
			out[i] = &c
			continue
		}
		byDay[c.Date] = len(out)
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
