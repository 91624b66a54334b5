package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBars(t *testing.T) {
	d1 := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	first := &Bar{Date: d2, Close: decimal.NewFromInt(1)}
	replaced := &Bar{Date: d2.Add(2 * time.Hour), Close: decimal.NewFromInt(2)}
	earlier := &Bar{Date: d1, Close: decimal.NewFromInt(3)}

	out := NormalizeBars([]*Bar{first, nil, earlier, replaced})

	require.Len(t, out, 2)
	assert.Equal(t, Day(d1), out[0].Date)
	assert.True(t, out[0].Close.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, d2, out[1].Date)
	assert.True(t, out[1].Close.Equal(decimal.NewFromInt(2)), "last bar for a day wins")

	assert.Empty(t, NormalizeBars(nil))

	assert.Equal(t, d1, earlier.Date, "input bars keep their timestamps")
	assert.Equal(t, d2.Add(2*time.Hour), replaced.Date)
	assert.NotSame(t, earlier, out[0])
}

func TestParseTradeStatus(t *testing.T) {
	for _, s := range []string{"OPEN", "PARTIAL", "CLOSED"} {
		st, err := ParseTradeStatus(s)
		require.NoError(t, err)
		assert.Equal(t, TradeStatus(s), st)
	}
	_, err := ParseTradeStatus("open")
	assert.Error(t, err)
}

func TestParseExitAction(t *testing.T) {
	tests := []struct {
		in      string
		want    ExitAction
		wantErr bool
	}{
		{"Stop1", ActionStop1, false},
		{"TP3", ActionTP3, false},
		{"Manual", ActionManual, false},
		{"Other", ActionOther, false},
		{"stop1", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExitAction(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Len(t, ExitActions(), 8)
}

func TestTradeClone(t *testing.T) {
	low := decimal.NewFromInt(98)
	price := decimal.NewFromInt(110)
	ts := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	orig := &Trade{
		ID:          "AAPL-001",
		EntryDayLow: &low,
		Market:      MarketSnapshot{CurrentPrice: &price, UpdatedAt: &ts},
	}
	orig.Derived.Rollup.Status = StatusPartial

	c := orig.Clone()
	*c.EntryDayLow = decimal.NewFromInt(1)
	*c.Market.CurrentPrice = decimal.NewFromInt(1)
	*c.Market.UpdatedAt = ts.AddDate(1, 0, 0)

	assert.True(t, orig.EntryDayLow.Equal(decimal.NewFromInt(98)))
	assert.True(t, orig.Market.CurrentPrice.Equal(decimal.NewFromInt(110)))
	assert.Equal(t, ts, *orig.Market.UpdatedAt)
	assert.True(t, c.IsActive())
	assert.Nil(t, (*Trade)(nil).Clone())
}
