package engine

import (
	"testing"

	"threeStopJournal/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStops_FromEntryDayLow(t *testing.T) {
	levels, err := Stops(d("100.00"), dp("98.00"), nil, DefaultStopBuffer)
	require.NoError(t, err)

	assert.True(t, levels.Determined())
	assertDecPtr(t, "97.5100", levels.Stop3)
	assertDecPtr(t, "2.4900", levels.OneR)
	assertDecPtr(t, "98.3400", levels.Stop2)
	assertDecPtr(t, "99.1700", levels.Stop1)
	assertDecPtr(t, "102.4900", levels.TP1R)
	assertDecPtr(t, "104.9800", levels.TP2R)
	assertDecPtr(t, "107.4700", levels.TP3R)
	assertDecPtr(t, "2.5536", levels.EntryPctAboveStop3) // 2.49 / 97.51 * 100
}

func TestStops_OverrideWins(t *testing.T) {
	levels, err := Stops(d("100.00"), dp("98.00"), dp("95.00"), DefaultStopBuffer)
	require.NoError(t, err)

	assertDecPtr(t, "95.0000", levels.Stop3)
	assertDecPtr(t, "5.0000", levels.OneR)
	assertDecPtr(t, "96.6667", levels.Stop2)
	assertDecPtr(t, "98.3333", levels.Stop1)
	assertDecPtr(t, "115.0000", levels.TP3R)
}

func TestStops_Undetermined(t *testing.T) {
	levels, err := Stops(d("100"), nil, nil, DefaultStopBuffer)
	require.NoError(t, err)

	assert.False(t, levels.Determined())
	assert.Nil(t, levels.OneR)
	assert.Nil(t, levels.Stop1)
	assert.Nil(t, levels.TP3R)
	assert.Nil(t, levels.EntryPctAboveStop3)
}

func TestStops_Errors(t *testing.T) {
	tests := []struct {
		name     string
		pp       string
		override *string
		lod      *string
		wantErr  error
	}{
		{"override equal to entry", "100", strPtr("100"), nil, ports.ErrStopAboveEntry},
		{"override above entry", "100", strPtr("101"), nil, ports.ErrStopAboveEntry},
		{"low far above entry", "100", nil, strPtr("120"), ports.ErrStopAboveEntry},
		{"zero purchase price", "0", nil, strPtr("1"), ports.ErrNonPositiveInput},
		{"override rounds to entry", "100", strPtr("99.99999"), nil, ports.ErrStopAboveEntry},
		{"tiers collapse at 4 places", "100", strPtr("99.9999"), nil, ports.ErrStopAboveEntry},
		{"low rounds to entry", "100", nil, strPtr("100.50251"), ports.ErrStopAboveEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Stops(d(tt.pp), optDec(tt.lod), optDec(tt.override), DefaultStopBuffer)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStop3_ZeroBuffer(t *testing.T) {
	assertDecPtr(t, "98", Stop3(dp("98"), nil, d("0")))
	assert.Nil(t, Stop3(nil, nil, DefaultStopBuffer))
}

func TestStops_Ordering(t *testing.T) {
	tests := []struct {
		pp, lod  string
		override *string
	}{
		{"100", "98", nil},
		{"100", "98", strPtr("95")},
		{"12.3456", "12.30", nil},
		{"0.5", "0.45", nil},
		{"250.75", "1", nil},
		{"100", "99.9", nil},
		{"100", "1", strPtr("99.9997")},
		{"3333.33", "3000", strPtr("3200.005")},
		{"100.00001", "50", strPtr("99.99")},
	}

	for _, tt := range tests {
		t.Run(tt.pp+"/"+tt.lod, func(t *testing.T) {
			pp := d(tt.pp)
			l, err := Stops(pp, dp(tt.lod), optDec(tt.override), DefaultStopBuffer)
			require.NoError(t, err)
			require.True(t, l.Determined())

			assert.True(t, l.Stop3.LessThan(*l.Stop2), "stop3 %s < stop2 %s", l.Stop3, l.Stop2)
			assert.True(t, l.Stop2.LessThan(*l.Stop1), "stop2 %s < stop1 %s", l.Stop2, l.Stop1)
			assert.True(t, l.Stop1.LessThan(pp), "stop1 %s < pp %s", l.Stop1, pp)
			assert.True(t, pp.LessThan(*l.TP1R), "pp %s < tp1 %s", pp, l.TP1R)
			assert.True(t, l.TP1R.LessThan(*l.TP2R), "tp1 %s < tp2 %s", l.TP1R, l.TP2R)
			assert.True(t, l.TP2R.LessThan(*l.TP3R), "tp2 %s < tp3 %s", l.TP2R, l.TP3R)
			assert.True(t, l.OneR.IsPositive())
		})
	}
}
