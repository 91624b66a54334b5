package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRounding_HalfAwayFromZero(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		money string
		ratio string
	}{
		{"exact", "1.5", "1.50", "1.5000"},
		{"tie up at cents", "2.345", "2.35", "2.3450"},
		{"tie down below half", "2.3449", "2.34", "2.3449"},
		{"negative tie", "-2.345", "-2.35", "-2.3450"},
		{"ratio tie", "0.12345", "0.12", "0.1235"},
		{"negative ratio tie", "-0.12345", "-0.12", "-0.1235"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Money(d(tt.in)).Equal(d(tt.money)), "money: got %s", Money(d(tt.in)))
			assert.True(t, Ratio(d(tt.in)).Equal(d(tt.ratio)), "ratio: got %s", Ratio(d(tt.in)))
		})
	}
}

func TestDiv_NullSafe(t *testing.T) {
	ten := Ptr(d("10"))
	four := Ptr(d("4"))
	zero := Ptr(decimal.Zero)

	assert.Nil(t, Div(nil, four))
	assert.Nil(t, Div(ten, nil))
	assert.Nil(t, Div(ten, zero))

	got := Div(ten, four)
	require.NotNil(t, got)
	assert.True(t, got.Equal(d("2.5")))
}

func TestSubMul_NullPropagation(t *testing.T) {
	a := Ptr(d("3"))
	assert.Nil(t, Sub(a, nil))
	assert.Nil(t, Mul(nil, a))
	assert.True(t, Sub(a, Ptr(d("1"))).Equal(d("2")))
	assert.True(t, Mul(a, Ptr(d("2"))).Equal(d("6")))
}

func TestPtrRounding(t *testing.T) {
	assert.Nil(t, MoneyPtr(nil))
	assert.Nil(t, RatioPtr(nil))
	assert.True(t, MoneyPtr(Ptr(d("1.005"))).Equal(d("1.01")))
	assert.True(t, RatioPtr(Ptr(d("1.00005"))).Equal(d("1.0001")))
}

func TestParse(t *testing.T) {
	v, err := Parse("  ")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = Parse("98.50")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, v.Equal(d("98.5")))

	_, err = Parse("abc")
	assert.Error(t, err)
}

func TestEqualAndFormatting(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, Ptr(d("1"))))
	assert.True(t, Equal(Ptr(d("1.0")), Ptr(d("1"))))
	assert.False(t, IsPositive(nil))
	assert.False(t, IsPositive(Ptr(decimal.Zero)))
	assert.True(t, IsPositive(Ptr(d("0.01"))))
	assert.Equal(t, "-", String(nil))
	assert.Equal(t, "", Fixed(nil, 2))
	assert.Equal(t, "97.5100", Fixed(Ptr(d("97.51")), 4))
}
