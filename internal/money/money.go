// Package money holds the fixed-point helpers every journal formula routes through.
//
// Monetary amounts round to 2 fractional digits, prices, ratios and risk units to 4.
// Rounding is half away from zero (decimal.Round). Nullable values are *decimal.Decimal;
// helpers that divide return nil instead of panicking when an operand is missing or the
// divisor is zero, so callers check for nil rather than recover.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MoneyPlaces int32 = 2
	RatioPlaces int32 = 4
)

var (
	Zero    = decimal.Zero
	One     = decimal.NewFromInt(1)
	Hundred = decimal.NewFromInt(100)
)

// Money rounds to cents.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Ratio rounds to 4 fractional digits. Used for prices, risk units and percentages.
func Ratio(d decimal.Decimal) decimal.Decimal {
	return d.Round(RatioPlaces)
}

// MoneyPtr rounds a nullable value to cents, keeping nil as nil.
func MoneyPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	return Ptr(Money(*d))
}

// RatioPtr rounds a nullable value to 4 digits, keeping nil as nil.
func RatioPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	return Ptr(Ratio(*d))
}

// Ptr returns a pointer to a copy of d.
func Ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// Div divides a by b. Nil when either operand is nil or b is zero.
func Div(a, b *decimal.Decimal) *decimal.Decimal {
	if a == nil || b == nil || b.IsZero() {
		return nil
	}
	return Ptr(a.Div(*b))
}

// Sub returns a-b, nil if either is nil.
func Sub(a, b *decimal.Decimal) *decimal.Decimal {
	if a == nil || b == nil {
		return nil
	}
	return Ptr(a.Sub(*b))
}

// Mul returns a*b, nil if either is nil.
func Mul(a, b *decimal.Decimal) *decimal.Decimal {
	if a == nil || b == nil {
		return nil
	}
	return Ptr(a.Mul(*b))
}

// IsPositive reports whether d is present and strictly greater than zero.
func IsPositive(d *decimal.Decimal) bool {
	return d != nil && d.IsPositive()
}

// Shares converts a share count to a decimal.
func Shares(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// Equal compares two nullable values. Two nils are equal.
func Equal(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Parse reads an optional decimal. Blank input yields nil.
func Parse(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal '%s': %w", s, err)
	}
	return &d, nil
}

// String formats a nullable value for display; nil prints as "-".
func String(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

// Fixed formats a nullable value with a fixed number of places; nil prints as "".
func Fixed(d *decimal.Decimal, places int32) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(places)
}
