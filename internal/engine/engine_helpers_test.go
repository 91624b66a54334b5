package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func strPtr(s string) *string { return &s }

func optDec(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	return dp(*s)
}

// assertDec compares decimals by value, so "97.51" matches "97.5100".
func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func assertDecPtr(t *testing.T, want string, got *decimal.Decimal) {
	t.Helper()
	if assert.NotNil(t, got, "want %s, got nil", want) {
		assertDec(t, want, *got)
	}
}
