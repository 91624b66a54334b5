package engine

import (
	"testing"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exit(shares int64, price, fees string) *domain.Transaction {
	return &domain.Transaction{Shares: shares, Price: d(price), Fees: d(fees), Action: domain.ActionManual}
}

func TestProceeds(t *testing.T) {
	assertDec(t, "5249.00", Proceeds(50, d("105.00"), d("1.00")))
	assertDec(t, "33.34", Proceeds(3, d("11.1133"), d("0"))) // 33.3399 rounds to cents
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, domain.StatusOpen, StatusFor(100, 100))
	assert.Equal(t, domain.StatusPartial, StatusFor(100, 1))
	assert.Equal(t, domain.StatusClosed, StatusFor(100, 0))
}

func TestRollups(t *testing.T) {
	tests := []struct {
		name           string
		currentPrice   *string
		txns           []*domain.Transaction
		wantExited     int64
		wantStatus     domain.TradeStatus
		wantProceeds   string
		wantAvgExit    *string
		wantRealized   string
		wantUnrealized string
		wantTotal      string
	}{
		{
			name:           "partial exit",
			currentPrice:   strPtr("110.00"),
			txns:           []*domain.Transaction{exit(50, "105.00", "1.00")},
			wantExited:     50,
			wantStatus:     domain.StatusPartial,
			wantProceeds:   "5249.00",
			wantAvgExit:    strPtr("105"),
			wantRealized:   "249.00",
			wantUnrealized: "500.00",
			wantTotal:      "749.00",
		},
		{
			name:           "fully closed",
			currentPrice:   strPtr("110.00"),
			txns:           []*domain.Transaction{exit(50, "105.00", "1.00"), exit(50, "95.00", "0")},
			wantExited:     100,
			wantStatus:     domain.StatusClosed,
			wantProceeds:   "9999.00",
			wantAvgExit:    strPtr("100"),
			wantRealized:   "-1.00",
			wantUnrealized: "0",
			wantTotal:      "-1.00",
		},
		{
			name:           "no exits",
			currentPrice:   strPtr("98.50"),
			wantStatus:     domain.StatusOpen,
			wantProceeds:   "0",
			wantRealized:   "0",
			wantUnrealized: "-150.00",
			wantTotal:      "-150.00",
		},
		{
			name:           "no current price",
			txns:           []*domain.Transaction{exit(25, "120", "0")},
			wantExited:     25,
			wantStatus:     domain.StatusPartial,
			wantProceeds:   "3000.00",
			wantAvgExit:    strPtr("120"),
			wantRealized:   "500.00",
			wantUnrealized: "0",
			wantTotal:      "500.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Rollups(100, d("100.00"), optDec(tt.currentPrice), tt.txns)
			require.NoError(t, err)

			assert.Equal(t, tt.wantExited, r.SharesExited)
			assert.Equal(t, 100-tt.wantExited, r.SharesRemaining)
			assert.Equal(t, tt.wantStatus, r.Status)
			assertDec(t, tt.wantProceeds, r.TotalProceeds)
			if tt.wantAvgExit == nil {
				assert.Nil(t, r.AvgExitPrice)
			} else {
				assertDecPtr(t, *tt.wantAvgExit, r.AvgExitPrice)
			}
			assertDec(t, tt.wantRealized, r.RealizedPnL)
			assertDec(t, tt.wantUnrealized, r.UnrealizedPnL)
			assertDec(t, tt.wantTotal, r.TotalPnL)
		})
	}
}

func TestRollups_OverExit(t *testing.T) {
	_, err := Rollups(100, d("100"), nil, []*domain.Transaction{exit(60, "101", "0"), exit(50, "102", "0")})
	assert.ErrorIs(t, err, ports.ErrOverExit)
}

func TestRollups_SumsFees(t *testing.T) {
	r, err := Rollups(10, d("10"), nil, []*domain.Transaction{exit(5, "11", "0.50"), exit(5, "12", "0.25")})
	require.NoError(t, err)
	assertDec(t, "0.75", r.TotalFees)
	assertDec(t, "114.25", r.TotalProceeds)
	assertDecPtr(t, "11.5", r.AvgExitPrice)
}
