package marketdata

import (
	"bytes"
	"context"
	"testing"

	"threeStopJournal/internal/metrics"
	"threeStopJournal/internal/ports"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Route(t *testing.T) {
	equities := &mockProvider{name: "polygon"}
	crypto := &mockProvider{name: "binance"}
	r := NewRouter(equities, crypto, []string{"usdt", " BUSD ", ""})

	tests := []struct {
		ticker string
		want   string
	}{
		{"AAPL", "polygon"},
		{"BTCUSDT", "binance"},
		{"ethbusd", "binance"},
		{"USDT", "polygon"}, // the suffix alone is not a pair
		{"TSLA", "polygon"},
	}
	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Route(tt.ticker).Name())
		})
	}
}

func TestRouter_WithoutCrypto(t *testing.T) {
	equities := &mockProvider{name: "polygon", price: decimal.NewFromInt(5)}
	r := NewRouter(equities, nil, []string{"USDT"})

	price, err := r.CurrentPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, []string{"BTCUSDT"}, equities.priceFor)
}

type recordingLogger struct {
	ports.NopLogger
	buf bytes.Buffer
}

func (l *recordingLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.buf.WriteString(msg + "\n")
}

func TestObserved_RecordsCalls(t *testing.T) {
	m := metrics.NewMetrics()
	log := &recordingLogger{}
	inner := &mockProvider{name: "polygon", price: decimal.NewFromInt(1), barsErr: ports.ErrRateLimited}
	o := NewObserved(inner, m, log)

	assert.Equal(t, "polygon", o.Name())

	_, err := o.CurrentPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	_, err = o.DailyBars(context.Background(), "AAPL", now, now)
	assert.ErrorIs(t, err, ports.ErrRateLimited)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MarketDataRequests.WithLabelValues("polygon", "price", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MarketDataRequests.WithLabelValues("polygon", "bars", "error")))
	assert.Contains(t, log.buf.String(), "Market data call failed")
}
