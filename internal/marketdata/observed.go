package marketdata

import (
	"context"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/metrics"
	"threeStopJournal/internal/ports"
	"threeStopJournal/internal/tracing"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Observed wraps a provider with a span, Prometheus timings and a debug log per call.
type Observed struct {
	next    ports.MarketDataProvider
	metrics *metrics.Metrics
	logger  ports.Logger
}

// NewObserved decorates next. m may be nil.
func NewObserved(next ports.MarketDataProvider, m *metrics.Metrics, logger ports.Logger) *Observed {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &Observed{next: next, metrics: m, logger: logger}
}

func (o *Observed) Name() string { return o.next.Name() }

func (o *Observed) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	ctx, done := o.start(ctx, "price", ticker)
	price, err := o.next.CurrentPrice(ctx, ticker)
	done(err, map[string]interface{}{"price": price.String()})
	return price, err
}

func (o *Observed) DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]*domain.Bar, error) {
	ctx, done := o.start(ctx, "bars", ticker,
		attribute.String("from", from.Format("2006-01-02")),
		attribute.String("to", to.Format("2006-01-02")))
	bars, err := o.next.DailyBars(ctx, ticker, from, to)
	done(err, map[string]interface{}{"bars": len(bars)})
	return bars, err
}

func (o *Observed) start(ctx context.Context, op, ticker string, attrs ...attribute.KeyValue) (context.Context, func(error, map[string]interface{})) {
	provider := o.next.Name()
	ctx, span := tracing.StartSpan(ctx, "marketdata."+op)
	span.SetAttributes(append(attrs,
		attribute.String("provider", provider),
		attribute.String("ticker", ticker))...)
	started := time.Now()

	return ctx, func(err error, fields map[string]interface{}) {
		elapsed := time.Since(started)
		o.metrics.ObserveMarketData(provider, op, elapsed, err)

		fields["provider"] = provider
		fields["ticker"] = ticker
		fields["elapsed_ms"] = elapsed.Milliseconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.logger.Debug(ctx, "Market data call failed", mergeError(fields, err))
		} else {
			o.logger.Debug(ctx, "Market data call", fields)
		}
		span.End()
	}
}

func mergeError(fields map[string]interface{}, err error) map[string]interface{} {
	fields["error"] = err.Error()
	return fields
}
