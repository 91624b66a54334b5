package app

import (
	"context"
	"fmt"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/engine"
	"threeStopJournal/internal/marketdata"
	"threeStopJournal/internal/metrics"
	"threeStopJournal/internal/ports"
	"threeStopJournal/internal/tracing"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	maxTradeIDLength = 50
	maxTickerLength  = 20
	defaultWorkers   = 4
)

// Options are the service-wide calculation settings.
type Options struct {
	StopBuffer           decimal.Decimal  // fraction below the entry-day low for Stop3
	DefaultPortfolioSize *decimal.Decimal // applied at creation when the caller supplies none
	RefreshWorkers       int              // trades refreshed in parallel by RefreshOpenTrades
}

// JournalService orchestrates trades, exit transactions and their recalculation.
type JournalService struct {
	repo    ports.JournalRepository
	market  *marketdata.Service
	metrics *metrics.Metrics
	logger  ports.Logger
	opts    Options
	locks   *tradeLocks
	now     func() time.Time
}

// NewJournalService creates a new application service instance.
func NewJournalService(
	repo ports.JournalRepository,
	market *marketdata.Service,
	m *metrics.Metrics,
	logger ports.Logger,
	opts Options,
) (*JournalService, error) {

	// Validate dependencies
	if repo == nil || market == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for JournalService")
	}

	// Validate options
	if opts.StopBuffer.IsNegative() || opts.StopBuffer.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("stop buffer %s must be in [0, 1): %w", opts.StopBuffer, ports.ErrConfigurationError)
	}
	if opts.DefaultPortfolioSize != nil && !opts.DefaultPortfolioSize.IsPositive() {
		return nil, fmt.Errorf("default portfolio size must be positive: %w", ports.ErrConfigurationError)
	}
	if opts.RefreshWorkers <= 0 {
		opts.RefreshWorkers = defaultWorkers
	}

	return &JournalService{
		repo:    repo,
		market:  market,
		metrics: m,
		logger:  logger,
		opts:    opts,
		locks:   newTradeLocks(),
		now:     time.Now,
	}, nil
}

// Options returns the settings the service runs with.
func (s *JournalService) Options() Options {
	return s.opts
}

// recalculate runs the pipeline on trade in place. On error trade keeps its previous derived fields.
func (s *JournalService) recalculate(ctx context.Context, trade *domain.Trade, txns []*domain.Transaction) error {
	_, span := tracing.StartSpan(ctx, "journal.recalculate")
	defer span.End()
	span.SetAttributes(attribute.String("trade.id", trade.ID), attribute.Int("transactions", len(txns)))

	start := time.Now()
	err := engine.Apply(trade, txns, engine.Options{StopBuffer: s.opts.StopBuffer, AsOf: s.now()})
	s.metrics.ObserveRecalc(time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// loadTrade fetches a trade and fails with ErrNotFound when it is missing.
func (s *JournalService) loadTrade(ctx context.Context, id string) (*domain.Trade, error) {
	trade, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, fmt.Errorf("trade '%s': %w", id, ports.ErrNotFound)
	}
	return trade, nil
}

func (s *JournalService) loadTransactions(ctx context.Context, tradeID string) ([]*domain.Transaction, error) {
	return s.repo.ListTransactions(ctx, ports.TransactionFilter{TradeID: tradeID})
}

// logFields builds the common log context for an operation.
func logFields(op, tradeID string, extra ...map[string]interface{}) map[string]interface{} {
	fields := map[string]interface{}{"op": op}
	if tradeID != "" {
		fields["tradeID"] = tradeID
	}
	for _, e := range extra {
		for k, v := range e {
			fields[k] = v
		}
	}
	return fields
}
