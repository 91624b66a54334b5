package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/marketdata"
	"threeStopJournal/internal/ports"
	"threeStopJournal/internal/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// RefreshReport is the outcome of one bulk refresh run.
type RefreshReport struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Results  []RefreshResult // sorted by trade id
}

// Counts tallies results by fetch status; failed passes count under "error".
func (r *RefreshReport) Counts() map[string]int {
	counts := make(map[string]int)
	for _, res := range r.Results {
		if res.Err != nil {
			counts["error"]++
			continue
		}
		counts[string(res.Status)]++
	}
	return counts
}

// RefreshOpenTrades refreshes every OPEN and PARTIAL trade. Trades run in parallel on a
// bounded pool; one trade failing does not stop the others.
func (s *JournalService) RefreshOpenTrades(ctx context.Context) (*RefreshReport, error) {
	const op = "RefreshOpenTrades"
	report := &RefreshReport{RunID: uuid.NewString(), Started: s.now().UTC()}

	ctx, span := tracing.StartSpan(ctx, "journal.refresh_open_trades")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", report.RunID))

	var active []*domain.Trade
	for _, status := range []domain.TradeStatus{domain.StatusOpen, domain.StatusPartial} {
		trades, err := s.repo.List(ctx, ports.TradeFilter{Status: status})
		if err != nil {
			return nil, err
		}
		active = append(active, trades...)
	}
	s.metrics.ObserveRefreshRun(len(active))
	s.logger.Info(ctx, "Refresh run started", logFields(op, "", map[string]interface{}{
		"runID": report.RunID, "trades": len(active), "workers": s.opts.RefreshWorkers,
	}))

	jobs := make(chan string)
	results := make(chan RefreshResult, len(active))
	var wg sync.WaitGroup
	for w := 0; w < s.opts.RefreshWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tradeID := range jobs {
				results <- s.refreshOne(ctx, tradeID)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, t := range active {
			select {
			case jobs <- t.ID:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)
	for res := range results {
		report.Results = append(report.Results, res)
	}
	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].TradeID < report.Results[j].TradeID })
	report.Duration = time.Since(report.Started)

	s.logger.Info(ctx, "Refresh run finished", logFields(op, "", map[string]interface{}{
		"runID":    report.RunID,
		"counts":   report.Counts(),
		"duration": report.Duration.String(),
	}))
	return report, ctx.Err()
}

func (s *JournalService) refreshOne(ctx context.Context, tradeID string) RefreshResult {
	res, err := s.RefreshMarketData(ctx, tradeID)
	if err != nil {
		s.logger.Error(ctx, err, "Trade refresh failed", logFields("RefreshOpenTrades", tradeID))
		s.metrics.ObserveRefreshResult("error")
		return RefreshResult{TradeID: tradeID, Status: marketdata.Unavailable, Err: err}
	}
	return *res
}

const defaultRefreshInterval = 15 * time.Minute

// RunBackgroundRefresh calls RefreshOpenTrades every interval until ctx is done.
func (s *JournalService) RunBackgroundRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	s.logger.Info(ctx, "Background refresh started", map[string]interface{}{"interval": interval.String()})
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RefreshOpenTrades(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error(ctx, err, "Refresh run failed")
		}
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Background refresh stopped")
			return
		case <-ticker.C:
		}
	}
}
