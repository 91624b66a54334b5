// Package metrics exposes Prometheus instrumentation for the journal.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RecalcTotal    *prometheus.CounterVec // labels: outcome
	RecalcDuration prometheus.Histogram

	MarketDataRequests *prometheus.CounterVec   // labels: provider, op, outcome
	MarketDataDuration *prometheus.HistogramVec // labels: provider, op
	CacheLookups       *prometheus.CounterVec   // labels: op, result

	RefreshRuns    prometheus.Counter
	RefreshResults *prometheus.CounterVec // labels: status
	ActiveTrades   prometheus.Gauge

	TransactionOps *prometheus.CounterVec // labels: op
}

// NewMetrics builds the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RecalcTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_recalculations_total",
			Help: "Recalculation passes by outcome",
		}, []string{"outcome"}),
		RecalcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "journal_recalculation_duration_seconds",
			Help:    "Time spent in one recalculation pass",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),

		MarketDataRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_marketdata_requests_total",
			Help: "Market data provider calls by provider, operation and outcome",
		}, []string{"provider", "op", "outcome"}),
		MarketDataDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "journal_marketdata_request_duration_seconds",
			Help:    "Market data provider latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "op"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_marketdata_cache_lookups_total",
			Help: "Market data cache lookups (hit, miss)",
		}, []string{"op", "result"}),

		RefreshRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_refresh_runs_total",
			Help: "Background refresh runs started",
		}),
		RefreshResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_refresh_results_total",
			Help: "Per-trade refresh results by fetch status",
		}, []string{"status"}),
		ActiveTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "journal_active_trades",
			Help: "OPEN and PARTIAL trades seen by the last refresh run",
		}),

		TransactionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_transaction_ops_total",
			Help: "Transaction mutations by operation",
		}, []string{"op"}),
	}

	m.registry.MustRegister(
		m.RecalcTotal,
		m.RecalcDuration,
		m.MarketDataRequests,
		m.MarketDataDuration,
		m.CacheLookups,
		m.RefreshRuns,
		m.RefreshResults,
		m.ActiveTrades,
		m.TransactionOps,
	)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRecalc records one pipeline pass.
func (m *Metrics) ObserveRecalc(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.RecalcTotal.WithLabelValues(outcome(err)).Inc()
	m.RecalcDuration.Observe(elapsed.Seconds())
}

// ObserveMarketData records one provider call.
func (m *Metrics) ObserveMarketData(provider, op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.MarketDataRequests.WithLabelValues(provider, op, outcome(err)).Inc()
	m.MarketDataDuration.WithLabelValues(provider, op).Observe(elapsed.Seconds())
}

// ObserveCache records a cache hit or miss.
func (m *Metrics) ObserveCache(op string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(op, result).Inc()
}

// ObserveRefreshRun marks the start of a refresh run over n active trades.
func (m *Metrics) ObserveRefreshRun(active int) {
	if m == nil {
		return
	}
	m.RefreshRuns.Inc()
	m.ActiveTrades.Set(float64(active))
}

// ObserveRefreshResult records one trade's refresh outcome.
func (m *Metrics) ObserveRefreshResult(status string) {
	if m == nil {
		return
	}
	m.RefreshResults.WithLabelValues(status).Inc()
}

// ObserveTransactionOp counts a transaction mutation.
func (m *Metrics) ObserveTransactionOp(op string) {
	if m == nil {
		return
	}
	m.TransactionOps.WithLabelValues(op).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates the metrics server. Start must be called to listen.
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine. Listen errors are passed to onErr.
func (s *Server) Start(onErr func(error)) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && onErr != nil {
			onErr(err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}
