package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/marketdata"
	"threeStopJournal/internal/metrics"
	"threeStopJournal/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	purchaseDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) // Friday
	fixedNow     = time.Date(2024, 3, 8, 14, 0, 0, 0, time.UTC) // five weekdays later
)

func dec(s string) decimal.Decimal   { return decimal.RequireFromString(s) }
func decp(s string) *decimal.Decimal { d := dec(s); return &d }

// assertDec compares decimals by value so 97.51 and 97.5100 are equal.
func assertDec(t *testing.T, want string, got *decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !assert.NotNil(t, got, msgAndArgs...) {
		return
	}
	assert.True(t, dec(want).Equal(*got), "want %s, got %s", want, got.String())
}

// Mock implementations

type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

func (m *mockLogger) warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.warnMsgs...)
}

// fakeProvider serves a fixed price and a flat daily series: high 11, low 9, close 10.
// That makes ATR14 2 and both SMAs 10 whatever window is requested.
type fakeProvider struct {
	mu       sync.Mutex
	price    decimal.Decimal
	priceErr error
	barsErr  error

	priceCalls atomic.Int64
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) set(price string, priceErr, barsErr error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if price != "" {
		p.price = dec(price)
	}
	p.priceErr, p.barsErr = priceErr, barsErr
}

func (p *fakeProvider) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	p.priceCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.price, p.priceErr
}

func (p *fakeProvider) DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]*domain.Bar, error) {
	p.mu.Lock()
	barsErr := p.barsErr
	p.mu.Unlock()
	if barsErr != nil {
		return nil, barsErr
	}

	var bars []*domain.Bar
	end := domain.Day(to)
	for d := end.AddDate(0, 0, -80); !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		bars = append(bars, &domain.Bar{
			Ticker: ticker,
			Date:   d,
			Open:   decimal.NewFromInt(10),
			High:   decimal.NewFromInt(11),
			Low:    decimal.NewFromInt(9),
			Close:  decimal.NewFromInt(10),
			Volume: decimal.NewFromInt(1000),
		})
	}
	return bars, nil
}

// memRepo is an in-memory JournalRepository. Values are cloned on the way in and out.
type memRepo struct {
	mu      sync.Mutex
	trades  map[string]*domain.Trade
	txns    map[string]*domain.Transaction
	saveErr map[string]error // per trade id
	listErr error
	saves   int
}

func newMemRepo() *memRepo {
	return &memRepo{
		trades:  make(map[string]*domain.Trade),
		txns:    make(map[string]*domain.Transaction),
		saveErr: make(map[string]error),
	}
}

func (r *memRepo) Create(ctx context.Context, trade *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trades[trade.ID]; ok {
		return ports.ErrDuplicateEntry
	}
	r.trades[trade.ID] = trade.Clone()
	return nil
}

func (r *memRepo) save(trade *domain.Trade) error {
	if err := r.saveErr[trade.ID]; err != nil {
		return err
	}
	if _, ok := r.trades[trade.ID]; !ok {
		return ports.ErrNotFound
	}
	r.trades[trade.ID] = trade.Clone()
	r.saves++
	return nil
}

func (r *memRepo) Save(ctx context.Context, trade *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(trade)
}

func (r *memRepo) FindByID(ctx context.Context, id string) (*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trades[id].Clone(), nil
}

func (r *memRepo) List(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*domain.Trade
	for _, t := range r.trades {
		if filter.Status != "" && t.Status() != filter.Status {
			continue
		}
		if filter.Ticker != "" && t.Ticker != filter.Ticker {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchaseDate.Equal(out[j].PurchaseDate) {
			return out[i].PurchaseDate.After(out[j].PurchaseDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trades[id]; !ok {
		return ports.ErrNotFound
	}
	delete(r.trades, id)
	for txnID, txn := range r.txns {
		if txn.TradeID == id {
			delete(r.txns, txnID)
		}
	}
	return nil
}

func (r *memRepo) CreateTransaction(ctx context.Context, txn *domain.Transaction, trade *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txns[txn.ID]; ok {
		return ports.ErrDuplicateEntry
	}
	if err := r.save(trade); err != nil {
		return err
	}
	r.txns[txn.ID] = txn.Clone()
	return nil
}

func (r *memRepo) UpdateTransaction(ctx context.Context, txn *domain.Transaction, trade *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txns[txn.ID]; !ok {
		return ports.ErrNotFound
	}
	if err := r.save(trade); err != nil {
		return err
	}
	r.txns[txn.ID] = txn.Clone()
	return nil
}

func (r *memRepo) DeleteTransaction(ctx context.Context, id string, trade *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txns[id]; !ok {
		return ports.ErrNotFound
	}
	if err := r.save(trade); err != nil {
		return err
	}
	delete(r.txns, id)
	return nil
}

func (r *memRepo) ImportTransactions(ctx context.Context, txns []*domain.Transaction, trades []*domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, txn := range txns {
		if _, ok := r.txns[txn.ID]; ok {
			return ports.ErrDuplicateEntry
		}
	}
	for _, t := range trades {
		if _, ok := r.trades[t.ID]; !ok {
			return ports.ErrNotFound
		}
	}
	for _, t := range trades {
		if err := r.save(t); err != nil {
			return err
		}
	}
	for _, txn := range txns {
		r.txns[txn.ID] = txn.Clone()
	}
	return nil
}

func (r *memRepo) FindTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txns[id].Clone(), nil
}

func (r *memRepo) ListTransactions(ctx context.Context, filter ports.TransactionFilter) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, txn := range r.txns {
		if filter.TradeID != "" && txn.TradeID != filter.TradeID {
			continue
		}
		out = append(out, txn.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.ExitDate.Equal(b.ExitDate) {
			return a.ExitDate.Before(b.ExitDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r *memRepo) Close() error { return nil }

func (r *memRepo) transactionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.txns)
}

type fixture struct {
	svc      *JournalService
	repo     *memRepo
	logger   *mockLogger
	metrics  *metrics.Metrics
	provider *fakeProvider // nil when market data is disabled
}

func testOptions() Options {
	return Options{
		StopBuffer:           dec("0.005"),
		DefaultPortfolioSize: decp("100000"),
		RefreshWorkers:       2,
	}
}

// newFixture builds a service over memRepo. withMarket wires a fakeProvider quoting 110.
func newFixture(t *testing.T, withMarket bool) *fixture {
	t.Helper()
	f := &fixture{repo: newMemRepo(), logger: &mockLogger{}, metrics: metrics.NewMetrics()}

	var provider ports.MarketDataProvider
	if withMarket {
		f.provider = &fakeProvider{price: dec("110")}
		provider = f.provider
	}
	market := marketdata.NewService(provider, ports.NopLogger{}, marketdata.Config{})

	svc, err := NewJournalService(f.repo, market, f.metrics, f.logger, testOptions())
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }
	f.svc = svc
	return f
}

// addTrade creates a 100-share trade at 100 with an entry-day low of 98 (Stop3 97.51).
func (f *fixture) addTrade(t *testing.T, id, ticker string) *domain.Trade {
	t.Helper()
	res, err := f.svc.CreateTrade(context.Background(), NewTrade{
		ID:            id,
		Ticker:        ticker,
		PurchaseDate:  purchaseDate,
		PurchasePrice: dec("100"),
		Shares:        100,
		EntryDayLow:   decp("98"),
	})
	require.NoError(t, err)
	return res.Trade
}

func TestNewJournalService(t *testing.T) {
	repo := newMemRepo()
	market := marketdata.NewService(nil, nil, marketdata.Config{})
	logger := &mockLogger{}

	tests := []struct {
		name    string
		repo    ports.JournalRepository
		market  *marketdata.Service
		logger  ports.Logger
		opts    Options
		wantErr bool
		wantIs  error
	}{
		{name: "valid", repo: repo, market: market, logger: logger, opts: testOptions()},
		{name: "no default portfolio", repo: repo, market: market, logger: logger, opts: Options{StopBuffer: dec("0")}},
		{name: "nil repo", market: market, logger: logger, opts: testOptions(), wantErr: true},
		{name: "nil market", repo: repo, logger: logger, opts: testOptions(), wantErr: true},
		{name: "nil logger", repo: repo, market: market, opts: testOptions(), wantErr: true},
		{
			name: "negative buffer", repo: repo, market: market, logger: logger,
			opts: Options{StopBuffer: dec("-0.01")}, wantErr: true, wantIs: ports.ErrConfigurationError,
		},
		{
			name: "buffer of one", repo: repo, market: market, logger: logger,
			opts: Options{StopBuffer: dec("1")}, wantErr: true, wantIs: ports.ErrConfigurationError,
		},
		{
			name: "zero default portfolio", repo: repo, market: market, logger: logger,
			opts:    Options{StopBuffer: dec("0.005"), DefaultPortfolioSize: decp("0")},
			wantErr: true, wantIs: ports.ErrConfigurationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewJournalService(tt.repo, tt.market, nil, tt.logger, tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, svc)
				if tt.wantIs != nil {
					assert.ErrorIs(t, err, tt.wantIs)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, defaultWorkers, svc.Options().RefreshWorkers)
		})
	}
}

func TestTradeLocks(t *testing.T) {
	locks := newTradeLocks()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("AAPL-001")
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load(), "two holders of the same trade lock")
	assert.Equal(t, 0, locks.size(), "unused locks are dropped")
}

func TestTradeLocks_LockAll(t *testing.T) {
	locks := newTradeLocks()

	// Opposite orders and a repeated id must not deadlock.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		ids := []string{"A", "B", "C", "A"}
		if i%2 == 1 {
			ids = []string{"C", "B", "A"}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.LockAll(ids)
			unlock()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("LockAll deadlocked")
	}
	assert.Equal(t, 0, locks.size())
}

func TestLogFields(t *testing.T) {
	fields := logFields("CreateTrade", "AAPL-001", map[string]interface{}{"ticker": "AAPL"})
	assert.Equal(t, map[string]interface{}{"op": "CreateTrade", "tradeID": "AAPL-001", "ticker": "AAPL"}, fields)

	fields = logFields("RefreshOpenTrades", "")
	_, ok := fields["tradeID"]
	assert.False(t, ok, fmt.Sprintf("unexpected tradeID in %v", fields))
}
