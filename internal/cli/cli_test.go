package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"threeStopJournal/config"
	"threeStopJournal/internal/adapters/logger"
	"threeStopJournal/internal/bootstrap"
	"threeStopJournal/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRoot returns a RootConfig backed by a fresh SQLite journal without market data.
func newTestRoot(t *testing.T) *RootConfig {
	t.Helper()
	portfolio := decimal.NewFromInt(100000)
	cfg := &config.Config{
		StopBuffer:           decimal.RequireFromString("0.005"),
		DefaultPortfolioSize: &portfolio,
		StoreDriver:          config.DriverSQLite,
		DBPath:               filepath.Join(t.TempDir(), "journal.db"),
		MarketDataTimeout:    time.Second,
		EntryLookbackDays:    100,
		CurrentLookbackDays:  120,
		RefreshWorkers:       2,
		LogLevel:             logger.LevelError,
	}
	rc := &RootConfig{
		Open: func(*RootConfig) (*bootstrap.App, error) { return bootstrap.New(cfg) },
	}
	// A failed command skips PersistentPostRunE and leaves the app open.
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

func run(t *testing.T, rc *RootConfig, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewRootCmd(rc)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func mustRun(t *testing.T, rc *RootConfig, args ...string) string {
	t.Helper()
	out, err := run(t, rc, args...)
	require.NoError(t, err, out)
	return out
}

func addAAPL(t *testing.T, rc *RootConfig) {
	t.Helper()
	mustRun(t, rc, "trade", "add", "--id", "AAPL-001", "--ticker", "aapl",
		"--date", "2024-03-01", "--price", "100", "--shares", "100", "--low", "98")
}

func TestTradeAddAndShow(t *testing.T) {
	rc := newTestRoot(t)

	out := mustRun(t, rc, "trade", "add", "--id", "AAPL-001", "--ticker", "aapl",
		"--date", "2024-03-01", "--price", "100", "--shares", "100", "--low", "98")
	assert.Contains(t, out, "Created trade AAPL-001 (market data: current not_fetched, entry not_fetched)")
	assert.Contains(t, out, "97.51 / 98.34 / 99.17")
	assert.Contains(t, out, "102.49")

	out = mustRun(t, rc, "trade", "show", "AAPL-001")
	assert.Contains(t, out, "Ticker:")
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "OPEN")

	out = mustRun(t, rc, "trade", "list")
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "AAPL-001")

	out = mustRun(t, rc, "trade", "list", "--status", "closed")
	assert.NotContains(t, out, "AAPL-001")
}

func TestTradeAdd_Errors(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		wantIs error
	}{
		{"bad date", []string{"--date", "03/01/2024", "--price", "100"}, ports.ErrInvalidRequest},
		{"bad price", []string{"--date", "2024-03-01", "--price", "abc"}, ports.ErrInvalidRequest},
		{"negative price", []string{"--date", "2024-03-01", "--price", "-1"}, ports.ErrNonPositiveInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := newTestRoot(t)
			args := append([]string{"trade", "add", "--id", "X-1", "--ticker", "X", "--shares", "10"}, tt.args...)
			_, err := run(t, rc, args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
		})
	}

	t.Run("duplicate id", func(t *testing.T) {
		rc := newTestRoot(t)
		addAAPL(t, rc)
		_, err := run(t, rc, "trade", "add", "--id", "AAPL-001", "--ticker", "AAPL",
			"--date", "2024-03-01", "--price", "100", "--shares", "100")
		assert.ErrorIs(t, err, ports.ErrDuplicateEntry)
	})
}

func TestTradeEditAndDelete(t *testing.T) {
	rc := newTestRoot(t)
	addAAPL(t, rc)

	out := mustRun(t, rc, "trade", "edit", "AAPL-001", "--stop", "95")
	assert.Contains(t, out, "95 / 96.67 / 98.33")

	out = mustRun(t, rc, "trade", "edit", "AAPL-001", "--clear-stop")
	assert.Contains(t, out, "97.51")

	_, err := run(t, rc, "trade", "edit", "AAPL-001", "--stop", "95", "--clear-stop")
	assert.Error(t, err)

	out = mustRun(t, rc, "trade", "delete", "AAPL-001")
	assert.Contains(t, out, "Deleted trade AAPL-001")

	_, err = run(t, rc, "trade", "show", "AAPL-001")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestTradeRefresh_Args(t *testing.T) {
	rc := newTestRoot(t)

	_, err := run(t, rc, "trade", "refresh")
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	_, err = run(t, rc, "trade", "refresh", "AAPL-001", "--all")
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	addAAPL(t, rc)
	out := mustRun(t, rc, "trade", "refresh", "AAPL-001")
	assert.Contains(t, out, "AAPL-001: not_fetched")

	out = mustRun(t, rc, "trade", "refresh", "--all")
	assert.Contains(t, out, "Refreshed 1 trades")
}

func TestTransactionsFlow(t *testing.T) {
	rc := newTestRoot(t)
	addAAPL(t, rc)

	out := mustRun(t, rc, "txn", "add", "--trade", "AAPL-001", "--date", "2024-03-05",
		"--action", "TP1", "--shares", "50", "--price", "105", "--fees", "1")
	assert.Contains(t, out, "proceeds 5249.00")
	assert.Contains(t, out, "Trade AAPL-001 is PARTIAL: 50 shares left, realized 249.00")

	_, err := run(t, rc, "txn", "add", "--trade", "AAPL-001", "--date", "2024-03-06",
		"--action", "Stop1", "--shares", "51", "--price", "99")
	assert.ErrorIs(t, err, ports.ErrOverExit)

	_, err = run(t, rc, "txn", "add", "--trade", "AAPL-001", "--date", "2024-03-06",
		"--action", "Panic", "--shares", "1", "--price", "99")
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	out = mustRun(t, rc, "txn", "list", "--trade", "AAPL-001")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	txnID := strings.Fields(lines[1])[0]

	out = mustRun(t, rc, "txn", "edit", txnID, "--shares", "100")
	assert.Contains(t, out, "Trade AAPL-001 is CLOSED: 0 shares left")

	out = mustRun(t, rc, "summary")
	assert.Contains(t, out, "Trades:")
	assert.Contains(t, out, "closed 1")

	out = mustRun(t, rc, "txn", "delete", txnID)
	assert.Contains(t, out, "Trade AAPL-001 is OPEN: 100 shares left")
}

func TestTxnImport(t *testing.T) {
	rc := newTestRoot(t)
	addAAPL(t, rc)

	path := filepath.Join(t.TempDir(), "exits.csv")
	content := "trade_id,exit_date,action,shares,price,fees\n" +
		"AAPL-001,2024-03-05,TP1,50,105,1\n" +
		"AAPL-001,2024-03-06,TP2,50,107.50,1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	out := mustRun(t, rc, "txn", "import", path)
	assert.Contains(t, out, "Imported 2 transactions across 1 trades")
	assert.Contains(t, out, "CLOSED")

	_, err := run(t, rc, "txn", "import", path)
	assert.ErrorIs(t, err, ports.ErrOverExit)
}

func TestTradeExport(t *testing.T) {
	rc := newTestRoot(t)
	addAAPL(t, rc)

	path := filepath.Join(t.TempDir(), "trades.csv")
	out := mustRun(t, rc, "trade", "export", path)
	assert.Contains(t, out, "Exported 1 trades")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "AAPL-001", records[1][0])

	out = mustRun(t, rc, "trade", "export", "-")
	assert.True(t, strings.HasPrefix(out, "trade_id,"), out)
}
