package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/money"
	"threeStopJournal/internal/ports"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// TransactionRow is one parsed line of a transaction import file.
type TransactionRow struct {
	Line int // 1-based line in the file, header is line 1
	Txn  *domain.Transaction
}

var requiredTxnColumns = []string{"exit_date", "trade_id", "action", "shares", "price"}

// ReadTransactionsCSV parses an exit-transaction file. The header must name
// exit_date, trade_id, action, shares and price; ticker, fees and notes are optional.
// The first bad row fails the whole file with its line number.
func ReadTransactionsCSV(r io.Reader) ([]TransactionRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file: %w", ports.ErrInvalidRequest)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w: %w", ports.ErrInvalidRequest, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, c := range requiredTxnColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("CSV must contain columns %s (missing %s): %w",
			strings.Join(requiredTxnColumns, ", "), strings.Join(missing, ", "), ports.ErrInvalidRequest)
	}

	var rows []TransactionRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ports.ErrInvalidRequest, err)
		}
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}
		txn, err := parseTransactionRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		rows = append(rows, TransactionRow{Line: line, Txn: txn})
	}
	return rows, nil
}

func parseTransactionRecord(record []string, cols map[string]int) (*domain.Transaction, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	txn := &domain.Transaction{
		TradeID: field("trade_id"),
		Ticker:  strings.ToUpper(field("ticker")),
		Notes:   field("notes"),
	}
	if txn.TradeID == "" {
		return nil, fmt.Errorf("trade_id is required: %w", ports.ErrInvalidRequest)
	}

	exitDate, err := time.Parse(dateLayout, field("exit_date"))
	if err != nil {
		return nil, fmt.Errorf("exit_date '%s' must be YYYY-MM-DD: %w", field("exit_date"), ports.ErrInvalidRequest)
	}
	txn.ExitDate = exitDate

	action, err := domain.ParseExitAction(field("action"))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ports.ErrInvalidRequest)
	}
	txn.Action = action

	shares, err := strconv.ParseInt(field("shares"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("shares '%s' is not a whole number: %w", field("shares"), ports.ErrInvalidRequest)
	}
	txn.Shares = shares

	price, err := money.Parse(field("price"))
	if err != nil || price == nil {
		return nil, fmt.Errorf("price '%s' is not a number: %w", field("price"), ports.ErrInvalidRequest)
	}
	txn.Price = *price

	fees, err := money.Parse(field("fees"))
	if err != nil {
		return nil, fmt.Errorf("fees '%s' is not a number: %w", field("fees"), ports.ErrInvalidRequest)
	}
	txn.Fees = decimal.Zero
	if fees != nil {
		txn.Fees = *fees
	}
	return txn, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

var tradeHeader = []string{
	"trade_id", "ticker", "purchase_date", "purchase_price", "shares", "status",
	"entry_day_low", "stop_override", "portfolio_size",
	"stop3", "stop2", "stop1", "one_r", "tp1r", "tp2r", "tp3r", "entry_pct_above_stop3",
	"current_price", "atr14", "sma50", "sma10", "atr14_at_entry", "sma50_at_entry",
	"shares_exited", "shares_remaining", "total_proceeds", "total_fees", "avg_exit_price",
	"realized_pnl", "unrealized_pnl", "total_pnl",
	"day_pct_moved", "cp_pct_diff_from_entry", "sold_price", "pct_gain_loss_trade",
	"pct_portfolio_at_entry", "pct_portfolio_current", "gain_loss_portfolio_impact",
	"risk_atr_r_units", "atr_pct_multiple_from_ma_at_entry", "atr_pct_multiple_from_ma_current",
	"r_multiple", "trading_days_open",
}

// WriteTradesCSV writes every trade with its derived fields. Null values are empty cells.
func WriteTradesCSV(w io.Writer, trades []*domain.Trade) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		s, ro, m := t.Derived.Stops, t.Derived.Rollup, t.Derived.Metrics
		err := writer.Write([]string{
			t.ID, t.Ticker, t.PurchaseDate.Format(dateLayout), t.PurchasePrice.StringFixed(2),
			strconv.FormatInt(t.Shares, 10), string(ro.Status),
			money.Fixed(t.EntryDayLow, 2), money.Fixed(t.StopOverride, 2), money.Fixed(t.PortfolioSize, 2),
			money.Fixed(s.Stop3, 4), money.Fixed(s.Stop2, 4), money.Fixed(s.Stop1, 4), money.Fixed(s.OneR, 4),
			money.Fixed(s.TP1R, 4), money.Fixed(s.TP2R, 4), money.Fixed(s.TP3R, 4), money.Fixed(s.EntryPctAboveStop3, 4),
			money.Fixed(t.Market.CurrentPrice, 4), money.Fixed(t.Market.ATR14, 4), money.Fixed(t.Market.SMA50, 4),
			money.Fixed(t.Market.SMA10, 4), money.Fixed(t.Entry.ATR14, 4), money.Fixed(t.Entry.SMA50, 4),
			strconv.FormatInt(ro.SharesExited, 10), strconv.FormatInt(ro.SharesRemaining, 10),
			ro.TotalProceeds.StringFixed(2), ro.TotalFees.StringFixed(2), money.Fixed(ro.AvgExitPrice, 4),
			ro.RealizedPnL.StringFixed(2), ro.UnrealizedPnL.StringFixed(2), ro.TotalPnL.StringFixed(2),
			money.Fixed(m.DayPctMoved, 4), money.Fixed(m.CPPctDiffFromEntry, 4), money.Fixed(m.SoldPrice, 4),
			money.Fixed(m.PctGainLossTrade, 4), money.Fixed(m.PctPortfolioAtEntry, 4), money.Fixed(m.PctPortfolioCurrent, 4),
			money.Fixed(m.GainLossPortfolioImpact, 4), money.Fixed(m.RiskATRRUnits, 4),
			money.Fixed(m.ATRPctMultipleFromMAAtEntry, 4), money.Fixed(m.ATRPctMultipleFromMACurrent, 4),
			money.Fixed(m.RMultiple, 4), strconv.Itoa(m.TradingDaysOpen),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteBarsToCSV writes daily bars to filename, creating its directory.
func WriteBarsToCSV(bars []*domain.Bar, filename string) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"date", "ticker", "open", "high", "low", "close", "volume"})

	for _, b := range bars {
		writer.Write([]string{
			b.Date.Format(dateLayout),
			b.Ticker,
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			b.Volume.String(),
		})
	}
	writer.Flush()
	return writer.Error()
}
