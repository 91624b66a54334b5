package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/ports"

	"github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.JournalRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/journal.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// One connection serializes writers; SQLite locks the whole file anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite journal store ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		ticker TEXT NOT NULL,
		purchase_date DATE NOT NULL,
		purchase_price TEXT NOT NULL,
		shares INTEGER NOT NULL,
		entry_day_low TEXT,
		stop_override TEXT,
		portfolio_size TEXT,
		current_price TEXT,
		atr14 TEXT,
		sma50 TEXT,
		sma10 TEXT,
		market_updated_at TIMESTAMP,
		atr14_at_entry TEXT,
		sma50_at_entry TEXT,
		stop3 TEXT,
		stop2 TEXT,
		stop1 TEXT,
		one_r TEXT,
		tp1r TEXT,
		tp2r TEXT,
		tp3r TEXT,
		entry_pct_above_stop3 TEXT,
		shares_exited INTEGER NOT NULL DEFAULT 0,
		shares_remaining INTEGER NOT NULL,
		total_proceeds TEXT NOT NULL,
		total_fees TEXT NOT NULL,
		avg_exit_price TEXT,
		realized_pnl TEXT NOT NULL,
		unrealized_pnl TEXT NOT NULL,
		total_pnl TEXT NOT NULL,
		status TEXT NOT NULL,
		day_pct_moved TEXT,
		cp_pct_diff_from_entry TEXT,
		sold_price TEXT,
		pct_gain_loss_trade TEXT,
		pct_portfolio_at_entry TEXT,
		pct_portfolio_current TEXT,
		gain_loss_portfolio_impact TEXT,
		risk_atr_r_units TEXT,
		atr_pct_multiple_from_ma_at_entry TEXT,
		atr_pct_multiple_from_ma_current TEXT,
		r_multiple TEXT,
		trading_days_open INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		trade_id TEXT NOT NULL REFERENCES trades(id) ON DELETE CASCADE,
		exit_date DATE NOT NULL,
		action TEXT NOT NULL,
		ticker TEXT NOT NULL,
		shares INTEGER NOT NULL,
		price TEXT NOT NULL,
		fees TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		proceeds TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades (status);
	CREATE INDEX IF NOT EXISTS idx_trades_ticker ON trades (ticker);
	CREATE INDEX IF NOT EXISTS idx_transactions_trade_exit ON transactions (trade_id, exit_date);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// withTx runs fn inside a database transaction, rolling back on error.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", ports.ErrDBConnection, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w: %w", ports.ErrUpdateFailed, err)
	}
	return nil
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

// --- TradeRepository Implementation ---

var tradeColumns = []string{
	"id", "ticker", "purchase_date", "purchase_price", "shares",
	"entry_day_low", "stop_override", "portfolio_size",
	"current_price", "atr14", "sma50", "sma10", "market_updated_at",
	"atr14_at_entry", "sma50_at_entry",
	"stop3", "stop2", "stop1", "one_r", "tp1r", "tp2r", "tp3r", "entry_pct_above_stop3",
	"shares_exited", "shares_remaining", "total_proceeds", "total_fees", "avg_exit_price",
	"realized_pnl", "unrealized_pnl", "total_pnl", "status",
	"day_pct_moved", "cp_pct_diff_from_entry", "sold_price", "pct_gain_loss_trade",
	"pct_portfolio_at_entry", "pct_portfolio_current", "gain_loss_portfolio_impact",
	"risk_atr_r_units", "atr_pct_multiple_from_ma_at_entry", "atr_pct_multiple_from_ma_current",
	"r_multiple", "trading_days_open",
	"created_at", "updated_at",
}

var (
	tradeSelect = "SELECT " + strings.Join(tradeColumns, ", ") + " FROM trades"
	tradeInsert = "INSERT INTO trades (" + strings.Join(tradeColumns, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(tradeColumns)), ", ") + ")"
	tradeUpdate = buildTradeUpdate()
)

// buildTradeUpdate sets every column except id and created_at.
func buildTradeUpdate() string {
	sets := make([]string, 0, len(tradeColumns))
	for _, c := range tradeColumns {
		if c == "id" || c == "created_at" {
			continue
		}
		sets = append(sets, c+" = ?")
	}
	return "UPDATE trades SET " + strings.Join(sets, ", ") + " WHERE id = ?"
}

// tradeArgs returns values in tradeColumns order.
func tradeArgs(t *domain.Trade) []interface{} {
	var updatedAt sql.NullTime
	if t.Market.UpdatedAt != nil {
		updatedAt = sql.NullTime{Time: t.Market.UpdatedAt.UTC(), Valid: true}
	}
	s, ro, m := t.Derived.Stops, t.Derived.Rollup, t.Derived.Metrics
	return []interface{}{
		t.ID, t.Ticker, domain.Day(t.PurchaseDate), decText(t.PurchasePrice), t.Shares,
		nullDec(t.EntryDayLow), nullDec(t.StopOverride), nullDec(t.PortfolioSize),
		nullDec(t.Market.CurrentPrice), nullDec(t.Market.ATR14), nullDec(t.Market.SMA50), nullDec(t.Market.SMA10), updatedAt,
		nullDec(t.Entry.ATR14), nullDec(t.Entry.SMA50),
		nullDec(s.Stop3), nullDec(s.Stop2), nullDec(s.Stop1), nullDec(s.OneR),
		nullDec(s.TP1R), nullDec(s.TP2R), nullDec(s.TP3R), nullDec(s.EntryPctAboveStop3),
		ro.SharesExited, ro.SharesRemaining, decText(ro.TotalProceeds), decText(ro.TotalFees), nullDec(ro.AvgExitPrice),
		decText(ro.RealizedPnL), decText(ro.UnrealizedPnL), decText(ro.TotalPnL), string(ro.Status),
		nullDec(m.DayPctMoved), nullDec(m.CPPctDiffFromEntry), nullDec(m.SoldPrice), nullDec(m.PctGainLossTrade),
		nullDec(m.PctPortfolioAtEntry), nullDec(m.PctPortfolioCurrent), nullDec(m.GainLossPortfolioImpact),
		nullDec(m.RiskATRRUnits), nullDec(m.ATRPctMultipleFromMAAtEntry), nullDec(m.ATRPctMultipleFromMACurrent),
		nullDec(m.RMultiple), m.TradingDaysOpen,
		t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	}
}

// Create inserts a new trade.
func (r *Repository) Create(ctx context.Context, trade *domain.Trade) error {
	if _, err := r.db.ExecContext(ctx, tradeInsert, tradeArgs(trade)...); err != nil {
		if isConstraint(err) {
			return fmt.Errorf("trade %s already exists: %w", trade.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert trade %s: %w: %w", trade.ID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": trade.ID, "ticker": trade.Ticker})
	return nil
}

// Save overwrites an existing trade.
func (r *Repository) Save(ctx context.Context, trade *domain.Trade) error {
	return r.saveTrade(ctx, r.db, trade)
}

func (r *Repository) saveTrade(ctx context.Context, ex execer, trade *domain.Trade) error {
	args := tradeArgs(trade)
	// Drop id (first) and created_at (second to last), then append id for the WHERE clause.
	updateArgs := make([]interface{}, 0, len(args))
	updateArgs = append(updateArgs, args[1:len(args)-2]...)
	updateArgs = append(updateArgs, args[len(args)-1], trade.ID)

	result, err := ex.ExecContext(ctx, tradeUpdate, updateArgs...)
	if err != nil {
		return fmt.Errorf("failed to update trade %s: %w: %w", trade.ID, ports.ErrUpdateFailed, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for trade %s: %w", trade.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade %s not found for update: %w", trade.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade saved", map[string]interface{}{"tradeID": trade.ID, "status": trade.Status()})
	return nil
}

// FindByID retrieves a trade by id, or nil if it does not exist.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Trade, error) {
	row := r.db.QueryRowContext(ctx, tradeSelect+" WHERE id = ?", id)
	trade, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Trade not found by ID", map[string]interface{}{"tradeID": id})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query trade %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return trade, nil
}

// List returns trades ordered by purchase date descending.
func (r *Repository) List(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Ticker != "" {
		where = append(where, "ticker = ?")
		args = append(args, strings.ToUpper(filter.Ticker))
	}
	query := tradeSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY purchase_date DESC, created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during List: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// Delete removes a trade and its transactions.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE trade_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete transactions of trade %s: %w: %w", id, ports.ErrDeleteFailed, err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete trade %s: %w: %w", id, ports.ErrDeleteFailed, err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("trade %s: %w", id, ports.ErrNotFound)
		}
		r.logger.Debug(ctx, "Trade deleted", map[string]interface{}{"tradeID": id})
		return nil
	})
}

// --- TransactionRepository Implementation ---

const transactionColumns = `id, trade_id, exit_date, action, ticker, shares, price, fees, notes, proceeds, created_at`

func insertTransaction(ctx context.Context, ex execer, txn *domain.Transaction) error {
	const query = `INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := ex.ExecContext(ctx, query,
		txn.ID, txn.TradeID, domain.Day(txn.ExitDate), string(txn.Action), txn.Ticker, txn.Shares,
		decText(txn.Price), decText(txn.Fees), txn.Notes, decText(txn.Proceeds), txn.CreatedAt.UTC())
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("transaction %s for trade %s rejected: %w: %w", txn.ID, txn.TradeID, ports.ErrDuplicateEntry, err)
		}
		return fmt.Errorf("failed to insert transaction %s: %w: %w", txn.ID, ports.ErrUpdateFailed, err)
	}
	return nil
}

// CreateTransaction stores txn and the recalculated owning trade atomically.
func (r *Repository) CreateTransaction(ctx context.Context, txn *domain.Transaction, trade *domain.Trade) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}
		return r.saveTrade(ctx, tx, trade)
	})
	if err != nil {
		return err
	}
	r.logger.Debug(ctx, "Transaction created", map[string]interface{}{"transactionID": txn.ID, "tradeID": txn.TradeID})
	return nil
}

// UpdateTransaction overwrites txn and saves the owning trade atomically.
func (r *Repository) UpdateTransaction(ctx context.Context, txn *domain.Transaction, trade *domain.Trade) error {
	const query = `
	UPDATE transactions
	SET exit_date = ?, action = ?, ticker = ?, shares = ?, price = ?, fees = ?, notes = ?, proceeds = ?
	WHERE id = ?`

	return r.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			domain.Day(txn.ExitDate), string(txn.Action), txn.Ticker, txn.Shares,
			decText(txn.Price), decText(txn.Fees), txn.Notes, decText(txn.Proceeds), txn.ID)
		if err != nil {
			return fmt.Errorf("failed to update transaction %s: %w: %w", txn.ID, ports.ErrUpdateFailed, err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("transaction %s: %w", txn.ID, ports.ErrNotFound)
		}
		return r.saveTrade(ctx, tx, trade)
	})
}

// DeleteTransaction removes a transaction and saves the owning trade atomically.
func (r *Repository) DeleteTransaction(ctx context.Context, id string, trade *domain.Trade) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete transaction %s: %w: %w", id, ports.ErrDeleteFailed, err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("transaction %s: %w", id, ports.ErrNotFound)
		}
		return r.saveTrade(ctx, tx, trade)
	})
}

// ImportTransactions inserts every transaction and saves every trade, or nothing at all.
func (r *Repository) ImportTransactions(ctx context.Context, txns []*domain.Transaction, trades []*domain.Trade) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for i, txn := range txns {
			if err := insertTransaction(ctx, tx, txn); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		for _, trade := range trades {
			if err := r.saveTrade(ctx, tx, trade); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.logger.Info(ctx, "Transactions imported", map[string]interface{}{"transactions": len(txns), "trades": len(trades)})
	return nil
}

// FindTransaction returns nil, nil when no transaction has the id.
func (r *Repository) FindTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query transaction %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return txn, nil
}

// ListTransactions returns transactions ordered by exit date, then creation.
func (r *Repository) ListTransactions(ctx context.Context, filter ports.TransactionFilter) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	var args []interface{}
	if filter.TradeID != "" {
		query += ` WHERE trade_id = ?`
		args = append(args, filter.TradeID)
	}
	query += ` ORDER BY exit_date ASC, created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	txns := make([]*domain.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return txns, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var (
		updatedAt sql.NullTime
		status    string
	)
	st, ro, m := &t.Derived.Stops, &t.Derived.Rollup, &t.Derived.Metrics
	err := s.Scan(
		&t.ID, &t.Ticker, &t.PurchaseDate, dec(&t.PurchasePrice), &t.Shares,
		decPtr(&t.EntryDayLow), decPtr(&t.StopOverride), decPtr(&t.PortfolioSize),
		decPtr(&t.Market.CurrentPrice), decPtr(&t.Market.ATR14), decPtr(&t.Market.SMA50), decPtr(&t.Market.SMA10), &updatedAt,
		decPtr(&t.Entry.ATR14), decPtr(&t.Entry.SMA50),
		decPtr(&st.Stop3), decPtr(&st.Stop2), decPtr(&st.Stop1), decPtr(&st.OneR),
		decPtr(&st.TP1R), decPtr(&st.TP2R), decPtr(&st.TP3R), decPtr(&st.EntryPctAboveStop3),
		&ro.SharesExited, &ro.SharesRemaining, dec(&ro.TotalProceeds), dec(&ro.TotalFees), decPtr(&ro.AvgExitPrice),
		dec(&ro.RealizedPnL), dec(&ro.UnrealizedPnL), dec(&ro.TotalPnL), &status,
		decPtr(&m.DayPctMoved), decPtr(&m.CPPctDiffFromEntry), decPtr(&m.SoldPrice), decPtr(&m.PctGainLossTrade),
		decPtr(&m.PctPortfolioAtEntry), decPtr(&m.PctPortfolioCurrent), decPtr(&m.GainLossPortfolioImpact),
		decPtr(&m.RiskATRRUnits), decPtr(&m.ATRPctMultipleFromMAAtEntry), decPtr(&m.ATRPctMultipleFromMACurrent),
		decPtr(&m.RMultiple), &m.TradingDaysOpen,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if updatedAt.Valid {
		ts := updatedAt.Time.UTC()
		t.Market.UpdatedAt = &ts
	}
	t.PurchaseDate = domain.Day(t.PurchaseDate)
	t.CreatedAt, t.UpdatedAt = t.CreatedAt.UTC(), t.UpdatedAt.UTC()
	ro.Status = domain.TradeStatus(status)
	return t, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	txn := &domain.Transaction{}
	var action string
	err := s.Scan(
		&txn.ID, &txn.TradeID, &txn.ExitDate, &action, &txn.Ticker, &txn.Shares,
		dec(&txn.Price), dec(&txn.Fees), &txn.Notes, dec(&txn.Proceeds), &txn.CreatedAt)
	if err != nil {
		return nil, err
	}
	txn.ExitDate = domain.Day(txn.ExitDate)
	txn.CreatedAt = txn.CreatedAt.UTC()
	txn.Action = domain.ExitAction(action)
	return txn, nil
}
