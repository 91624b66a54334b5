package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/engine"
	"threeStopJournal/internal/id"
	"threeStopJournal/internal/ports"
	"threeStopJournal/internal/utils"

	"github.com/shopspring/decimal"
)

// NewTransaction is the input for CreateTransaction. Ticker defaults to the trade's.
type NewTransaction struct {
	TradeID  string
	ExitDate time.Time
	Action   domain.ExitAction
	Ticker   string
	Shares   int64
	Price    decimal.Decimal
	Fees     decimal.Decimal
	Notes    string
}

// TransactionUpdate changes an exit. Nil fields are left as they are.
type TransactionUpdate struct {
	ExitDate *time.Time
	Action   *domain.ExitAction
	Ticker   *string
	Shares   *int64
	Price    *decimal.Decimal
	Fees     *decimal.Decimal
	Notes    *string
}

// TransactionResult pairs a stored transaction with its recalculated trade.
type TransactionResult struct {
	Transaction *domain.Transaction
	Trade       *domain.Trade
}

// ImportResult lists what an import stored.
type ImportResult struct {
	Transactions []*domain.Transaction
	Trades       []*domain.Trade // recalculated trades, sorted by id
}

func validateExit(txn *domain.Transaction) error {
	if txn.ExitDate.IsZero() {
		return fmt.Errorf("exit date is required: %w", ports.ErrInvalidRequest)
	}
	if !txn.Action.Valid() {
		return fmt.Errorf("action '%s' must be one of %v: %w", txn.Action, domain.ExitActions(), ports.ErrInvalidRequest)
	}
	if txn.Shares <= 0 {
		return fmt.Errorf("shares must be positive: %w", ports.ErrNonPositiveInput)
	}
	if !txn.Price.IsPositive() {
		return fmt.Errorf("price must be positive: %w", ports.ErrNonPositiveInput)
	}
	if txn.Fees.IsNegative() {
		return fmt.Errorf("fees cannot be negative: %w", ports.ErrInvalidRequest)
	}
	return nil
}

// fill normalizes txn against its trade and computes proceeds.
func fill(txn *domain.Transaction, trade *domain.Trade) {
	txn.Ticker = strings.ToUpper(strings.TrimSpace(txn.Ticker))
	if txn.Ticker == "" {
		txn.Ticker = trade.Ticker
	}
	txn.ExitDate = domain.Day(txn.ExitDate)
	txn.Proceeds = engine.Proceeds(txn.Shares, txn.Price, txn.Fees)
}

// CreateTransaction records an exit and recalculates its trade. Exiting more shares
// than remain fails with ErrOverExit and stores nothing.
func (s *JournalService) CreateTransaction(ctx context.Context, in NewTransaction) (*TransactionResult, error) {
	const op = "CreateTransaction"
	txn := &domain.Transaction{
		TradeID:  strings.TrimSpace(in.TradeID),
		ExitDate: in.ExitDate,
		Action:   in.Action,
		Ticker:   in.Ticker,
		Shares:   in.Shares,
		Price:    in.Price,
		Fees:     in.Fees,
		Notes:    strings.TrimSpace(in.Notes),
	}
	if err := validateExit(txn); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(txn.TradeID)
	defer unlock()

	stored, err := s.loadTrade(ctx, txn.TradeID)
	if err != nil {
		return nil, err
	}
	txns, err := s.loadTransactions(ctx, txn.TradeID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	txn.ID = id.NewAt(now)
	txn.CreatedAt = now
	fill(txn, stored)

	trade := stored.Clone()
	trade.UpdatedAt = now
	if err := s.recalculate(ctx, trade, append(txns, txn)); err != nil {
		s.logger.Warn(ctx, "Transaction rejected", logFields(op, txn.TradeID, map[string]interface{}{
			"shares": txn.Shares, "remaining": stored.Derived.Rollup.SharesRemaining, "error": err.Error(),
		}))
		return nil, err
	}
	if err := s.repo.CreateTransaction(ctx, txn, trade); err != nil {
		return nil, err
	}

	s.metrics.ObserveTransactionOp("create")
	s.logger.Info(ctx, "Transaction created", logFields(op, txn.TradeID, map[string]interface{}{
		"transactionID": txn.ID, "action": txn.Action, "shares": txn.Shares, "status": trade.Status(),
	}))
	return &TransactionResult{Transaction: txn, Trade: trade}, nil
}

// ListTransactions returns exits ordered by exit date. An empty tradeID lists every trade's exits.
func (s *JournalService) ListTransactions(ctx context.Context, tradeID string) ([]*domain.Transaction, error) {
	return s.repo.ListTransactions(ctx, ports.TransactionFilter{TradeID: strings.TrimSpace(tradeID)})
}

// GetTransaction returns one exit or ErrNotFound.
func (s *JournalService) GetTransaction(ctx context.Context, txnID string) (*domain.Transaction, error) {
	txn, err := s.repo.FindTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, fmt.Errorf("transaction '%s': %w", txnID, ports.ErrNotFound)
	}
	return txn, nil
}

// lockTransaction finds a transaction and locks its trade. The lookup repeats under the
// lock in case the transaction was removed in between.
func (s *JournalService) lockTransaction(ctx context.Context, txnID string) (*domain.Transaction, func(), error) {
	txn, err := s.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, nil, err
	}
	unlock := s.locks.Lock(txn.TradeID)
	txn, err = s.GetTransaction(ctx, txnID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return txn, unlock, nil
}

// UpdateTransaction edits an exit, recomputes its proceeds and recalculates its trade.
func (s *JournalService) UpdateTransaction(ctx context.Context, txnID string, upd TransactionUpdate) (*TransactionResult, error) {
	const op = "UpdateTransaction"
	current, unlock, err := s.lockTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	txn := current.Clone()
	if upd.ExitDate != nil {
		txn.ExitDate = *upd.ExitDate
	}
	if upd.Action != nil {
		txn.Action = *upd.Action
	}
	if upd.Ticker != nil {
		txn.Ticker = *upd.Ticker
	}
	if upd.Shares != nil {
		txn.Shares = *upd.Shares
	}
	if upd.Price != nil {
		txn.Price = *upd.Price
	}
	if upd.Fees != nil {
		txn.Fees = *upd.Fees
	}
	if upd.Notes != nil {
		txn.Notes = strings.TrimSpace(*upd.Notes)
	}
	if err := validateExit(txn); err != nil {
		return nil, err
	}

	stored, err := s.loadTrade(ctx, txn.TradeID)
	if err != nil {
		return nil, err
	}
	txns, err := s.loadTransactions(ctx, txn.TradeID)
	if err != nil {
		return nil, err
	}
	fill(txn, stored)

	replaced := make([]*domain.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.ID == txn.ID {
			replaced = append(replaced, txn)
			continue
		}
		replaced = append(replaced, t)
	}

	trade := stored.Clone()
	trade.UpdatedAt = s.now().UTC()
	if err := s.recalculate(ctx, trade, replaced); err != nil {
		s.logger.Warn(ctx, "Transaction update rejected", logFields(op, txn.TradeID, map[string]interface{}{
			"transactionID": txn.ID, "error": err.Error(),
		}))
		return nil, err
	}
	if err := s.repo.UpdateTransaction(ctx, txn, trade); err != nil {
		return nil, err
	}

	s.metrics.ObserveTransactionOp("update")
	s.logger.Info(ctx, "Transaction updated", logFields(op, txn.TradeID, map[string]interface{}{"transactionID": txn.ID}))
	return &TransactionResult{Transaction: txn, Trade: trade}, nil
}

// DeleteTransaction removes an exit and recalculates its trade.
func (s *JournalService) DeleteTransaction(ctx context.Context, txnID string) (*domain.Trade, error) {
	const op = "DeleteTransaction"
	txn, unlock, err := s.lockTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	stored, err := s.loadTrade(ctx, txn.TradeID)
	if err != nil {
		return nil, err
	}
	txns, err := s.loadTransactions(ctx, txn.TradeID)
	if err != nil {
		return nil, err
	}
	remaining := make([]*domain.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.ID != txnID {
			remaining = append(remaining, t)
		}
	}

	trade := stored.Clone()
	trade.UpdatedAt = s.now().UTC()
	if err := s.recalculate(ctx, trade, remaining); err != nil {
		return nil, err
	}
	if err := s.repo.DeleteTransaction(ctx, txnID, trade); err != nil {
		return nil, err
	}

	s.metrics.ObserveTransactionOp("delete")
	s.logger.Info(ctx, "Transaction deleted", logFields(op, txn.TradeID, map[string]interface{}{"transactionID": txnID}))
	return trade, nil
}

// ImportTransactionsCSV parses and applies a whole file of exits. Any bad row, unknown
// trade or over-exit rejects the file and nothing is stored.
func (s *JournalService) ImportTransactionsCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	const op = "ImportTransactionsCSV"
	rows, err := utils.ReadTransactionsCSV(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("file has no transactions: %w", ports.ErrInvalidRequest)
	}

	tradeIDs := make([]string, 0)
	rowsByTrade := make(map[string][]utils.TransactionRow)
	for _, row := range rows {
		if err := validateExit(row.Txn); err != nil {
			return nil, fmt.Errorf("row %d: %w", row.Line, err)
		}
		if _, ok := rowsByTrade[row.Txn.TradeID]; !ok {
			tradeIDs = append(tradeIDs, row.Txn.TradeID)
		}
		rowsByTrade[row.Txn.TradeID] = append(rowsByTrade[row.Txn.TradeID], row)
	}
	sort.Strings(tradeIDs)

	unlock := s.locks.LockAll(tradeIDs)
	defer unlock()

	now := s.now().UTC()
	var (
		created []*domain.Transaction
		trades  []*domain.Trade
	)
	for _, tradeID := range tradeIDs {
		group := rowsByTrade[tradeID]
		stored, err := s.repo.FindByID(ctx, tradeID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, fmt.Errorf("row %d: trade '%s': %w", group[0].Line, tradeID, ports.ErrNotFound)
		}
		txns, err := s.loadTransactions(ctx, tradeID)
		if err != nil {
			return nil, err
		}

		for _, row := range group {
			txn := row.Txn
			txn.ID = id.NewAt(now)
			txn.CreatedAt = now
			fill(txn, stored)
			txns = append(txns, txn)
		}

		trade := stored.Clone()
		trade.UpdatedAt = now
		if err := s.recalculate(ctx, trade, txns); err != nil {
			return nil, fmt.Errorf("trade '%s' (rows %s): %w", tradeID, lines(group), err)
		}
		trades = append(trades, trade)
	}

	// Keep file order for the stored rows.
	for _, row := range rows {
		created = append(created, row.Txn)
	}
	if err := s.repo.ImportTransactions(ctx, created, trades); err != nil {
		s.logger.Error(ctx, err, "Import failed", logFields(op, ""))
		return nil, err
	}

	for range created {
		s.metrics.ObserveTransactionOp("import")
	}
	s.logger.Info(ctx, "Transactions imported", logFields(op, "", map[string]interface{}{
		"transactions": len(created), "trades": len(trades),
	}))
	return &ImportResult{Transactions: created, Trades: trades}, nil
}

func lines(rows []utils.TransactionRow) string {
	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		parts = append(parts, fmt.Sprint(r.Line))
	}
	return strings.Join(parts, ",")
}
