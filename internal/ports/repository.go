package ports

import (
	"context"

	"threeStopJournal/internal/domain"
)

// TradeFilter narrows ListTrades. Zero values match everything.
type TradeFilter struct {
	Status domain.TradeStatus
	Ticker string
}

// TransactionFilter narrows ListTransactions. Zero values match everything.
type TransactionFilter struct {
	TradeID string
}

// TradeRepository stores trades together with their derived fields.
type TradeRepository interface {
	// Create inserts a new trade. Returns ErrDuplicateEntry if the ID is taken.
	Create(ctx context.Context, trade *domain.Trade) error
	// Save overwrites the inputs, snapshots and derived fields of an existing trade.
	// Returns ErrNotFound if the trade does not exist.
	Save(ctx context.Context, trade *domain.Trade) error
	// FindByID returns nil, nil if no trade has the ID.
	FindByID(ctx context.Context, id string) (*domain.Trade, error)
	// List returns trades ordered by purchase date descending.
	List(ctx context.Context, filter TradeFilter) ([]*domain.Trade, error)
	// Delete removes the trade and all of its transactions.
	Delete(ctx context.Context, id string) error
}

// TransactionRepository stores exit transactions. Every mutation also persists the
// recalculated owning trade(s) inside the same database transaction.
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, txn *domain.Transaction, trade *domain.Trade) error
	UpdateTransaction(ctx context.Context, txn *domain.Transaction, trade *domain.Trade) error
	DeleteTransaction(ctx context.Context, id string, trade *domain.Trade) error
	// ImportTransactions inserts txns and saves trades all-or-nothing.
	ImportTransactions(ctx context.Context, txns []*domain.Transaction, trades []*domain.Trade) error
	// FindTransaction returns nil, nil if not found.
	FindTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	// ListTransactions returns transactions ordered by exit date, then creation.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, error)
}

// JournalRepository is what the journal service needs from storage.
type JournalRepository interface {
	TradeRepository
	TransactionRepository
	Close() error
}
