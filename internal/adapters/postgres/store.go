// Package postgres is a journal store backed by PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/ports"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Config holds the connection settings.
type Config struct {
	DSN    string
	Logger ports.Logger
}

// Store implements ports.JournalRepository.
type Store struct {
	db     *gorm.DB
	logger ports.Logger
}

// NewStore connects, migrates the schema and returns the store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for postgres store")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is empty: %w", ports.ErrConfigurationError)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Error),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w: %w", ports.ErrDBConnection, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w: %w", ports.ErrDBConnection, err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&tradeRecord{}, &transactionRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	cfg.Logger.Info(context.Background(), "Postgres journal store ready")

	return &Store{db: db, logger: cfg.Logger}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Create(ctx context.Context, trade *domain.Trade) error {
	if trade == nil {
		return errors.New("trade cannot be nil")
	}
	if err := s.db.WithContext(ctx).Create(toTradeRecord(trade)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("trade %s already exists: %w", trade.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert trade %s: %w: %w", trade.ID, ports.ErrUpdateFailed, err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, trade *domain.Trade) error {
	return saveTrade(s.db.WithContext(ctx), trade)
}

// saveTrade overwrites every column but the key and creation time.
func saveTrade(db *gorm.DB, trade *domain.Trade) error {
	result := db.Model(&tradeRecord{}).
		Where("id = ?", trade.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(toTradeRecord(trade))
	if result.Error != nil {
		return fmt.Errorf("failed to update trade %s: %w: %w", trade.ID, ports.ErrUpdateFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("trade %s not found for update: %w", trade.ID, ports.ErrNotFound)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Trade, error) {
	var rec tradeRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trade %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return rec.toDomain(), nil
}

func (s *Store) List(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, error) {
	q := s.db.WithContext(ctx).Model(&tradeRecord{})
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Ticker != "" {
		q = q.Where("ticker = ?", strings.ToUpper(filter.Ticker))
	}
	var recs []tradeRecord
	if err := q.Order("purchase_date DESC").Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to query trades: %w: %w", ports.ErrQueryFailed, err)
	}
	trades := make([]*domain.Trade, 0, len(recs))
	for i := range recs {
		trades = append(trades, recs[i].toDomain())
	}
	return trades, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("trade_id = ?", id).Delete(&transactionRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete transactions of trade %s: %w: %w", id, ports.ErrDeleteFailed, err)
		}
		result := tx.Where("id = ?", id).Delete(&tradeRecord{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete trade %s: %w: %w", id, ports.ErrDeleteFailed, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("trade %s: %w", id, ports.ErrNotFound)
		}
		return nil
	})
}

func insertTransaction(tx *gorm.DB, txn *domain.Transaction) error {
	if err := tx.Omit(clause.Associations).Create(toTransactionRecord(txn)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
			return fmt.Errorf("transaction %s for trade %s rejected: %w: %w", txn.ID, txn.TradeID, ports.ErrDuplicateEntry, err)
		}
		return fmt.Errorf("failed to insert transaction %s: %w: %w", txn.ID, ports.ErrUpdateFailed, err)
	}
	return nil
}

func (s *Store) CreateTransaction(ctx context.Context, txn *domain.Transaction, trade *domain.Trade) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertTransaction(tx, txn); err != nil {
			return err
		}
		return saveTrade(tx, trade)
	})
}

func (s *Store) UpdateTransaction(ctx context.Context, txn *domain.Transaction, trade *domain.Trade) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&transactionRecord{}).
			Where("id = ?", txn.ID).
			Select("exit_date", "action", "ticker", "shares", "price", "fees", "notes", "proceeds").
			Updates(toTransactionRecord(txn))
		if result.Error != nil {
			return fmt.Errorf("failed to update transaction %s: %w: %w", txn.ID, ports.ErrUpdateFailed, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("transaction %s: %w", txn.ID, ports.ErrNotFound)
		}
		return saveTrade(tx, trade)
	})
}

func (s *Store) DeleteTransaction(ctx context.Context, id string, trade *domain.Trade) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&transactionRecord{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete transaction %s: %w: %w", id, ports.ErrDeleteFailed, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("transaction %s: %w", id, ports.ErrNotFound)
		}
		return saveTrade(tx, trade)
	})
}

func (s *Store) ImportTransactions(ctx context.Context, txns []*domain.Transaction, trades []*domain.Trade) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, txn := range txns {
			if err := insertTransaction(tx, txn); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		for _, trade := range trades {
			if err := saveTrade(tx, trade); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "Transactions imported", map[string]interface{}{"transactions": len(txns), "trades": len(trades)})
	return nil
}

func (s *Store) FindTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var rec transactionRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return rec.toDomain(), nil
}

func (s *Store) ListTransactions(ctx context.Context, filter ports.TransactionFilter) ([]*domain.Transaction, error) {
	q := s.db.WithContext(ctx).Model(&transactionRecord{})
	if filter.TradeID != "" {
		q = q.Where("trade_id = ?", filter.TradeID)
	}
	var recs []transactionRecord
	if err := q.Order("exit_date ASC").Order("created_at ASC").Order("id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w: %w", ports.ErrQueryFailed, err)
	}
	txns := make([]*domain.Transaction, 0, len(recs))
	for i := range recs {
		txns = append(txns, recs[i].toDomain())
	}
	return txns, nil
}

var _ ports.JournalRepository = (*Store)(nil)
