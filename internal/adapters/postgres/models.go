package postgres

import (
	"time"

	"threeStopJournal/internal/domain"

	"github.com/shopspring/decimal"
)

type tradeRecord struct {
	ID            string          `gorm:"primaryKey;size:50"`
	Ticker        string          `gorm:"index;size:20;not null"`
	PurchaseDate  time.Time       `gorm:"type:date;index;not null"`
	PurchasePrice decimal.Decimal `gorm:"type:numeric;not null"`
	Shares        int64           `gorm:"not null"`

	EntryDayLow   decimal.NullDecimal `gorm:"type:numeric"`
	StopOverride  decimal.NullDecimal `gorm:"type:numeric"`
	PortfolioSize decimal.NullDecimal `gorm:"type:numeric"`

	CurrentPrice    decimal.NullDecimal `gorm:"type:numeric"`
	ATR14           decimal.NullDecimal `gorm:"column:atr14;type:numeric"`
	SMA50           decimal.NullDecimal `gorm:"column:sma50;type:numeric"`
	SMA10           decimal.NullDecimal `gorm:"column:sma10;type:numeric"`
	MarketUpdatedAt *time.Time
	ATR14AtEntry    decimal.NullDecimal `gorm:"column:atr14_at_entry;type:numeric"`
	SMA50AtEntry    decimal.NullDecimal `gorm:"column:sma50_at_entry;type:numeric"`

	Stop3              decimal.NullDecimal `gorm:"type:numeric"`
	Stop2              decimal.NullDecimal `gorm:"type:numeric"`
	Stop1              decimal.NullDecimal `gorm:"type:numeric"`
	OneR               decimal.NullDecimal `gorm:"column:one_r;type:numeric"`
	TP1R               decimal.NullDecimal `gorm:"column:tp1r;type:numeric"`
	TP2R               decimal.NullDecimal `gorm:"column:tp2r;type:numeric"`
	TP3R               decimal.NullDecimal `gorm:"column:tp3r;type:numeric"`
	EntryPctAboveStop3 decimal.NullDecimal `gorm:"column:entry_pct_above_stop3;type:numeric"`

	SharesExited    int64               `gorm:"not null"`
	SharesRemaining int64               `gorm:"not null"`
	TotalProceeds   decimal.Decimal     `gorm:"type:numeric;not null"`
	TotalFees       decimal.Decimal     `gorm:"type:numeric;not null"`
	AvgExitPrice    decimal.NullDecimal `gorm:"type:numeric"`
	RealizedPnL     decimal.Decimal     `gorm:"column:realized_pnl;type:numeric;not null"`
	UnrealizedPnL   decimal.Decimal     `gorm:"column:unrealized_pnl;type:numeric;not null"`
	TotalPnL        decimal.Decimal     `gorm:"column:total_pnl;type:numeric;not null"`
	Status          string              `gorm:"index;size:10;not null"`

	DayPctMoved                 decimal.NullDecimal `gorm:"type:numeric"`
	CPPctDiffFromEntry          decimal.NullDecimal `gorm:"column:cp_pct_diff_from_entry;type:numeric"`
	SoldPrice                   decimal.NullDecimal `gorm:"type:numeric"`
	PctGainLossTrade            decimal.NullDecimal `gorm:"type:numeric"`
	PctPortfolioAtEntry         decimal.NullDecimal `gorm:"type:numeric"`
	PctPortfolioCurrent         decimal.NullDecimal `gorm:"type:numeric"`
	GainLossPortfolioImpact     decimal.NullDecimal `gorm:"type:numeric"`
	RiskATRRUnits               decimal.NullDecimal `gorm:"column:risk_atr_r_units;type:numeric"`
	ATRPctMultipleFromMAAtEntry decimal.NullDecimal `gorm:"column:atr_pct_multiple_from_ma_at_entry;type:numeric"`
	ATRPctMultipleFromMACurrent decimal.NullDecimal `gorm:"column:atr_pct_multiple_from_ma_current;type:numeric"`
	RMultiple                   decimal.NullDecimal `gorm:"column:r_multiple;type:numeric"`
	TradingDaysOpen             int                 `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (tradeRecord) TableName() string {
	return "trades"
}

type transactionRecord struct {
	ID        string          `gorm:"primaryKey;size:26"`
	TradeID   string          `gorm:"index;size:50;not null"`
	ExitDate  time.Time       `gorm:"type:date;index;not null"`
	Action    string          `gorm:"size:10;not null"`
	Ticker    string          `gorm:"size:20;not null"`
	Shares    int64           `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:numeric;not null"`
	Fees      decimal.Decimal `gorm:"type:numeric;not null"`
	Notes     string          `gorm:"not null;default:''"`
	Proceeds  decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt time.Time       `gorm:"not null"`

	Trade tradeRecord `gorm:"foreignKey:TradeID;constraint:OnDelete:CASCADE"`
}

func (transactionRecord) TableName() string {
	return "transactions"
}

func nullDec(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func decPtr(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

func toTradeRecord(t *domain.Trade) *tradeRecord {
	s, ro, m := t.Derived.Stops, t.Derived.Rollup, t.Derived.Metrics
	rec := &tradeRecord{
		ID:            t.ID,
		Ticker:        t.Ticker,
		PurchaseDate:  domain.Day(t.PurchaseDate),
		PurchasePrice: t.PurchasePrice,
		Shares:        t.Shares,

		EntryDayLow:   nullDec(t.EntryDayLow),
		StopOverride:  nullDec(t.StopOverride),
		PortfolioSize: nullDec(t.PortfolioSize),

		CurrentPrice: nullDec(t.Market.CurrentPrice),
		ATR14:        nullDec(t.Market.ATR14),
		SMA50:        nullDec(t.Market.SMA50),
		SMA10:        nullDec(t.Market.SMA10),
		ATR14AtEntry: nullDec(t.Entry.ATR14),
		SMA50AtEntry: nullDec(t.Entry.SMA50),

		Stop3:              nullDec(s.Stop3),
		Stop2:              nullDec(s.Stop2),
		Stop1:              nullDec(s.Stop1),
		OneR:               nullDec(s.OneR),
		TP1R:               nullDec(s.TP1R),
		TP2R:               nullDec(s.TP2R),
		TP3R:               nullDec(s.TP3R),
		EntryPctAboveStop3: nullDec(s.EntryPctAboveStop3),

		SharesExited:    ro.SharesExited,
		SharesRemaining: ro.SharesRemaining,
		TotalProceeds:   ro.TotalProceeds,
		TotalFees:       ro.TotalFees,
		AvgExitPrice:    nullDec(ro.AvgExitPrice),
		RealizedPnL:     ro.RealizedPnL,
		UnrealizedPnL:   ro.UnrealizedPnL,
		TotalPnL:        ro.TotalPnL,
		Status:          string(ro.Status),

		DayPctMoved:                 nullDec(m.DayPctMoved),
		CPPctDiffFromEntry:          nullDec(m.CPPctDiffFromEntry),
		SoldPrice:                   nullDec(m.SoldPrice),
		PctGainLossTrade:            nullDec(m.PctGainLossTrade),
		PctPortfolioAtEntry:         nullDec(m.PctPortfolioAtEntry),
		PctPortfolioCurrent:         nullDec(m.PctPortfolioCurrent),
		GainLossPortfolioImpact:     nullDec(m.GainLossPortfolioImpact),
		RiskATRRUnits:               nullDec(m.RiskATRRUnits),
		ATRPctMultipleFromMAAtEntry: nullDec(m.ATRPctMultipleFromMAAtEntry),
		ATRPctMultipleFromMACurrent: nullDec(m.ATRPctMultipleFromMACurrent),
		RMultiple:                   nullDec(m.RMultiple),
		TradingDaysOpen:             m.TradingDaysOpen,

		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: t.UpdatedAt.UTC(),
	}
	if t.Market.UpdatedAt != nil {
		ts := t.Market.UpdatedAt.UTC()
		rec.MarketUpdatedAt = &ts
	}
	return rec
}

func (r *tradeRecord) toDomain() *domain.Trade {
	t := &domain.Trade{
		ID:            r.ID,
		Ticker:        r.Ticker,
		PurchaseDate:  domain.Day(r.PurchaseDate),
		PurchasePrice: r.PurchasePrice,
		Shares:        r.Shares,
		EntryDayLow:   decPtr(r.EntryDayLow),
		StopOverride:  decPtr(r.StopOverride),
		PortfolioSize: decPtr(r.PortfolioSize),
		Market: domain.MarketSnapshot{
			CurrentPrice: decPtr(r.CurrentPrice),
			ATR14:        decPtr(r.ATR14),
			SMA50:        decPtr(r.SMA50),
			SMA10:        decPtr(r.SMA10),
		},
		Entry: domain.EntrySnapshot{
			ATR14: decPtr(r.ATR14AtEntry),
			SMA50: decPtr(r.SMA50AtEntry),
		},
		Derived: domain.Derived{
			Stops: domain.StopLevels{
				Stop3:              decPtr(r.Stop3),
				Stop2:              decPtr(r.Stop2),
				Stop1:              decPtr(r.Stop1),
				OneR:               decPtr(r.OneR),
				TP1R:               decPtr(r.TP1R),
				TP2R:               decPtr(r.TP2R),
				TP3R:               decPtr(r.TP3R),
				EntryPctAboveStop3: decPtr(r.EntryPctAboveStop3),
			},
			Rollup: domain.Rollup{
				SharesExited:    r.SharesExited,
				SharesRemaining: r.SharesRemaining,
				TotalProceeds:   r.TotalProceeds,
				TotalFees:       r.TotalFees,
				AvgExitPrice:    decPtr(r.AvgExitPrice),
				RealizedPnL:     r.RealizedPnL,
				UnrealizedPnL:   r.UnrealizedPnL,
				TotalPnL:        r.TotalPnL,
				Status:          domain.TradeStatus(r.Status),
			},
			Metrics: domain.Metrics{
				DayPctMoved:                 decPtr(r.DayPctMoved),
				CPPctDiffFromEntry:          decPtr(r.CPPctDiffFromEntry),
				SoldPrice:                   decPtr(r.SoldPrice),
				PctGainLossTrade:            decPtr(r.PctGainLossTrade),
				PctPortfolioAtEntry:         decPtr(r.PctPortfolioAtEntry),
				PctPortfolioCurrent:         decPtr(r.PctPortfolioCurrent),
				GainLossPortfolioImpact:     decPtr(r.GainLossPortfolioImpact),
				RiskATRRUnits:               decPtr(r.RiskATRRUnits),
				ATRPctMultipleFromMAAtEntry: decPtr(r.ATRPctMultipleFromMAAtEntry),
				ATRPctMultipleFromMACurrent: decPtr(r.ATRPctMultipleFromMACurrent),
				RMultiple:                   decPtr(r.RMultiple),
				TradingDaysOpen:             r.TradingDaysOpen,
			},
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.MarketUpdatedAt != nil {
		ts := r.MarketUpdatedAt.UTC()
		t.Market.UpdatedAt = &ts
	}
	return t
}

func toTransactionRecord(t *domain.Transaction) *transactionRecord {
	return &transactionRecord{
		ID:        t.ID,
		TradeID:   t.TradeID,
		ExitDate:  domain.Day(t.ExitDate),
		Action:    string(t.Action),
		Ticker:    t.Ticker,
		Shares:    t.Shares,
		Price:     t.Price,
		Fees:      t.Fees,
		Notes:     t.Notes,
		Proceeds:  t.Proceeds,
		CreatedAt: t.CreatedAt.UTC(),
	}
}

func (r *transactionRecord) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:        r.ID,
		TradeID:   r.TradeID,
		ExitDate:  domain.Day(r.ExitDate),
		Action:    domain.ExitAction(r.Action),
		Ticker:    r.Ticker,
		Shares:    r.Shares,
		Price:     r.Price,
		Fees:      r.Fees,
		Notes:     r.Notes,
		Proceeds:  r.Proceeds,
		CreatedAt: r.CreatedAt.UTC(),
	}
}
