package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one exit event against a Trade.
type Transaction struct {
	ID        string          // ULID assigned on creation
	TradeID   string          // Owning trade
	ExitDate  time.Time       // Date shares were sold
	Action    ExitAction      // Which tier triggered the exit
	Ticker    string          // Defaults to the trade's ticker
	Shares    int64           // Shares exited (> 0)
	Price     decimal.Decimal // Exit price (> 0)
	Fees      decimal.Decimal // Commissions (>= 0)
	Notes     string
	Proceeds  decimal.Decimal // shares*price - fees, rounded to cents
	CreatedAt time.Time
}

// Clone returns a copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
