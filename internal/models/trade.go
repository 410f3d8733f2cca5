package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types as stored in shares.transaction_type
const (
	TypeBuy  = "buy"
	TypeSell = "sell"
)

// User represents a registered trader
type User struct {
	ID        int64           `json:"id"`
	Username  string          `json:"username"`
	Hash      string          `json:"-"`
	Cash      decimal.Decimal `json:"cash"`
	CreatedAt time.Time       `json:"created_at"`
}

// Transaction is one immutable ledger row. Shares is signed: positive for a
// buy, negative for a sell. Amount is the total cash moved, never a per-share
// price.
type Transaction struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Symbol    string          `json:"symbol"`
	Shares    int64           `json:"shares"`
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"transaction_type"`
	Timestamp time.Time       `json:"timestamp"`
}

// Holding is the net number of shares of one symbol, summed over the ledger
type Holding struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
}

// Position is a holding valued at the live quote
type Position struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Total  decimal.Decimal `json:"total"`
	// Priced is false when the quote lookup failed; Price and Total are zero.
	Priced bool `json:"priced"`
}

// Portfolio - what the index page renders
type Portfolio struct {
	Positions []Position      `json:"positions"`
	Holdings  decimal.Decimal `json:"holdings"`
	Cash      decimal.Decimal `json:"cash"`
	NetWorth  decimal.Decimal `json:"net_worth"`
}
