package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "buy"
	TransactionTypeSell TransactionType = "sell"
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeBuy || t == TransactionTypeSell
}

// Transaction is the immutable record of one executed trade.
type Transaction struct {
	ID            int64           `json:"id" db:"id"`
	Reference     uuid.UUID       `json:"reference" db:"reference"`
	UserID        int64           `json:"user_id" db:"user_id"`
	TokenID       int64           `json:"token_id" db:"token_id"`
	Type          TransactionType `json:"transaction_type" db:"transaction_type"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	PricePerToken decimal.Decimal `json:"price_per_token" db:"price_per_token"`
	TotalCost     decimal.Decimal `json:"total_cost" db:"total_cost"`
	CreditsChange decimal.Decimal `json:"credits_change" db:"credits_change"` // negative for buys
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
