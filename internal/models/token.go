package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TokenStatus string

// Token statuses. Only active tokens can be traded.
const (
	TokenStatusActive   TokenStatus = "active"
	TokenStatusPaused   TokenStatus = "paused"
	TokenStatusInactive TokenStatus = "inactive"
)

func (s TokenStatus) Valid() bool {
	switch s {
	case TokenStatusActive, TokenStatusPaused, TokenStatusInactive:
		return true
	}
	return false
}

// DefaultTokenPrice is the price every new token is listed at.
var DefaultTokenPrice = decimal.NewFromInt(1)

type Token struct {
	ID            int64           `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Symbol        string          `json:"symbol" db:"symbol"`
	Description   *string         `json:"description" db:"description"`
	InitialSupply decimal.Decimal `json:"initial_supply" db:"initial_supply"`
	CurrentSupply decimal.Decimal `json:"current_supply" db:"current_supply"` // informational, trades do not move it
	CurrentPrice  decimal.Decimal `json:"current_price" db:"current_price"`
	CreatorID     int64           `json:"creator_id" db:"creator_id"`
	Status        TokenStatus     `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

func (t *Token) Tradable() bool {
	return t.Status == TokenStatusActive
}
