package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCreditsBalance is granted to accounts created without an explicit balance.
var DefaultCreditsBalance = decimal.NewFromInt(1000)

// User is an account on the platform. CreditsBalance is only mutated by the ledger
// and by admin balance adjustments.
type User struct {
	ID             int64           `json:"id" db:"id" example:"1"`
	Username       string          `json:"username" db:"username" example:"alice"`
	Email          string          `json:"email" db:"email" example:"alice@example.com"`
	CreditsBalance decimal.Decimal `json:"credits_balance" db:"credits_balance" example:"1000"`
	IsAdmin        bool            `json:"is_admin" db:"is_admin"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}
