package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the quantity of one token held by one user. At most one row
// exists per (UserID, TokenID); a missing row means zero.
type Balance struct {
	ID        int64           `json:"id" db:"id"`
	UserID    int64           `json:"user_id" db:"user_id"`
	TokenID   int64           `json:"token_id" db:"token_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
