package models

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	DefaultTransactionFeePercentage = decimal.RequireFromString("2.5")
	DefaultTokenSupply              = decimal.NewFromInt(1000000)
	DefaultConfigTokenPrice         = decimal.RequireFromString("0.001")
)

// PlatformConfig is the single global settings row managed by admins.
type PlatformConfig struct {
	ID                       int64           `json:"id" db:"id"`
	TransactionFeePercentage decimal.Decimal `json:"transaction_fee_percentage" db:"transaction_fee_percentage"`
	DefaultTokenSupply       decimal.Decimal `json:"default_token_supply" db:"default_token_supply"`
	DefaultTokenPrice        decimal.Decimal `json:"default_token_price" db:"default_token_price"`
	EthereumRPCURL           *string         `json:"ethereum_rpc_url" db:"ethereum_rpc_url"`
	MainnetRPCURL            *string         `json:"mainnet_rpc_url" db:"mainnet_rpc_url"`
	CreatedAt                time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at" db:"updated_at"`
}
