package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/tokensim/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("serialization conflict")
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionFilter narrows a transaction log query. TokenID is optional.
type TransactionFilter struct {
	UserID  int64
	TokenID *int64
}

// Tx is the unit of work handed to WithTx. Every write issued through it is
// committed together or not at all.
type Tx interface {
	// LockUser reads the account and holds it exclusively until the unit of work ends.
	LockUser(ctx context.Context, userID int64) (*models.User, error)
	GetToken(ctx context.Context, tokenID int64) (*models.Token, error)
	GetBalance(ctx context.Context, userID, tokenID int64) (decimal.Decimal, error)

	SetCreditsBalance(ctx context.Context, userID int64, credits decimal.Decimal) error
	// UpsertBalance creates the (user, token) row or overwrites its quantity in place.
	UpsertBalance(ctx context.Context, userID, tokenID int64, quantity decimal.Decimal) (*models.Balance, error)
	// AppendTransaction inserts txn and fills in its ID and CreatedAt.
	AppendTransaction(ctx context.Context, txn *models.Transaction) error
}

type AccountRegistry interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

type TokenRegistry interface {
	CreateToken(ctx context.Context, token *models.Token) error
	GetToken(ctx context.Context, tokenID int64) (*models.Token, error)
	ListTokens(ctx context.Context) ([]models.Token, error)
	UpdateToken(ctx context.Context, token *models.Token) error
}

type BalanceStore interface {
	GetBalance(ctx context.Context, userID, tokenID int64) (decimal.Decimal, error)
	ListBalances(ctx context.Context, userID int64) ([]models.Balance, error)
}

// TransactionLog is append-only; appends happen through Tx.
type TransactionLog interface {
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)
}

type ConfigStore interface {
	GetPlatformConfig(ctx context.Context) (*models.PlatformConfig, error)
	SavePlatformConfig(ctx context.Context, cfg *models.PlatformConfig) error
}

type Store interface {
	AccountRegistry
	TokenRegistry
	BalanceStore
	TransactionLog
	ConfigStore

	// WithTx runs fn in a serializable unit of work. fn's error is returned
	// unchanged after rollback; write conflicts surface as ErrConflict.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
