package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/tokensim/backend/internal/models"
)

const (
	userColumns        = `id, username, email, credits_balance, is_admin, created_at, updated_at`
	tokenColumns       = `id, name, symbol, description, initial_supply, current_supply, current_price, creator_id, status, created_at, updated_at`
	balanceColumns     = `id, user_id, token_id, balance, created_at, updated_at`
	transactionColumns = `id, reference, user_id, token_id, transaction_type, amount, price_per_token, total_cost, credits_change, created_at`
	configColumns      = `id, transaction_fee_percentage, default_token_supply, default_token_price, ethereum_rpc_url, mainnet_rpc_url, created_at, updated_at`
)

// Postgres error codes the store reacts to.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
)

type PostgresStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&pgTx{tx: tx, now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

type pgTx struct {
	tx  *sqlx.Tx
	now func() time.Time
}

func (t *pgTx) LockUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := t.tx.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (t *pgTx) GetToken(ctx context.Context, tokenID int64) (*models.Token, error) {
	var token models.Token
	if err := t.tx.GetContext(ctx, &token, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, tokenID); err != nil {
		return nil, notFound(err)
	}
	return &token, nil
}

func (t *pgTx) GetBalance(ctx context.Context, userID, tokenID int64) (decimal.Decimal, error) {
	return getBalance(ctx, t.tx, userID, tokenID)
}

func (t *pgTx) SetCreditsBalance(ctx context.Context, userID int64, credits decimal.Decimal) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE users SET credits_balance = $1, updated_at = $2 WHERE id = $3`,
		credits, t.now(), userID)
	if err != nil {
		return classify(err)
	}
	return expectOneRow(result)
}

func (t *pgTx) UpsertBalance(ctx context.Context, userID, tokenID int64, quantity decimal.Decimal) (*models.Balance, error) {
	var balance models.Balance
	err := t.tx.GetContext(ctx, &balance, `
		INSERT INTO user_token_balances (user_id, token_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, token_id)
		DO UPDATE SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at
		RETURNING `+balanceColumns,
		userID, tokenID, quantity, t.now())
	if err != nil {
		return nil, classify(err)
	}
	return &balance, nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, txn *models.Transaction) error {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO transactions (reference, user_id, token_id, transaction_type, amount, price_per_token, total_cost, credits_change, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		txn.Reference, txn.UserID, txn.TokenID, txn.Type, txn.Amount,
		txn.PricePerToken, txn.TotalCost, txn.CreditsChange, t.now(),
	).Scan(&txn.ID, &txn.CreatedAt)
	return classify(err)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	now := s.now()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO users (username, email, credits_balance, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, created_at, updated_at`,
		user.Username, user.Email, user.CreditsBalance, user.IsAdmin, now,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return classify(err)
}

func (s *PostgresStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	if err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, classify(err)
	}
	return users, nil
}

func (s *PostgresStore) CreateToken(ctx context.Context, token *models.Token) error {
	now := s.now()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO tokens (name, symbol, description, initial_supply, current_supply, current_price, creator_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id, created_at, updated_at`,
		token.Name, token.Symbol, token.Description, token.InitialSupply, token.CurrentSupply,
		token.CurrentPrice, token.CreatorID, token.Status, now,
	).Scan(&token.ID, &token.CreatedAt, &token.UpdatedAt)
	return classify(err)
}

func (s *PostgresStore) GetToken(ctx context.Context, tokenID int64) (*models.Token, error) {
	var token models.Token
	if err := s.db.GetContext(ctx, &token, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, tokenID); err != nil {
		return nil, notFound(err)
	}
	return &token, nil
}

func (s *PostgresStore) ListTokens(ctx context.Context) ([]models.Token, error) {
	tokens := []models.Token{}
	if err := s.db.SelectContext(ctx, &tokens, `SELECT `+tokenColumns+` FROM tokens ORDER BY id`); err != nil {
		return nil, classify(err)
	}
	return tokens, nil
}

func (s *PostgresStore) UpdateToken(ctx context.Context, token *models.Token) error {
	token.UpdatedAt = s.now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE tokens
		SET name = $1, symbol = $2, description = $3, status = $4, current_price = $5, updated_at = $6
		WHERE id = $7`,
		token.Name, token.Symbol, token.Description, token.Status, token.CurrentPrice, token.UpdatedAt, token.ID)
	if err != nil {
		return classify(err)
	}
	return expectOneRow(result)
}

func (s *PostgresStore) GetBalance(ctx context.Context, userID, tokenID int64) (decimal.Decimal, error) {
	return getBalance(ctx, s.db, userID, tokenID)
}

func (s *PostgresStore) ListBalances(ctx context.Context, userID int64) ([]models.Balance, error) {
	balances := []models.Balance{}
	err := s.db.SelectContext(ctx, &balances,
		`SELECT `+balanceColumns+` FROM user_token_balances WHERE user_id = $1 ORDER BY token_id`, userID)
	if err != nil {
		return nil, classify(err)
	}
	return balances, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	conditions := []string{"user_id = $1"}
	args := []any{filter.UserID}
	if filter.TokenID != nil {
		args = append(args, *filter.TokenID)
		conditions = append(conditions, fmt.Sprintf("token_id = $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC, id DESC`

	txns := []models.Transaction{}
	if err := s.db.SelectContext(ctx, &txns, query, args...); err != nil {
		return nil, classify(err)
	}
	return txns, nil
}

func (s *PostgresStore) GetPlatformConfig(ctx context.Context) (*models.PlatformConfig, error) {
	var cfg models.PlatformConfig
	if err := s.db.GetContext(ctx, &cfg, `SELECT `+configColumns+` FROM platform_config ORDER BY id LIMIT 1`); err != nil {
		return nil, notFound(err)
	}
	return &cfg, nil
}

func (s *PostgresStore) SavePlatformConfig(ctx context.Context, cfg *models.PlatformConfig) error {
	now := s.now()
	if cfg.ID == 0 {
		err := s.db.QueryRowxContext(ctx, `
			INSERT INTO platform_config (id, transaction_fee_percentage, default_token_supply, default_token_price, ethereum_rpc_url, mainnet_rpc_url, created_at, updated_at)
			VALUES (1, $1, $2, $3, $4, $5, $6, $6)
			RETURNING id, created_at, updated_at`,
			cfg.TransactionFeePercentage, cfg.DefaultTokenSupply, cfg.DefaultTokenPrice,
			cfg.EthereumRPCURL, cfg.MainnetRPCURL, now,
		).Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt)
		return classify(err)
	}

	cfg.UpdatedAt = now
	result, err := s.db.ExecContext(ctx, `
		UPDATE platform_config
		SET transaction_fee_percentage = $1, default_token_supply = $2, default_token_price = $3,
		    ethereum_rpc_url = $4, mainnet_rpc_url = $5, updated_at = $6
		WHERE id = $7`,
		cfg.TransactionFeePercentage, cfg.DefaultTokenSupply, cfg.DefaultTokenPrice,
		cfg.EthereumRPCURL, cfg.MainnetRPCURL, now, cfg.ID)
	if err != nil {
		return classify(err)
	}
	return expectOneRow(result)
}

func getBalance(ctx context.Context, q sqlx.QueryerContext, userID, tokenID int64) (decimal.Decimal, error) {
	var quantity decimal.Decimal
	err := sqlx.GetContext(ctx, q, &quantity,
		`SELECT balance FROM user_token_balances WHERE user_id = $1 AND token_id = $2`, userID, tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, classify(err)
	}
	return quantity, nil
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return classify(err)
}

// classify maps driver errors onto the store's sentinel errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Message)
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Message)
		}
	}
	return err
}
