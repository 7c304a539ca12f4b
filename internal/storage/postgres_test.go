package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokensim/backend/internal/models"
)

var (
	userRowColumns    = []string{"id", "username", "email", "credits_balance", "is_admin", "created_at", "updated_at"}
	balanceRowColumns = []string{"id", "user_id", "token_id", "balance", "created_at", "updated_at"}
	txnRowColumns     = []string{"id", "reference", "user_id", "token_id", "transaction_type", "amount", "price_per_token", "total_cost", "credits_change", "created_at"}
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresStore_WithTx(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("commits every write of the unit of work", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(1, "alice", "alice@example.com", "1000.00000000", false, now, now))
		mock.ExpectExec(`UPDATE users SET credits_balance = \$1, updated_at = \$2 WHERE id = \$3`).
			WithArgs(decimal.NewFromInt(850), sqlmock.AnyArg(), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO user_token_balances (.+) ON CONFLICT \(user_id, token_id\)`).
			WithArgs(int64(1), int64(2), decimal.NewFromInt(100), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(balanceRowColumns).AddRow(5, 1, 2, "100", now, now))
		mock.ExpectQuery(`INSERT INTO transactions`).
			WithArgs(sqlmock.AnyArg(), int64(1), int64(2), "buy", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, now))
		mock.ExpectCommit()

		txn := &models.Transaction{
			Reference:     uuid.New(),
			UserID:        1,
			TokenID:       2,
			Type:          models.TransactionTypeBuy,
			Amount:        decimal.NewFromInt(100),
			PricePerToken: decimal.RequireFromString("1.5"),
			TotalCost:     decimal.NewFromInt(150),
			CreditsChange: decimal.NewFromInt(-150),
		}

		err := store.WithTx(ctx, func(tx Tx) error {
			user, err := tx.LockUser(ctx, 1)
			require.NoError(t, err)
			assert.True(t, user.CreditsBalance.Equal(decimal.NewFromInt(1000)))

			require.NoError(t, tx.SetCreditsBalance(ctx, 1, user.CreditsBalance.Sub(decimal.NewFromInt(150))))

			balance, err := tx.UpsertBalance(ctx, 1, 2, decimal.NewFromInt(100))
			require.NoError(t, err)
			assert.Equal(t, int64(5), balance.ID)

			return tx.AppendTransaction(ctx, txn)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(11), txn.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("callback error rolls back and is returned unchanged", func(t *testing.T) {
		store, mock := newMockStore(t)
		rejected := errors.New("insufficient credits")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := store.WithTx(ctx, func(tx Tx) error { return rejected })
		assert.Same(t, rejected, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("serialization failure on commit is a conflict", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})

		err := store.WithTx(ctx, func(tx Tx) error { return nil })
		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deadlock inside the unit of work is a conflict", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(1)).
			WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
		mock.ExpectRollback()

		err := store.WithTx(ctx, func(tx Tx) error {
			_, err := tx.LockUser(ctx, 1)
			return err
		})
		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing rows map to not found and zero balances", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(9)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT balance FROM user_token_balances WHERE user_id = \$1 AND token_id = \$2`).
			WithArgs(int64(9), int64(3)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(`UPDATE users SET credits_balance`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.WithTx(ctx, func(tx Tx) error {
			_, err := tx.LockUser(ctx, 9)
			assert.ErrorIs(t, err, ErrNotFound)

			held, err := tx.GetBalance(ctx, 9, 3)
			require.NoError(t, err)
			assert.True(t, held.IsZero())

			return tx.SetCreditsBalance(ctx, 9, decimal.Zero)
		})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_CreateUser(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "alice@example.com", decimal.NewFromInt(1000), false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, now, now))
	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	user := &models.User{Username: "alice", Email: "alice@example.com", CreditsBalance: decimal.NewFromInt(1000)}
	require.NoError(t, store.CreateUser(ctx, user))
	assert.Equal(t, int64(1), user.ID)

	err := store.CreateUser(ctx, &models.User{Username: "alice", Email: "alice@example.com", CreditsBalance: decimal.NewFromInt(1000)})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListTransactions(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	ref := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM transactions WHERE user_id = \$1 ORDER BY created_at DESC, id DESC`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(txnRowColumns).
			AddRow(2, ref.String(), 1, 4, "sell", "50", "1.5", "75", "75", now).
			AddRow(1, uuid.NewString(), 1, 4, "buy", "100", "1.5", "150", "-150", now.Add(-time.Minute)))

	tokenID := int64(4)
	mock.ExpectQuery(`SELECT (.+) FROM transactions WHERE user_id = \$1 AND token_id = \$2 ORDER BY created_at DESC, id DESC`).
		WithArgs(int64(1), tokenID).
		WillReturnRows(sqlmock.NewRows(txnRowColumns))

	txns, err := store.ListTransactions(ctx, TransactionFilter{UserID: 1})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, ref, txns[0].Reference)
	assert.Equal(t, models.TransactionTypeSell, txns[0].Type)
	assert.True(t, txns[1].CreditsChange.Equal(decimal.NewFromInt(-150)))

	txns, err = store.ListTransactions(ctx, TransactionFilter{UserID: 1, TokenID: &tokenID})
	require.NoError(t, err)
	assert.NotNil(t, txns)
	assert.Empty(t, txns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PlatformConfig(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM platform_config ORDER BY id LIMIT 1`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO platform_config`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, now, now))
	mock.ExpectExec(`UPDATE platform_config`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), decimal.RequireFromString("0.5"), nil, nil, sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := store.GetPlatformConfig(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	cfg := &models.PlatformConfig{
		TransactionFeePercentage: models.DefaultTransactionFeePercentage,
		DefaultTokenSupply:       models.DefaultTokenSupply,
		DefaultTokenPrice:        models.DefaultConfigTokenPrice,
	}
	require.NoError(t, store.SavePlatformConfig(ctx, cfg))
	assert.Equal(t, int64(1), cfg.ID)

	cfg.DefaultTokenPrice = decimal.RequireFromString("0.5")
	require.NoError(t, store.SavePlatformConfig(ctx, cfg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PlatformConfigSingleRow(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO platform_config \(id, (.+)\) VALUES \(1, `).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint \"platform_config_pkey\""})

	cfg := &models.PlatformConfig{
		TransactionFeePercentage: models.DefaultTransactionFeePercentage,
		DefaultTokenSupply:       models.DefaultTokenSupply,
		DefaultTokenPrice:        models.DefaultConfigTokenPrice,
	}
	err := store.SavePlatformConfig(ctx, cfg)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Zero(t, cfg.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(&pq.Error{Code: "40001"}), ErrConflict)
	assert.ErrorIs(t, classify(&pq.Error{Code: "40P01"}), ErrConflict)
	assert.ErrorIs(t, classify(&pq.Error{Code: "23505"}), ErrDuplicate)
	assert.ErrorIs(t, classify(&pq.Error{Code: "23503"}), ErrNotFound)

	other := errors.New("connection refused")
	assert.Same(t, other, classify(other))
}
