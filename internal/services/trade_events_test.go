package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokensim/backend/internal/models"
)

func sampleTransaction() *models.Transaction {
	return &models.Transaction{
		ID:            7,
		Reference:     uuid.MustParse("7d9f3a1c-52b4-4c8e-9a43-0f2d6a8b1e55"),
		UserID:        1,
		TokenID:       2,
		Type:          models.TransactionTypeBuy,
		Amount:        dec("100"),
		PricePerToken: dec("1.5"),
		TotalCost:     dec("150"),
		CreditsChange: dec("-150"),
		CreatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestTradeEventQueue_PublishTrade(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	queue := NewTradeEventQueue(db, "")

	txn := sampleTransaction()
	data, err := json.Marshal(txn)
	require.NoError(t, err)

	t.Run("pushes the trade onto the default list", func(t *testing.T) {
		mock.ExpectRPush("trade_events", data).SetVal(1)

		assert.NoError(t, queue.PublishTrade(ctx, txn))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns redis errors", func(t *testing.T) {
		mock.ExpectRPush("trade_events", data).SetErr(errors.New("connection reset"))

		assert.Error(t, queue.PublishTrade(ctx, txn))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIdempotencyCache(t *testing.T) {
	ctx := context.Background()
	ttl := time.Hour
	key := "idempotency:trade:1:abc"

	t.Run("first request reserves the key", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		cache := NewIdempotencyCache(db, ttl)

		mock.ExpectSetNX(key, pendingMarker, ttl).SetVal(true)

		txn, err := cache.Reserve(ctx, 1, "abc")
		assert.NoError(t, err)
		assert.Nil(t, txn)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent duplicate is rejected while pending", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		cache := NewIdempotencyCache(db, ttl)

		mock.ExpectSetNX(key, pendingMarker, ttl).SetVal(false)
		mock.ExpectGet(key).SetVal(pendingMarker)

		_, err := cache.Reserve(ctx, 1, "abc")
		assert.ErrorIs(t, err, ErrRequestInProgress)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("completed key replays the stored transaction", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		cache := NewIdempotencyCache(db, ttl)

		stored := sampleTransaction()
		data, err := json.Marshal(stored)
		require.NoError(t, err)

		mock.ExpectSet(key, data, ttl).SetVal("OK")
		require.NoError(t, cache.Complete(ctx, 1, "abc", stored))

		mock.ExpectSetNX(key, pendingMarker, ttl).SetVal(false)
		mock.ExpectGet(key).SetVal(string(data))

		txn, err := cache.Reserve(ctx, 1, "abc")
		require.NoError(t, err)
		require.NotNil(t, txn)
		assert.Equal(t, stored.Reference, txn.Reference)
		assert.True(t, stored.TotalCost.Equal(txn.TotalCost))
		assert.True(t, stored.CreditsChange.Equal(txn.CreditsChange))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("key expiring between calls is reserved again", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		cache := NewIdempotencyCache(db, ttl)

		mock.ExpectSetNX(key, pendingMarker, ttl).SetVal(false)
		mock.ExpectGet(key).RedisNil()
		mock.ExpectSetNX(key, pendingMarker, ttl).SetVal(true)

		txn, err := cache.Reserve(ctx, 1, "abc")
		assert.NoError(t, err)
		assert.Nil(t, txn)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("release deletes the key", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		cache := NewIdempotencyCache(db, ttl)

		mock.ExpectDel(key).SetVal(1)

		assert.NoError(t, cache.Release(ctx, 1, "abc"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
