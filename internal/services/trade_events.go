package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/tokensim/backend/internal/models"
)

const pendingMarker = "pending"

// TradeEventQueue pushes committed trades onto a Redis list for downstream consumers.
type TradeEventQueue struct {
	redis *redis.Client
	key   string
}

func NewTradeEventQueue(redisClient *redis.Client, key string) *TradeEventQueue {
	if key == "" {
		key = "trade_events"
	}
	return &TradeEventQueue{redis: redisClient, key: key}
}

func (q *TradeEventQueue) PublishTrade(ctx context.Context, txn *models.Transaction) error {
	data, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("marshal trade event: %w", err)
	}
	return q.redis.RPush(ctx, q.key, data).Err()
}

// IdempotencyCache remembers trade results per (user, Idempotency-Key) so a
// retried request returns the original transaction instead of trading twice.
type IdempotencyCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewIdempotencyCache(redisClient *redis.Client, ttl time.Duration) *IdempotencyCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyCache{redis: redisClient, ttl: ttl}
}

func idempotencyKey(userID int64, key string) string {
	return fmt.Sprintf("idempotency:trade:%d:%s", userID, key)
}

// Reserve claims key for userID. It returns (nil, nil) when the caller owns the
// key and must execute the trade, the stored transaction when the key was already
// completed, or ErrRequestInProgress while another request holds it.
func (c *IdempotencyCache) Reserve(ctx context.Context, userID int64, key string) (*models.Transaction, error) {
	k := idempotencyKey(userID, key)

	for attempt := 0; attempt < 2; attempt++ {
		acquired, err := c.redis.SetNX(ctx, k, pendingMarker, c.ttl).Result()
		if err != nil {
			return nil, err
		}
		if acquired {
			return nil, nil
		}

		data, err := c.redis.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return nil, err
		}
		if string(data) == pendingMarker {
			return nil, ErrRequestInProgress
		}

		var txn models.Transaction
		if err := json.Unmarshal(data, &txn); err != nil {
			return nil, fmt.Errorf("decode cached trade: %w", err)
		}
		return &txn, nil
	}
	return nil, ErrRequestInProgress
}

// Complete stores the result of a reserved key.
func (c *IdempotencyCache) Complete(ctx context.Context, userID int64, key string, txn *models.Transaction) error {
	data, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	return c.redis.Set(ctx, idempotencyKey(userID, key), data, c.ttl).Err()
}

// Release frees a reserved key after a failed trade so the client can retry it.
func (c *IdempotencyCache) Release(ctx context.Context, userID int64, key string) error {
	return c.redis.Del(ctx, idempotencyKey(userID, key)).Err()
}
