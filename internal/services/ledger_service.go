package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tokensim/backend/internal/audit"
	"github.com/tokensim/backend/internal/config"
	"github.com/tokensim/backend/internal/logger"
	"github.com/tokensim/backend/internal/metrics"
	"github.com/tokensim/backend/internal/models"
	"github.com/tokensim/backend/internal/storage"
)

// TradeRequest asks the ledger to buy or sell amount units of a token at its current price.
type TradeRequest struct {
	UserID  int64                  `json:"user_id" validate:"required,gt=0"`
	TokenID int64                  `json:"token_id" validate:"required,gt=0"`
	Type    models.TransactionType `json:"transaction_type" validate:"required,oneof=buy sell"`
	Amount  decimal.Decimal        `json:"amount"`
}

func (r TradeRequest) validate() error {
	if r.UserID <= 0 || r.TokenID <= 0 {
		return fmt.Errorf("%w: user_id and token_id must be positive", ErrInvalidRequest)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: transaction_type must be buy or sell", ErrInvalidRequest)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidRequest)
	}
	if !models.FitsPrecision(r.Amount) {
		return fmt.Errorf("%w: amount must be below 10^%d with at most %d decimal places", ErrInvalidRequest, models.IntegerDigits, models.Scale)
	}
	return nil
}

// Matches reports whether txn is the result of this same request.
func (r TradeRequest) Matches(txn *models.Transaction) bool {
	return txn.UserID == r.UserID &&
		txn.TokenID == r.TokenID &&
		txn.Type == r.Type &&
		txn.Amount.Equal(r.Amount)
}

// TradeEventPublisher receives every committed trade.
type TradeEventPublisher interface {
	PublishTrade(ctx context.Context, txn *models.Transaction) error
}

// TokenBalanceAdjustment sets the held quantity of one token.
type TokenBalanceAdjustment struct {
	TokenID int64           `json:"token_id" validate:"required,gt=0"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceAdjustment overwrites a user's credits and token balances. Nil fields are left alone.
type BalanceAdjustment struct {
	CreditsBalance *decimal.Decimal         `json:"credits_balance,omitempty"`
	TokenBalances  []TokenBalanceAdjustment `json:"token_balances,omitempty" validate:"dive"`
}

// LedgerService executes trades. All reads and writes of one user's credits and
// token balances are serialized: in process by a per-user lock, and in the store by
// a serializable unit of work that is retried when it loses a write conflict.
type LedgerService struct {
	store   storage.Store
	locks   *userLocks
	audit   *audit.AuditLogger
	metrics *metrics.Metrics
	events  TradeEventPublisher

	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
}

func NewLedgerService(store storage.Store, cfg config.LedgerConfig, auditLogger *audit.AuditLogger, m *metrics.Metrics) *LedgerService {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if auditLogger == nil {
		auditLogger = audit.NewAuditLogger()
	}
	return &LedgerService{
		store:           store,
		locks:           newUserLocks(),
		audit:           auditLogger,
		metrics:         m,
		maxAttempts:     maxAttempts,
		initialInterval: cfg.RetryInitialInterval,
		maxInterval:     cfg.RetryMaxInterval,
	}
}

// SetEventPublisher enables best-effort publication of committed trades.
func (s *LedgerService) SetEventPublisher(p TradeEventPublisher) {
	s.events = p
}

// ExecuteTrade validates and applies one trade. On success exactly one credits
// update, one balance upsert and one transaction insert have been committed; on
// failure nothing has.
func (s *LedgerService) ExecuteTrade(ctx context.Context, req TradeRequest) (*models.Transaction, error) {
	start := time.Now()
	txn, err := s.executeTrade(ctx, req)

	outcome := "OK"
	if err != nil {
		outcome, _ = ErrorCode(err)
	}
	s.metrics.ObserveTrade(string(req.Type), outcome, time.Since(start))

	if err != nil {
		switch {
		case IsPrecondition(err):
			s.audit.LogRejectedTrade(req.UserID, req.TokenID, req.Type, req.Amount.String(), outcome)
		case errors.Is(err, ErrStorageFailure), errors.Is(err, ErrConcurrencyConflict):
			logger.Errorf("[LEDGER] Trade failed for user %d token %d: %v", req.UserID, req.TokenID, err)
			s.audit.LogError(req.UserID, "trade", err)
		}
		return nil, err
	}

	logger.Infof("[LEDGER] %s %s of token %d by user %d at %s (ref %s)",
		txn.Type, txn.Amount, txn.TokenID, txn.UserID, txn.PricePerToken, txn.Reference)
	s.audit.LogTrade(txn)

	if s.events != nil {
		if err := s.events.PublishTrade(ctx, txn); err != nil {
			logger.Warnf("[LEDGER] Failed to publish trade %s: %v", txn.Reference, err)
		}
	}
	return txn, nil
}

func (s *LedgerService) executeTrade(ctx context.Context, req TradeRequest) (*models.Transaction, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(req.UserID)
	defer unlock()

	var txn *models.Transaction
	err := s.retry(ctx, func() error {
		var err error
		txn, err = s.executeOnce(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// executeOnce runs the read-validate-write sequence in a single unit of work.
func (s *LedgerService) executeOnce(ctx context.Context, req TradeRequest) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		user, err := tx.LockUser(ctx, req.UserID)
		if err != nil {
			return notFoundAs(err, ErrAccountNotFound)
		}

		token, err := tx.GetToken(ctx, req.TokenID)
		if err != nil {
			return notFoundAs(err, ErrTokenNotFound)
		}
		if !token.Tradable() {
			return fmt.Errorf("%w: token %d is %s", ErrTokenNotActive, token.ID, token.Status)
		}

		held, err := tx.GetBalance(ctx, req.UserID, req.TokenID)
		if err != nil {
			return err
		}

		price := token.CurrentPrice
		totalCost := req.Amount.Mul(price).Round(models.Scale)

		var creditsChange, newHeld decimal.Decimal
		switch req.Type {
		case models.TransactionTypeBuy:
			if user.CreditsBalance.LessThan(totalCost) {
				return fmt.Errorf("%w: need %s, have %s", ErrInsufficientCredits, totalCost, user.CreditsBalance)
			}
			creditsChange = totalCost.Neg()
			newHeld = held.Add(req.Amount)
		case models.TransactionTypeSell:
			if held.LessThan(req.Amount) {
				return fmt.Errorf("%w: need %s, have %s", ErrInsufficientTokenBalance, req.Amount, held)
			}
			creditsChange = totalCost
			newHeld = held.Sub(req.Amount)
		}

		newCredits := user.CreditsBalance.Add(creditsChange)
		for _, v := range []decimal.Decimal{totalCost, newCredits, newHeld} {
			if !models.FitsPrecision(v) {
				return fmt.Errorf("%w: trade result %s exceeds the storable range", ErrInvalidRequest, v)
			}
		}

		if err := tx.SetCreditsBalance(ctx, user.ID, newCredits); err != nil {
			return notFoundAs(err, ErrAccountNotFound)
		}
		if _, err := tx.UpsertBalance(ctx, user.ID, token.ID, newHeld); err != nil {
			return err
		}

		record := &models.Transaction{
			Reference:     uuid.New(),
			UserID:        user.ID,
			TokenID:       token.ID,
			Type:          req.Type,
			Amount:        req.Amount,
			PricePerToken: price,
			TotalCost:     totalCost,
			CreditsChange: creditsChange,
		}
		if err := tx.AppendTransaction(ctx, record); err != nil {
			return err
		}
		txn = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// retry runs op until it succeeds, fails with anything other than a write
// conflict, or runs out of attempts.
func (s *LedgerService) retry(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	if s.initialInterval > 0 {
		eb.InitialInterval = s.initialInterval
	}
	if s.maxInterval > 0 {
		eb.MaxInterval = s.maxInterval
	}
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.maxAttempts-1)), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err == nil || errors.Is(err, storage.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		s.metrics.IncTradeRetry()
		logger.Debugf("[LEDGER] Write conflict on attempt %d, retrying in %s: %v", attempt, wait, err)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrConflict):
		return fmt.Errorf("%w after %d attempts", ErrConcurrencyConflict, attempt)
	case isClassified(err):
		return err
	default:
		return storageError(err)
	}
}

// ListTransactions returns the user's trades, newest first, optionally for one token.
func (s *LedgerService) ListTransactions(ctx context.Context, userID int64, tokenID *int64) ([]models.Transaction, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, notFoundAs(err, ErrAccountNotFound)
	}
	txns, err := s.store.ListTransactions(ctx, storage.TransactionFilter{UserID: userID, TokenID: tokenID})
	if err != nil {
		return nil, storageError(err)
	}
	return txns, nil
}

// GetBalance returns the quantity of tokenID held by userID, zero when none.
func (s *LedgerService) GetBalance(ctx context.Context, userID, tokenID int64) (decimal.Decimal, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return decimal.Zero, notFoundAs(err, ErrAccountNotFound)
	}
	if _, err := s.store.GetToken(ctx, tokenID); err != nil {
		return decimal.Zero, notFoundAs(err, ErrTokenNotFound)
	}
	balance, err := s.store.GetBalance(ctx, userID, tokenID)
	if err != nil {
		return decimal.Zero, storageError(err)
	}
	return balance, nil
}

// AdjustBalances overwrites balances on behalf of an admin. It takes the same
// per-user lock as trades but records no transaction.
func (s *LedgerService) AdjustBalances(ctx context.Context, userID int64, adj BalanceAdjustment) (*models.User, error) {
	user, err := s.adjustBalances(ctx, userID, adj)
	if err != nil {
		s.metrics.IncBalanceAdjustment("error")
		return nil, err
	}
	s.metrics.IncBalanceAdjustment("ok")
	return user, nil
}

func (s *LedgerService) adjustBalances(ctx context.Context, userID int64, adj BalanceAdjustment) (*models.User, error) {
	if err := adj.validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, notFoundAs(err, ErrAccountNotFound)
	}
	for _, tb := range adj.TokenBalances {
		if _, err := s.store.GetToken(ctx, tb.TokenID); err != nil {
			return nil, notFoundAs(err, ErrTokenNotFound)
		}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	if adj.CreditsBalance != nil {
		credits := *adj.CreditsBalance
		var previous decimal.Decimal
		err := s.retry(ctx, func() error {
			return s.store.WithTx(ctx, func(tx storage.Tx) error {
				user, err := tx.LockUser(ctx, userID)
				if err != nil {
					return notFoundAs(err, ErrAccountNotFound)
				}
				previous = user.CreditsBalance
				return tx.SetCreditsBalance(ctx, userID, credits)
			})
		})
		if err != nil {
			return nil, err
		}
		s.audit.LogBalanceAdjustment(userID, 0, previous.String(), credits.String())
	}

	for _, tb := range adj.TokenBalances {
		var previous decimal.Decimal
		err := s.retry(ctx, func() error {
			return s.store.WithTx(ctx, func(tx storage.Tx) error {
				if _, err := tx.LockUser(ctx, userID); err != nil {
					return notFoundAs(err, ErrAccountNotFound)
				}
				held, err := tx.GetBalance(ctx, userID, tb.TokenID)
				if err != nil {
					return err
				}
				previous = held
				_, err = tx.UpsertBalance(ctx, userID, tb.TokenID, tb.Balance)
				return notFoundAs(err, ErrTokenNotFound)
			})
		})
		if err != nil {
			return nil, err
		}
		s.audit.LogBalanceAdjustment(userID, tb.TokenID, previous.String(), tb.Balance.String())
	}

	logger.Infof("[LEDGER] Balances adjusted for user %d", userID)

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, ErrAccountNotFound)
	}
	return user, nil
}

func (a BalanceAdjustment) validate() error {
	if a.CreditsBalance == nil && len(a.TokenBalances) == 0 {
		return fmt.Errorf("%w: nothing to adjust", ErrInvalidRequest)
	}
	if a.CreditsBalance != nil {
		if a.CreditsBalance.IsNegative() || !models.FitsPrecision(*a.CreditsBalance) {
			return fmt.Errorf("%w: credits_balance must be a non-negative amount below 10^%d with at most %d decimal places",
				ErrInvalidRequest, models.IntegerDigits, models.Scale)
		}
	}
	seen := make(map[int64]bool, len(a.TokenBalances))
	for _, tb := range a.TokenBalances {
		if tb.TokenID <= 0 {
			return fmt.Errorf("%w: token_id must be positive", ErrInvalidRequest)
		}
		if seen[tb.TokenID] {
			return fmt.Errorf("%w: token %d listed twice", ErrInvalidRequest, tb.TokenID)
		}
		seen[tb.TokenID] = true
		if tb.Balance.IsNegative() || !models.FitsPrecision(tb.Balance) {
			return fmt.Errorf("%w: balance for token %d must be a non-negative amount below 10^%d with at most %d decimal places",
				ErrInvalidRequest, tb.TokenID, models.IntegerDigits, models.Scale)
		}
	}
	return nil
}

// notFoundAs replaces storage.ErrNotFound with the domain error target.
func notFoundAs(err error, target error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return target
	}
	return err
}

func isClassified(err error) bool {
	code, _ := ErrorCode(err)
	return code != CodeInternal
}
