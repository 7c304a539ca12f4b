package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tokensim/backend/internal/models"
)

type balanceKey struct {
	userID  int64
	tokenID int64
}

// MemoryStore keeps all four tables in process memory. Units of work run one
// at a time under the store lock, so they are trivially serializable.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]models.User
	tokens   map[int64]models.Token
	balances map[balanceKey]models.Balance
	txns     []models.Transaction
	config   *models.PlatformConfig

	lastUserID    int64
	lastTokenID   int64
	lastBalanceID int64
	lastTxnID     int64

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]models.User),
		tokens:   make(map[int64]models.Token),
		balances: make(map[balanceKey]models.Balance),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:    s,
		credits:  make(map[int64]decimal.Decimal),
		balances: make(map[balanceKey]models.Balance),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

// memTx stages writes and applies them only when the unit of work succeeds.
type memTx struct {
	store    *MemoryStore
	credits  map[int64]decimal.Decimal
	balances map[balanceKey]models.Balance
	txns     []models.Transaction
}

func (t *memTx) LockUser(ctx context.Context, userID int64) (*models.User, error) {
	user, ok := t.store.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if credits, staged := t.credits[userID]; staged {
		user.CreditsBalance = credits
	}
	return &user, nil
}

func (t *memTx) GetToken(ctx context.Context, tokenID int64) (*models.Token, error) {
	token, ok := t.store.tokens[tokenID]
	if !ok {
		return nil, ErrNotFound
	}
	return &token, nil
}

func (t *memTx) GetBalance(ctx context.Context, userID, tokenID int64) (decimal.Decimal, error) {
	key := balanceKey{userID, tokenID}
	if b, ok := t.balances[key]; ok {
		return b.Balance, nil
	}
	if b, ok := t.store.balances[key]; ok {
		return b.Balance, nil
	}
	return decimal.Zero, nil
}

func (t *memTx) SetCreditsBalance(ctx context.Context, userID int64, credits decimal.Decimal) error {
	if _, ok := t.store.users[userID]; !ok {
		return ErrNotFound
	}
	t.credits[userID] = credits
	return nil
}

func (t *memTx) UpsertBalance(ctx context.Context, userID, tokenID int64, quantity decimal.Decimal) (*models.Balance, error) {
	key := balanceKey{userID, tokenID}
	now := t.store.now()

	b, ok := t.balances[key]
	if !ok {
		b, ok = t.store.balances[key]
	}
	if !ok {
		t.store.lastBalanceID++
		b = models.Balance{
			ID:        t.store.lastBalanceID,
			UserID:    userID,
			TokenID:   tokenID,
			CreatedAt: now,
		}
	}
	b.Balance = quantity
	b.UpdatedAt = now
	t.balances[key] = b
	return &b, nil
}

func (t *memTx) AppendTransaction(ctx context.Context, txn *models.Transaction) error {
	t.store.lastTxnID++
	txn.ID = t.store.lastTxnID
	txn.CreatedAt = t.store.now()
	t.txns = append(t.txns, *txn)
	return nil
}

func (t *memTx) apply() {
	now := t.store.now()
	for userID, credits := range t.credits {
		user := t.store.users[userID]
		user.CreditsBalance = credits
		user.UpdatedAt = now
		t.store.users[userID] = user
	}
	for key, b := range t.balances {
		t.store.balances[key] = b
	}
	t.store.txns = append(t.store.txns, t.txns...)
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username || strings.EqualFold(existing.Email, user.Email) {
			return ErrDuplicate
		}
	}
	s.lastUserID++
	now := s.now()
	user.ID = s.lastUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *MemoryStore) CreateToken(ctx context.Context, token *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[token.CreatorID]; !ok {
		return ErrNotFound
	}
	for _, existing := range s.tokens {
		if existing.Symbol == token.Symbol {
			return ErrDuplicate
		}
	}
	s.lastTokenID++
	now := s.now()
	token.ID = s.lastTokenID
	token.CreatedAt = now
	token.UpdatedAt = now
	s.tokens[token.ID] = *token
	return nil
}

func (s *MemoryStore) GetToken(ctx context.Context, tokenID int64) (*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[tokenID]
	if !ok {
		return nil, ErrNotFound
	}
	return &token, nil
}

func (s *MemoryStore) ListTokens(ctx context.Context) ([]models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]models.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].ID < tokens[j].ID })
	return tokens, nil
}

func (s *MemoryStore) UpdateToken(ctx context.Context, token *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tokens[token.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range s.tokens {
		if id != token.ID && other.Symbol == token.Symbol {
			return ErrDuplicate
		}
	}
	existing.Name = token.Name
	existing.Symbol = token.Symbol
	existing.Description = token.Description
	existing.Status = token.Status
	existing.CurrentPrice = token.CurrentPrice
	existing.UpdatedAt = s.now()
	s.tokens[token.ID] = existing
	token.UpdatedAt = existing.UpdatedAt
	return nil
}

func (s *MemoryStore) GetBalance(ctx context.Context, userID, tokenID int64) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.balances[balanceKey{userID, tokenID}]; ok {
		return b.Balance, nil
	}
	return decimal.Zero, nil
}

func (s *MemoryStore) ListBalances(ctx context.Context, userID int64) ([]models.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balances := []models.Balance{}
	for key, b := range s.balances {
		if key.userID == userID {
			balances = append(balances, b)
		}
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].TokenID < balances[j].TokenID })
	return balances, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txns := []models.Transaction{}
	for _, txn := range s.txns {
		if txn.UserID != filter.UserID {
			continue
		}
		if filter.TokenID != nil && txn.TokenID != *filter.TokenID {
			continue
		}
		txns = append(txns, txn)
	}
	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].CreatedAt.After(txns[j].CreatedAt)
		}
		return txns[i].ID > txns[j].ID
	})
	return txns, nil
}

func (s *MemoryStore) GetPlatformConfig(ctx context.Context) (*models.PlatformConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil, ErrNotFound
	}
	cfg := *s.config
	return &cfg, nil
}

func (s *MemoryStore) SavePlatformConfig(ctx context.Context, cfg *models.PlatformConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if cfg.ID == 0 {
		if s.config != nil {
			return ErrDuplicate
		}
		cfg.ID = 1
		cfg.CreatedAt = now
	} else if s.config == nil || s.config.ID != cfg.ID {
		return ErrNotFound
	}
	cfg.UpdatedAt = now
	stored := *cfg
	s.config = &stored
	return nil
}
