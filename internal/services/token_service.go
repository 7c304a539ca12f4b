package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/tokensim/backend/internal/logger"
	"github.com/tokensim/backend/internal/models"
	"github.com/tokensim/backend/internal/storage"
)

type CreateTokenRequest struct {
	Name          string          `json:"name" validate:"required,min=1,max=100"`
	Symbol        string          `json:"symbol" validate:"required,min=1,max=10,alphanum"`
	Description   *string         `json:"description,omitempty" validate:"omitempty,max=1000"`
	InitialSupply decimal.Decimal `json:"initial_supply"`
	CreatorID     int64           `json:"creator_id" validate:"required,gt=0"`
}

// UpdateTokenRequest patches a token. Nil fields are left unchanged; a null
// description clears it.
type UpdateTokenRequest struct {
	Name         *string               `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Symbol       *string               `json:"symbol,omitempty" validate:"omitempty,min=1,max=10,alphanum"`
	Description  models.NullableString `json:"description" validate:"omitempty,max=1000"`
	Status       *models.TokenStatus   `json:"status,omitempty" validate:"omitempty,oneof=active paused inactive"`
	CurrentPrice *decimal.Decimal      `json:"current_price,omitempty"`
}

type TokenService struct {
	store storage.Store
}

func NewTokenService(store storage.Store) *TokenService {
	return &TokenService{store: store}
}

// CreateToken registers a new active token listed at models.DefaultTokenPrice.
func (s *TokenService) CreateToken(ctx context.Context, req CreateTokenRequest) (*models.Token, error) {
	name, err := trimmedField("name", req.Name, 1, 100)
	if err != nil {
		return nil, err
	}
	symbol, err := trimmedField("symbol", req.Symbol, 1, 10)
	if err != nil {
		return nil, err
	}
	if !req.InitialSupply.IsPositive() || !models.FitsPrecision(req.InitialSupply) {
		return nil, fmt.Errorf("%w: initial_supply is required, positive, below 10^%d with at most %d decimal places",
			ErrInvalidRequest, models.IntegerDigits, models.Scale)
	}

	token := &models.Token{
		Name:          name,
		Symbol:        strings.ToUpper(symbol),
		Description:   req.Description,
		InitialSupply: req.InitialSupply,
		CurrentSupply: req.InitialSupply,
		CurrentPrice:  models.DefaultTokenPrice,
		CreatorID:     req.CreatorID,
		Status:        models.TokenStatusActive,
	}
	if err := s.store.CreateToken(ctx, token); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("%w: creator %d", ErrAccountNotFound, req.CreatorID)
		case errors.Is(err, storage.ErrDuplicate):
			return nil, fmt.Errorf("%w: symbol %s already in use", ErrDuplicate, token.Symbol)
		}
		return nil, storageError(err)
	}

	logger.Infof("[TOKEN] Created token %d (%s) at price %s", token.ID, token.Symbol, token.CurrentPrice)
	return token, nil
}

func (s *TokenService) GetToken(ctx context.Context, tokenID int64) (*models.Token, error) {
	token, err := s.store.GetToken(ctx, tokenID)
	if err != nil {
		return nil, lookupError(err, ErrTokenNotFound)
	}
	return token, nil
}

func (s *TokenService) ListTokens(ctx context.Context) ([]models.Token, error) {
	tokens, err := s.store.ListTokens(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return tokens, nil
}

func (s *TokenService) UpdateToken(ctx context.Context, tokenID int64, req UpdateTokenRequest) (*models.Token, error) {
	token, err := s.GetToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if token.Name, err = trimmedField("name", *req.Name, 1, 100); err != nil {
			return nil, err
		}
	}
	if req.Symbol != nil {
		symbol, err := trimmedField("symbol", *req.Symbol, 1, 10)
		if err != nil {
			return nil, err
		}
		token.Symbol = strings.ToUpper(symbol)
	}
	if req.Description.Set {
		token.Description = req.Description.Ptr()
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, *req.Status)
		}
		token.Status = *req.Status
	}
	if req.CurrentPrice != nil {
		if !req.CurrentPrice.IsPositive() || !models.FitsPrecision(*req.CurrentPrice) {
			return nil, fmt.Errorf("%w: current_price must be positive, below 10^%d with at most %d decimal places",
				ErrInvalidRequest, models.IntegerDigits, models.Scale)
		}
		token.CurrentPrice = *req.CurrentPrice
	}

	if err := s.store.UpdateToken(ctx, token); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrTokenNotFound
		case errors.Is(err, storage.ErrDuplicate):
			return nil, fmt.Errorf("%w: symbol %s already in use", ErrDuplicate, token.Symbol)
		}
		return nil, storageError(err)
	}

	logger.Infof("[TOKEN] Updated token %d (%s) status=%s price=%s", token.ID, token.Symbol, token.Status, token.CurrentPrice)
	return token, nil
}

// trimmedField strips surrounding whitespace and checks the remaining length.
func trimmedField(field, value string, minLen, maxLen int) (string, error) {
	value = strings.TrimSpace(value)
	if n := utf8.RuneCountInString(value); n < minLen || n > maxLen {
		return "", fmt.Errorf("%w: %s must be %d to %d characters", ErrInvalidRequest, field, minLen, maxLen)
	}
	return value, nil
}
