package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tokensim/backend/internal/logger"
	"github.com/tokensim/backend/internal/models"
	"github.com/tokensim/backend/internal/storage"
)

type CreateUserRequest struct {
	Username       string           `json:"username" validate:"required,min=3,max=50"`
	Email          string           `json:"email" validate:"required,email"`
	CreditsBalance *decimal.Decimal `json:"credits_balance,omitempty"`
	IsAdmin        bool             `json:"is_admin"`
}

type UserService struct {
	store storage.Store
}

func NewUserService(store storage.Store) *UserService {
	return &UserService{store: store}
}

func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	username, err := trimmedField("username", req.Username, 3, 50)
	if err != nil {
		return nil, err
	}
	credits := models.DefaultCreditsBalance
	if req.CreditsBalance != nil {
		credits = *req.CreditsBalance
	}
	if credits.IsNegative() || !models.FitsPrecision(credits) {
		return nil, fmt.Errorf("%w: credits_balance must be a non-negative amount below 10^%d with at most %d decimal places",
			ErrInvalidRequest, models.IntegerDigits, models.Scale)
	}

	user := &models.User{
		Username:       username,
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		CreditsBalance: credits,
		IsAdmin:        req.IsAdmin,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, fmt.Errorf("%w: username or email already registered", ErrDuplicate)
		}
		return nil, storageError(err)
	}

	logger.Infof("[USER] Created user %d (%s)", user.ID, user.Username)
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, lookupError(err, ErrAccountNotFound)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return users, nil
}

// ListUserTokens returns every token balance record held by the user.
func (s *UserService) ListUserTokens(ctx context.Context, userID int64) ([]models.Balance, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	balances, err := s.store.ListBalances(ctx, userID)
	if err != nil {
		return nil, storageError(err)
	}
	return balances, nil
}

// IsAdmin reports whether userID names an existing admin account.
func (s *UserService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageError(err)
	}
	return user.IsAdmin, nil
}

// lookupError maps a not-found store error to target and anything else to a storage failure.
func lookupError(err error, target error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return target
	}
	return storageError(err)
}
