package handlers

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/tokensim/backend/internal/services"
)

type UserHandler struct {
	users     *services.UserService
	ledger    *services.LedgerService
	validator *services.ValidationHelper
}

func NewUserHandler(users *services.UserService, ledger *services.LedgerService) *UserHandler {
	return &UserHandler{
		users:     users,
		ledger:    ledger,
		validator: services.NewValidationHelper(),
	}
}

// CreateUser registers an account
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Param request body services.CreateUserRequest true "User"
// @Success 201 {object} models.User
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /users [post]
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req services.CreateUserRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	user, err := h.users.CreateUser(r.Context(), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListUserTokens returns every token balance the user holds.
func (h *UserHandler) ListUserTokens(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	balances, err := h.users.ListUserTokens(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

// ListTransactions returns the user's trade history, newest first
// @Summary List user transactions
// @Tags Users
// @Produce json
// @Param userID path int true "User ID"
// @Param token_id query int false "Only trades of this token"
// @Success 200 {array} models.Transaction
// @Failure 404 {object} services.ErrorResponse
// @Router /users/{userID}/transactions [get]
func (h *UserHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var tokenID *int64
	if raw := r.URL.Query().Get("token_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			services.SendErrorResponse(w, "Invalid token_id", http.StatusBadRequest, nil)
			return
		}
		tokenID = &id
	}

	txns, err := h.ledger.ListTransactions(r.Context(), userID, tokenID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (h *UserHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	tokenID, ok := pathID(w, r, "tokenID")
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), userID, tokenID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		UserID  int64           `json:"user_id"`
		TokenID int64           `json:"token_id"`
		Balance decimal.Decimal `json:"balance"`
	}{userID, tokenID, balance})
}

// AdjustBalances overwrites a user's credits and token balances (admin only).
func (h *UserHandler) AdjustBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var req services.BalanceAdjustment
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	user, err := h.ledger.AdjustBalances(r.Context(), userID, req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
