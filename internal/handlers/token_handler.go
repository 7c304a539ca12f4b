package handlers

import (
	"net/http"

	"github.com/tokensim/backend/internal/services"
)

type TokenHandler struct {
	tokens    *services.TokenService
	validator *services.ValidationHelper
}

func NewTokenHandler(tokens *services.TokenService) *TokenHandler {
	return &TokenHandler{
		tokens:    tokens,
		validator: services.NewValidationHelper(),
	}
}

// CreateToken launches a new token
// @Summary Create token
// @Tags Tokens
// @Accept json
// @Produce json
// @Param request body services.CreateTokenRequest true "Token"
// @Success 201 {object} models.Token
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /tokens [post]
func (h *TokenHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req services.CreateTokenRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	token, err := h.tokens.CreateToken(r.Context(), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

func (h *TokenHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.tokens.ListTokens(r.Context())
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *TokenHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := pathID(w, r, "tokenID")
	if !ok {
		return
	}

	token, err := h.tokens.GetToken(r.Context(), tokenID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// UpdateToken patches token metadata, status or price (admin only).
func (h *TokenHandler) UpdateToken(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := pathID(w, r, "tokenID")
	if !ok {
		return
	}

	var req services.UpdateTokenRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	token, err := h.tokens.UpdateToken(r.Context(), tokenID, req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}
