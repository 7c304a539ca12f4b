package handlers

import (
	"errors"
	"net/http"

	"github.com/tokensim/backend/internal/logger"
	"github.com/tokensim/backend/internal/models"
	"github.com/tokensim/backend/internal/services"
)

const idempotencyHeader = "Idempotency-Key"

type TradeHandler struct {
	ledger      *services.LedgerService
	idempotency *services.IdempotencyCache
	validator   *services.ValidationHelper
}

// NewTradeHandler builds the trade endpoint. idempotency may be nil, in which
// case the Idempotency-Key header is ignored.
func NewTradeHandler(ledger *services.LedgerService, idempotency *services.IdempotencyCache) *TradeHandler {
	return &TradeHandler{
		ledger:      ledger,
		idempotency: idempotency,
		validator:   services.NewValidationHelper(),
	}
}

type tradeResponse struct {
	*models.Transaction
	Replayed bool `json:"replayed"`
}

// ExecuteTrade buys or sells a token at its current price
// @Summary Execute trade
// @Description Buy or sell a token against the user's credits balance
// @Tags Trades
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client supplied key for safe retries"
// @Param request body services.TradeRequest true "Trade request"
// @Success 201 {object} tradeResponse
// @Success 200 {object} tradeResponse "Replayed result"
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse "Business rule rejection or reused Idempotency-Key"
// @Failure 503 {object} services.ErrorResponse
// @Router /trades [post]
func (h *TradeHandler) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req services.TradeRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	ctx := r.Context()
	key := r.Header.Get(idempotencyHeader)
	useKey := key != "" && h.idempotency != nil

	if useKey {
		if len(key) > 255 {
			services.SendErrorResponse(w, "Idempotency-Key too long", http.StatusBadRequest, nil)
			return
		}
		previous, err := h.idempotency.Reserve(ctx, req.UserID, key)
		switch {
		case errors.Is(err, services.ErrRequestInProgress):
			services.SendServiceError(w, err)
			return
		case err != nil:
			logger.Warnf("[TRADE] Idempotency cache unavailable, executing without it: %v", err)
			useKey = false
		case previous != nil && !req.Matches(previous):
			services.SendServiceError(w, services.ErrIdempotencyKeyReused)
			return
		case previous != nil:
			writeJSON(w, http.StatusOK, tradeResponse{Transaction: previous, Replayed: true})
			return
		}
	}

	txn, err := h.ledger.ExecuteTrade(ctx, req)
	if err != nil {
		if useKey {
			if relErr := h.idempotency.Release(ctx, req.UserID, key); relErr != nil {
				logger.Warnf("[TRADE] Failed to release idempotency key: %v", relErr)
			}
		}
		services.SendServiceError(w, err)
		return
	}

	if useKey {
		if err := h.idempotency.Complete(ctx, req.UserID, key, txn); err != nil {
			logger.Warnf("[TRADE] Failed to store idempotent result for %s: %v", txn.Reference, err)
		}
	}

	writeJSON(w, http.StatusCreated, tradeResponse{Transaction: txn})
}
