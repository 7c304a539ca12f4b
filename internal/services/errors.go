package services

import (
	"errors"
	"net/http"

	"github.com/tokensim/backend/internal/storage"
)

var (
	ErrInvalidRequest           = errors.New("invalid request")
	ErrAccountNotFound          = errors.New("user not found")
	ErrTokenNotFound            = errors.New("token not found")
	ErrTokenNotActive           = errors.New("token is not active")
	ErrInsufficientCredits      = errors.New("insufficient credits for purchase")
	ErrInsufficientTokenBalance = errors.New("insufficient token balance for sale")
	ErrConcurrencyConflict      = errors.New("concurrent update conflict, retry later")
	ErrStorageFailure           = errors.New("storage unavailable")
	ErrConfigNotFound           = errors.New("platform configuration not found")
	ErrDuplicate                = errors.New("record already exists")
	ErrRequestInProgress        = errors.New("request with this idempotency key is in progress")
	ErrIdempotencyKeyReused     = errors.New("idempotency key was used for a different trade")
)

// Stable error codes returned to API clients.
const (
	CodeInvalidRequest           = "INVALID_REQUEST"
	CodeAccountNotFound          = "ACCOUNT_NOT_FOUND"
	CodeTokenNotFound            = "TOKEN_NOT_FOUND"
	CodeTokenNotActive           = "TOKEN_NOT_ACTIVE"
	CodeInsufficientCredits      = "INSUFFICIENT_CREDITS"
	CodeInsufficientTokenBalance = "INSUFFICIENT_TOKEN_BALANCE"
	CodeConcurrencyConflict      = "CONCURRENCY_CONFLICT"
	CodeStorageFailure           = "STORAGE_FAILURE"
	CodeConfigNotFound           = "CONFIG_NOT_FOUND"
	CodeDuplicate                = "DUPLICATE"
	CodeRequestInProgress        = "REQUEST_IN_PROGRESS"
	CodeIdempotencyKeyReused     = "IDEMPOTENCY_KEY_REUSED"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeForbidden                = "FORBIDDEN"
	CodeNotFound                 = "NOT_FOUND"
	CodeInternal                 = "INTERNAL_ERROR"
)

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{ErrInvalidRequest, CodeInvalidRequest, http.StatusBadRequest},
	{ErrAccountNotFound, CodeAccountNotFound, http.StatusNotFound},
	{ErrTokenNotFound, CodeTokenNotFound, http.StatusNotFound},
	{ErrConfigNotFound, CodeConfigNotFound, http.StatusNotFound},
	{ErrTokenNotActive, CodeTokenNotActive, http.StatusUnprocessableEntity},
	{ErrInsufficientCredits, CodeInsufficientCredits, http.StatusUnprocessableEntity},
	{ErrInsufficientTokenBalance, CodeInsufficientTokenBalance, http.StatusUnprocessableEntity},
	{ErrDuplicate, CodeDuplicate, http.StatusConflict},
	{ErrRequestInProgress, CodeRequestInProgress, http.StatusConflict},
	{ErrIdempotencyKeyReused, CodeIdempotencyKeyReused, http.StatusUnprocessableEntity},
	{ErrConcurrencyConflict, CodeConcurrencyConflict, http.StatusConflict},
	{ErrStorageFailure, CodeStorageFailure, http.StatusServiceUnavailable},
}

// ErrorCode maps err to its stable API code and HTTP status.
func ErrorCode(err error) (string, int) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code, e.status
		}
	}
	return CodeInternal, http.StatusInternalServerError
}

// IsPrecondition reports whether err is a business rule rejection that must not be retried.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrTokenNotActive) ||
		errors.Is(err, ErrInsufficientCredits) ||
		errors.Is(err, ErrInsufficientTokenBalance)
}

// storageError converts an unexpected store error into the service taxonomy.
func storageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrConflict):
		return err
	case errors.Is(err, storage.ErrDuplicate):
		return errors.Join(ErrDuplicate, err)
	default:
		return errors.Join(ErrStorageFailure, err)
	}
}
