package audit

import (
	"encoding/json"
	"time"

	"github.com/tokensim/backend/internal/logger"
	"github.com/tokensim/backend/internal/models"
	"go.uber.org/zap"
)

type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Reference string    `json:"reference,omitempty"`
	UserID    int64     `json:"user_id"`
	TokenID   int64     `json:"token_id,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

type AuditLogger struct {
	log *zap.SugaredLogger
}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{log: logger.Named("audit")}
}

func (a *AuditLogger) LogTrade(txn *models.Transaction) {
	a.write(AuditEvent{
		Timestamp: time.Now(),
		EventType: "TRADE",
		Reference: txn.Reference.String(),
		UserID:    txn.UserID,
		TokenID:   txn.TokenID,
		Amount:    txn.Amount.String(),
		Status:    "SUCCESS",
		Details: map[string]string{
			"transaction_type": string(txn.Type),
			"price_per_token":  txn.PricePerToken.String(),
			"total_cost":       txn.TotalCost.String(),
			"credits_change":   txn.CreditsChange.String(),
		},
	})
}

func (a *AuditLogger) LogRejectedTrade(userID, tokenID int64, txType models.TransactionType, amount string, code string) {
	a.write(AuditEvent{
		Timestamp: time.Now(),
		EventType: "TRADE",
		UserID:    userID,
		TokenID:   tokenID,
		Amount:    amount,
		Status:    "REJECTED",
		Details: map[string]string{
			"transaction_type": string(txType),
			"code":             code,
		},
	})
}

// LogBalanceAdjustment records an admin overwrite. tokenID is zero for credits.
func (a *AuditLogger) LogBalanceAdjustment(userID, tokenID int64, previous, current string) {
	a.write(AuditEvent{
		Timestamp: time.Now(),
		EventType: "BALANCE_ADJUSTMENT",
		UserID:    userID,
		TokenID:   tokenID,
		Amount:    current,
		Status:    "SUCCESS",
		Details:   map[string]string{"previous": previous},
	})
}

func (a *AuditLogger) LogError(userID int64, operation string, err error) {
	a.write(AuditEvent{
		Timestamp: time.Now(),
		EventType: "ERROR",
		UserID:    userID,
		Status:    "FAILED",
		Details:   map[string]string{"operation": operation, "error": err.Error()},
	})
}

func (a *AuditLogger) write(event AuditEvent) {
	data, _ := json.Marshal(event)
	a.log.Infof("AUDIT: %s", string(data))
}
