package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	registry := NewRegistry()
	m := NewMetrics(registry)

	m.ObserveTrade("buy", "OK", 5*time.Millisecond)
	m.ObserveTrade("sell", "INSUFFICIENT_TOKEN_BALANCE", time.Millisecond)
	m.IncTradeRetry()
	m.IncBalanceAdjustment("ok")

	w := httptest.NewRecorder()
	Handler(registry).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, `ledger_trades_total{outcome="OK",type="buy"} 1`)
	assert.Contains(t, body, `ledger_trades_total{outcome="INSUFFICIENT_TOKEN_BALANCE",type="sell"} 1`)
	assert.Contains(t, body, "ledger_trade_retries_total 1")
	assert.Contains(t, body, `ledger_balance_adjustments_total{outcome="ok"} 1`)
	assert.Contains(t, body, "ledger_trade_duration_seconds_count{type=\"buy\"} 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTrade("buy", "OK", time.Millisecond)
		m.IncTradeRetry()
		m.IncBalanceAdjustment("error")
	})
}
