package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, 5, cfg.Ledger.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Ledger.RetryInitialInterval)
	assert.Equal(t, 200*time.Millisecond, cfg.Ledger.RetryMaxInterval)
	assert.Equal(t, 24*time.Hour, cfg.Trade.IdempotencyTTL)
	assert.Equal(t, "trade_events", cfg.Trade.EventQueueKey)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("LEDGER_MAX_ATTEMPTS", "0")
	t.Setenv("LEDGER_RETRY_INITIAL_INTERVAL", "25ms")
	t.Setenv("TRADE_EVENT_QUEUE_KEY", "trades")
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("LOG_FORMAT", "json")

	Init()
	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, 1, cfg.Ledger.MaxAttempts, "attempts are clamped to at least one")
	assert.Equal(t, 25*time.Millisecond, cfg.Ledger.RetryInitialInterval)
	assert.Equal(t, "trades", cfg.Trade.EventQueueKey)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "json", cfg.Log.ToLogOption().Format)
}
