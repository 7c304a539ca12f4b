package database

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationSource(t *testing.T) {
	migrations, err := migrationSource().FindMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	first := migrations[0]
	assert.Equal(t, "0001_init.sql", first.Id)

	up := strings.Join(first.Up, "\n")
	for _, table := range []string{"users", "tokens", "user_token_balances", "transactions", "platform_config"} {
		assert.Contains(t, up, "CREATE TABLE "+table+" ")
	}
	assert.Contains(t, up, "UNIQUE (user_id, token_id)")
	assert.Contains(t, up, "CHECK (credits_balance >= 0)")
	assert.Contains(t, up, "CHECK (balance >= 0)")
	assert.Contains(t, up, "CHECK (id = 1)")
	assert.Len(t, first.Down, 5)
}

func TestGetConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("database.host", "db.internal")
	viper.Set("database.name", "ledger")

	cfg := GetConfig()
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, "host=db.internal port=5432 user=postgres password=password dbname=ledger sslmode=disable", cfg.DSN())
}
