package config

import (
	"time"

	"github.com/spf13/viper"
	"github.com/tokensim/backend/internal/logger"
)

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// LedgerConfig controls the conflict retry loop of the trade engine
type LedgerConfig struct {
	MaxAttempts          int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

type TradeConfig struct {
	IdempotencyTTL time.Duration
	EventQueueKey  string
}

type LogConfig struct {
	Format   string
	Dir      string
	Level    string
	Compress bool
}

func (c LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.Dir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

type Config struct {
	Server        ServerConfig
	StorageDriver string
	Ledger        LedgerConfig
	Trade         TradeConfig
	Log           LogConfig
	JWTSecret     string
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Init wires viper to the .env file and the process environment.
func Init() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("storage.driver", "STORAGE_DRIVER")

	viper.BindEnv("ledger.max_attempts", "LEDGER_MAX_ATTEMPTS")
	viper.BindEnv("ledger.retry_initial_interval", "LEDGER_RETRY_INITIAL_INTERVAL")
	viper.BindEnv("ledger.retry_max_interval", "LEDGER_RETRY_MAX_INTERVAL")

	viper.BindEnv("trade.idempotency_ttl", "TRADE_IDEMPOTENCY_TTL")
	viper.BindEnv("trade.event_queue_key", "TRADE_EVENT_QUEUE_KEY")

	viper.BindEnv("log.format", "LOG_FORMAT")
	viper.BindEnv("log.dir", "LOG_DIR")
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("log.compress", "LOG_COMPRESS")

	if err := viper.ReadInConfig(); err != nil {
		logger.Infof("[CONFIG] Config file not found, using environment and defaults: %v", err)
	}
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("server.idle_timeout", 60*time.Second)
	viper.SetDefault("server.request_timeout", 60*time.Second)

	viper.SetDefault("storage.driver", StorageDriverPostgres)

	viper.SetDefault("ledger.max_attempts", 5)
	viper.SetDefault("ledger.retry_initial_interval", 10*time.Millisecond)
	viper.SetDefault("ledger.retry_max_interval", 200*time.Millisecond)

	viper.SetDefault("trade.idempotency_ttl", 24*time.Hour)
	viper.SetDefault("trade.event_queue_key", "trade_events")

	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.level", "info")
}

// Load reads the typed configuration, falling back to defaults.
func Load() *Config {
	setDefaults()

	cfg := &Config{
		Server: ServerConfig{
			Port:           viper.GetString("server.port"),
			ReadTimeout:    viper.GetDuration("server.read_timeout"),
			WriteTimeout:   viper.GetDuration("server.write_timeout"),
			IdleTimeout:    viper.GetDuration("server.idle_timeout"),
			RequestTimeout: viper.GetDuration("server.request_timeout"),
		},
		StorageDriver: viper.GetString("storage.driver"),
		Ledger: LedgerConfig{
			MaxAttempts:          viper.GetInt("ledger.max_attempts"),
			RetryInitialInterval: viper.GetDuration("ledger.retry_initial_interval"),
			RetryMaxInterval:     viper.GetDuration("ledger.retry_max_interval"),
		},
		Trade: TradeConfig{
			IdempotencyTTL: viper.GetDuration("trade.idempotency_ttl"),
			EventQueueKey:  viper.GetString("trade.event_queue_key"),
		},
		Log: LogConfig{
			Format:   viper.GetString("log.format"),
			Dir:      viper.GetString("log.dir"),
			Level:    viper.GetString("log.level"),
			Compress: viper.GetBool("log.compress"),
		},
		JWTSecret: viper.GetString("jwt.secret_key"),
	}

	if cfg.Ledger.MaxAttempts < 1 {
		cfg.Ledger.MaxAttempts = 1
	}
	return cfg
}
