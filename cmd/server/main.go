package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tokensim/backend/internal/audit"
	"github.com/tokensim/backend/internal/config"
	"github.com/tokensim/backend/internal/database"
	"github.com/tokensim/backend/internal/handlers"
	"github.com/tokensim/backend/internal/logger"
	"github.com/tokensim/backend/internal/metrics"
	"github.com/tokensim/backend/internal/services"
	"github.com/tokensim/backend/internal/storage"
)

// @title Token Trading Platform API
// @version 1.0
// @description Simulated token trading backed by a transactional credits ledger
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	config.Init()
	cfg := config.Load()

	if err := logger.Init(cfg.Log.ToLogOption()); err != nil {
		logger.Fatalf("[SERVER] Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatalf("[SERVER] Failed to initialize storage: %v", err)
	}
	defer store.Close()

	registry := metrics.NewRegistry()
	ledgerMetrics := metrics.NewMetrics(registry)

	ledger := services.NewLedgerService(store, cfg.Ledger, audit.NewAuditLogger(), ledgerMetrics)

	var idempotency *services.IdempotencyCache
	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
		ledger.SetEventPublisher(services.NewTradeEventQueue(redisClient, cfg.Trade.EventQueueKey))
		idempotency = services.NewIdempotencyCache(redisClient, cfg.Trade.IdempotencyTTL)
	}

	if cfg.JWTSecret == "" {
		logger.Warnf("[SERVER] JWT_SECRET_KEY not set, admin endpoints will reject every request")
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Users:          services.NewUserService(store),
		Tokens:         services.NewTokenService(store),
		Configs:        services.NewPlatformConfigService(store),
		Ledger:         ledger,
		Idempotency:    idempotency,
		Storage:        store,
		Metrics:        metrics.Handler(registry),
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		logger.Infof("[SERVER] Starting on :%s (storage=%s)", cfg.Server.Port, cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("[SERVER] Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("[SERVER] Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("[SERVER] Forced to shutdown: %v", err)
	}

	logger.Infof("[SERVER] Stopped")
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		logger.Warnf("[SERVER] Using in-memory storage, data is lost on restart")
		return storage.NewMemoryStore(), nil
	case config.StorageDriverPostgres, "":
		db, err := database.InitDB(database.GetConfig())
		if err != nil {
			return nil, err
		}
		if _, err := database.RunMigrations(db); err != nil {
			db.Close()
			return nil, err
		}
		return storage.NewPostgresStore(db), nil
	default:
		return nil, errors.New("unknown storage driver " + cfg.StorageDriver)
	}
}
