package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	mW "github.com/tokensim/backend/internal/middleware"
	"github.com/tokensim/backend/internal/services"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps carries everything the HTTP surface is built from.
type RouterDeps struct {
	Users          *services.UserService
	Tokens         *services.TokenService
	Configs        *services.PlatformConfigService
	Ledger         *services.LedgerService
	Idempotency    *services.IdempotencyCache
	Storage        Pinger
	Metrics        http.Handler
	JWTSecret      string
	RequestTimeout time.Duration
}

func NewRouter(deps RouterDeps) http.Handler {
	userHandler := NewUserHandler(deps.Users, deps.Ledger)
	tokenHandler := NewTokenHandler(deps.Tokens)
	tradeHandler := NewTradeHandler(deps.Ledger, deps.Idempotency)
	configHandler := NewConfigHandler(deps.Configs)

	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Storage != nil {
			if err := deps.Storage.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", userHandler.CreateUser)
		r.Get("/users", userHandler.ListUsers)
		r.Get("/users/{userID}", userHandler.GetUser)
		r.Get("/users/{userID}/tokens", userHandler.ListUserTokens)
		r.Get("/users/{userID}/transactions", userHandler.ListTransactions)
		r.Get("/users/{userID}/balances/{tokenID}", userHandler.GetBalance)

		r.Post("/tokens", tokenHandler.CreateToken)
		r.Get("/tokens", tokenHandler.ListTokens)
		r.Get("/tokens/{tokenID}", tokenHandler.GetToken)

		r.Post("/trades", tradeHandler.ExecuteTrade)

		r.Get("/platform-config", configHandler.GetPlatformConfig)

		// Admin endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(deps.JWTSecret))
			r.Use(mW.RequireAdmin(deps.Users))

			r.Put("/tokens/{tokenID}", tokenHandler.UpdateToken)
			r.Put("/users/{userID}/balances", userHandler.AdjustBalances)
			r.Put("/platform-config", configHandler.UpdatePlatformConfig)
		})
	})

	return r
}
