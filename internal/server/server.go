// Package server assembles the HTTP + WebSocket surface: REST endpoints for
// leagues, vaults, markets, transactions, and the portfolio; the chain-event
// webhook; and the event distribution hub.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tradeleague/internal/domain"
	"github.com/alanyoungcy/tradeleague/internal/server/handler"
	"github.com/alanyoungcy/tradeleague/internal/server/middleware"
	"github.com/alanyoungcy/tradeleague/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit requests per client IP within RateWindow; 0 disables.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health       *handler.HealthHandler
	Leagues      *handler.LeagueHandler
	Vaults       *handler.VaultHandler
	Markets      *handler.MarketHandler
	Transactions *handler.TransactionHandler
	Portfolio    *handler.PortfolioHandler
	Payments     *handler.PaymentHandler
	Auth         *handler.AuthHandler
	Status       *handler.StatusHandler
	Webhook      *handler.WebhookHandler
}

// Server is the REST + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain wired (rate limiting, auth, logging, CORS). limiter
// may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Store-backed endpoints register only when their handler is wired.
	if handlers.Leagues != nil {
		mux.HandleFunc("GET /api/leagues", handlers.Leagues.ListLeagues)
		mux.HandleFunc("GET /api/leagues/{id}", handlers.Leagues.GetLeague)
		mux.HandleFunc("POST /api/leagues/{id}/join", handlers.Leagues.JoinLeague)
	}

	if handlers.Vaults != nil {
		mux.HandleFunc("GET /api/vaults", handlers.Vaults.ListVaults)
		mux.HandleFunc("GET /api/vaults/{id}", handlers.Vaults.GetVault)
		mux.HandleFunc("POST /api/vaults/{id}/follow", handlers.Vaults.FollowVault)
	}

	if handlers.Markets != nil {
		mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
		mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
		mux.HandleFunc("POST /api/markets/{id}/predictions", handlers.Markets.PlacePrediction)
	}

	// Transaction history and payments.
	mux.HandleFunc("GET /api/transactions", handlers.Transactions.ListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", handlers.Transactions.GetTransaction)
	mux.HandleFunc("POST /api/payments", handlers.Payments.SendPayment)

	// Portfolio and status.
	mux.HandleFunc("GET /api/portfolio", handlers.Portfolio.GetPortfolio)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Development token mint.
	mux.HandleFunc("POST /api/auth/token", handlers.Auth.IssueToken)

	// Chain-event ingestion.
	mux.HandleFunc("POST /webhooks/chain-events", handlers.Webhook.HandleChainEvents)

	// WebSocket endpoint.
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
