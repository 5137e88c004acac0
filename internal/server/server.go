// Package server exposes the exchange over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
	"github.com/alanyoungcy/oddsexchange/internal/server/handler"
	"github.com/alanyoungcy/oddsexchange/internal/server/middleware"
	"github.com/alanyoungcy/oddsexchange/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKeys guard game administration. Without keys those routes refuse
	// every request.
	APIKeys []string
	// RateLimit is requests per RateWindow per caller; zero disables it.
	RateLimit  int
	RateWindow time.Duration
	// IdempotencyTTL is how long an Idempotency-Key blocks replays of bets,
	// redemptions and faucet mints; zero disables the check.
	IdempotencyTTL time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Games  *handler.GameHandler
	Pools  *handler.PoolHandler
	Bets   *handler.BetHandler
	Redeem *handler.RedeemHandler
	Cash   *handler.CashHandler
	Events *handler.EventHandler
	// Archives is nil when object storage is not configured.
	Archives *handler.ArchiveHandler
}

// Server is the exchange's HTTP + WebSocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
// limiter and wsHub may be nil.
func NewServer(cfg Config, h Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, h, wsHub, limiter, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler without binding a listener.
func NewHandler(cfg Config, h Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	admin := middleware.RequireAPIKey(cfg.APIKeys)
	once := func(h http.Handler) http.Handler { return h }
	if cfg.IdempotencyTTL > 0 {
		once = middleware.Idempotent(middleware.NewDedup(cfg.IdempotencyTTL))
	}

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)

	mux.Handle("POST /api/games", admin(http.HandlerFunc(h.Games.StartGame)))
	mux.Handle("POST /api/games/{id}/end", admin(http.HandlerFunc(h.Games.EndGame)))
	mux.HandleFunc("GET /api/games", h.Games.ListGames)
	mux.HandleFunc("GET /api/games/{id}", h.Games.GetGame)

	mux.HandleFunc("GET /api/games/{id}/pools/{odds}", h.Pools.ForGame)
	mux.HandleFunc("GET /api/pools/{poolID}", h.Pools.Get)

	mux.Handle("POST /api/bets/make", once(http.HandlerFunc(h.Bets.Make)))
	mux.Handle("POST /api/bets/take", once(http.HandlerFunc(h.Bets.Take)))

	mux.Handle("POST /api/redeem", once(http.HandlerFunc(h.Redeem.Redeem)))
	mux.HandleFunc("GET /api/redeem/preview", h.Redeem.Preview)
	mux.HandleFunc("GET /api/receipts/{address}/{tokenID}", h.Redeem.Receipts)

	mux.Handle("POST /api/cash/faucet", once(http.HandlerFunc(h.Cash.Faucet)))
	mux.HandleFunc("POST /api/cash/approve", h.Cash.Approve)
	mux.HandleFunc("GET /api/cash/{address}", h.Cash.Balance)

	if h.Events != nil {
		mux.HandleFunc("GET /api/events", h.Events.List)
	}
	if h.Archives != nil {
		mux.HandleFunc("GET /api/games/{id}/archive", h.Archives.Download)
		mux.HandleFunc("GET /api/archives", h.Archives.List)
	}
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var handler http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		handler = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	handler = middleware.CORS(cfg.CORSOrigins)(handler)
	return handler
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
