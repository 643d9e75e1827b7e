// Package server exposes the dashboard's HTTP + WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/auctiondash/internal/server/handler"
	"github.com/alanyoungcy/auctiondash/internal/server/middleware"
	"github.com/alanyoungcy/auctiondash/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Auctions  *handler.AuctionHandler
	Liquidity *handler.LiquidityHandler
}

// Server is the headless HTTP + WebSocket API server for the dashboard.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (CORS, logging, auth) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Auction views.
	mux.HandleFunc("GET /api/auctions", handlers.Auctions.ListActive)
	mux.HandleFunc("GET /api/auctions/history", handlers.Auctions.ListHistory)
	mux.HandleFunc("GET /api/kpis", handlers.Auctions.GetKPIs)

	// Liquidity figures and transaction submission.
	mux.HandleFunc("GET /api/liquidity", handlers.Liquidity.GetFigures)
	mux.HandleFunc("GET /api/liquidity/intent", handlers.Liquidity.GetIntent)
	mux.HandleFunc("POST /api/liquidity/deposit", handlers.Liquidity.Deposit)
	mux.HandleFunc("POST /api/liquidity/withdraw", handlers.Liquidity.Withdraw)
	mux.HandleFunc("POST /api/liquidity/approve", handlers.Liquidity.Approve)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
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
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
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
