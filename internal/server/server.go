// Package server exposes the marketplace over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
	"github.com/adityakrmishra/BlockChainBazaar/internal/server/handler"
	"github.com/adityakrmishra/BlockChainBazaar/internal/server/middleware"
	"github.com/adityakrmishra/BlockChainBazaar/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   int    // mutating requests per RateWindow per client; 0 disables
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Collections *handler.CollectionHandler
	Items       *handler.ItemHandler
	Auctions    *handler.AuctionHandler
	Bids        *handler.BidHandler
	Users       *handler.UserHandler
	Txns        *handler.TransactionHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in middleware, outermost
// first: CORS, request logging, auth, rate limiting. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      Routes(cfg, handlers, wsHub, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// Routes builds the complete handler chain without binding a listener.
func Routes(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("POST /api/collections", handlers.Collections.Create)
	mux.HandleFunc("GET /api/collections", handlers.Collections.List)
	mux.HandleFunc("GET /api/collections/{id}", handlers.Collections.Get)
	mux.HandleFunc("GET /api/collections/{id}/items", handlers.Collections.Items)

	mux.HandleFunc("POST /api/items", handlers.Items.Mint)
	mux.HandleFunc("GET /api/items", handlers.Items.List)
	mux.HandleFunc("GET /api/items/{id}", handlers.Items.Get)
	mux.HandleFunc("POST /api/items/{id}/listing", handlers.Items.CreateListing)
	mux.HandleFunc("DELETE /api/items/{id}/listing", handlers.Items.DeleteListing)
	mux.HandleFunc("POST /api/items/{id}/purchase", handlers.Items.Purchase)

	mux.HandleFunc("POST /api/auctions", handlers.Auctions.Open)
	mux.HandleFunc("GET /api/auctions/{id}", handlers.Auctions.Get)
	mux.HandleFunc("POST /api/auctions/{id}/settle", handlers.Auctions.Settle)
	mux.HandleFunc("POST /api/auctions/{id}/bids", handlers.Bids.Place)
	mux.HandleFunc("GET /api/auctions/{id}/bids", handlers.Bids.List)
	mux.HandleFunc("POST /api/bids", handlers.Bids.Place)

	mux.HandleFunc("GET /api/users/{id}", handlers.Users.Get)
	mux.HandleFunc("GET /api/users/{id}/collections", handlers.Collections.ListByCreator)
	mux.HandleFunc("GET /api/users/{id}/transactions", handlers.Users.Transactions)
	mux.HandleFunc("GET /api/users/{id}/bids", handlers.Users.Bids)
	mux.HandleFunc("GET /api/transactions/{id}", handlers.Txns.Get)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
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
