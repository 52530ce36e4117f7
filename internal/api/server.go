package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chronicler-io/chronicler/internal/api/middleware"
	"github.com/chronicler-io/chronicler/internal/dashboard"
)

// Server is the dashboard HTTP server.
type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	config      *ServerConfig
	startTime   time.Time
	store       dashboard.Store
	rateLimiter middleware.RateLimiter
}

// NewServer wires the route table and middleware chain into an http.Server.
//
// Dependencies are injected separately from configuration: store is the
// dashboard read store (nil degrades listings to empty 200 responses),
// authCfg enables authentication when configured, and rateLimiter throttles
// clients when non-nil.
func NewServer(
	cfg *ServerConfig,
	store dashboard.Store,
	authCfg *middleware.AuthConfig,
	rateLimiter middleware.RateLimiter,
) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	server := &Server{
		logger:      logger,
		config:      cfg,
		store:       store,
		rateLimiter: rateLimiter,
	}

	mux := http.NewServeMux()
	server.setupRoutes(mux)

	if store == nil {
		logger.Warn("Dashboard store not configured - serving empty read responses")
	}

	switch {
	case authCfg != nil && authCfg.DevBypass:
		logger.Warn("DEV_AUTH_BYPASS enabled - all requests granted admin identity, never use in production")
	case authCfg != nil && authCfg.Enabled():
		logger.Info("Dashboard authentication middleware enabled")
	default:
		logger.Warn("Authentication not configured - dashboard endpoints are unprotected")
	}

	if rateLimiter == nil {
		logger.Warn("RateLimiter not configured - rate limiting middleware disabled")
	}

	// Ordering: correlation first so every later layer can tag its logs;
	// recovery before anything that can panic; auth before rate limiting so
	// limits can key on identity; the request logger after rate limiting so
	// throttled spam never reaches the logs; CORS last since it only touches
	// headers.
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithAuth(authCfg, logger),
		middleware.WithRateLimit(rateLimiter, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start runs the server until SIGINT/SIGTERM or a listener error, then shuts
// down gracefully.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting Chronicler API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown",
		slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
	)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// The store holds database connections and the in-memory rate limiter
	// runs a cleanup goroutine; both close through io.Closer when they
	// support it.
	s.closeIfCloser("dashboard store", s.store)
	s.closeIfCloser("rate limiter", s.rateLimiter)

	s.logger.Info("Server shutdown completed")

	return nil
}

func (s *Server) closeIfCloser(name string, resource any) {
	closer, ok := resource.(io.Closer)
	if !ok {
		return
	}

	if err := closer.Close(); err != nil {
		s.logger.Error("Failed to close "+name, slog.String("error", err.Error()))

		return
	}

	s.logger.Info("Closed " + name)
}
