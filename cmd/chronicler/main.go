// Package main provides the Chronicler dashboard API service.
//
// This service serves the read side of the meeting archive: KPIs, meeting
// listings and detail, run history, monthly aggregates, alerts, and exports,
// all backed by views over the normalized schema.
package main

import (
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/chronicler-io/chronicler/internal/api"
	"github.com/chronicler-io/chronicler/internal/api/middleware"
	"github.com/chronicler-io/chronicler/internal/dashboard"
	"github.com/chronicler-io/chronicler/internal/storage"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "chronicler"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("Starting Chronicler service",
		slog.String("service", name),
		slog.String("version", version),
	)

	logger.Info("Loaded server configuration",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.Duration("read_timeout", serverConfig.ReadTimeout),
		slog.Duration("write_timeout", serverConfig.WriteTimeout),
		slog.Duration("shutdown_timeout", serverConfig.ShutdownTimeout),
		slog.String("log_level", serverConfig.LogLevel.String()),
	)

	// Load rate limiter configuration
	middlewareConfig := middleware.LoadConfig()

	// Create rate limiter instance (graceful shutdown handled by server.shutdown())
	rateLimiter := middleware.NewInMemoryRateLimiter(middlewareConfig)

	logger.Info("Rate limiter initialized",
		slog.Int("global_rps", middlewareConfig.GlobalRPS),
		slog.Int("global_burst", middlewareConfig.GlobalBurst),
		slog.Int("subject_rps", middlewareConfig.SubjectRPS),
		slog.Int("subject_burst", middlewareConfig.SubjectBurst),
		slog.Int("unauth_rps", middlewareConfig.UnAuthRPS),
		slog.Int("unauth_burst", middlewareConfig.UnAuthBurst),
	)

	authConfig := middleware.LoadAuthConfig()
	if !authConfig.Enabled() {
		logger.Warn("Dashboard authentication disabled",
			slog.String("security", "Only use in trusted networks (localhost, VPN, internal)"),
			slog.String("note", "Set JWT_SECRET or ADMIN_TOKEN_BCRYPT_HASH to enable authentication"),
		)
	}

	// Load storage configuration. A missing DATABASE_URL degrades the read
	// API to empty-but-200 responses instead of refusing to start.
	storageConfig := storage.LoadConfig()

	var store dashboard.Store

	switch err := storageConfig.Validate(); {
	case errors.Is(err, storage.ErrDatabaseURLEmpty):
		logger.Warn("DATABASE_URL not set - serving empty dashboard responses")
	case err != nil:
		logger.Error("Invalid storage configuration", slog.String("error", err.Error()))
		os.Exit(1)
	default:
		dbConn, err := storage.NewConnection(storageConfig)
		if err != nil {
			logger.Error("Failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}

		meetingStore, err := storage.NewMeetingStore(dbConn)
		if err != nil {
			logger.Error("Failed to create meeting store", slog.String("error", err.Error()))

			_ = dbConn.Close()
			//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
			os.Exit(1)
		}

		logger.Info("Meeting store initialized",
			slog.String("database_url", storageConfig.MaskDatabaseURL()),
			slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
			slog.Int("database_max_idle_conns", storageConfig.MaxIdleConns),
			slog.Duration("database_conn_max_lifetime", storageConfig.ConnMaxLifetime),
			slog.Duration("database_conn_max_idle_time", storageConfig.ConnMaxIdleTime),
		)

		store = meetingStore
	}

	server := api.NewServer(serverConfig, store, authConfig, rateLimiter)

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("Chronicler service stopped")
}
