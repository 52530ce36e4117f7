package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Connection establishment timeouts.
const (
	// connectTimeout is the maximum time allowed for the initial connectivity check.
	connectTimeout = 10 * time.Second
	// healthCheckTimeout bounds a single health check probe.
	healthCheckTimeout = 5 * time.Second
)

var (
	// ErrNoDatabaseConnection is returned when a store is constructed without a connection.
	ErrNoDatabaseConnection = errors.New("database connection is nil")

	// ErrInvalidStorageConfig is returned when the storage configuration fails validation.
	ErrInvalidStorageConfig = errors.New("invalid storage configuration")
)

// Connection wraps *sql.DB with pool configuration applied from Config.
//
// The zero value is not usable; construct via NewConnection, or populate DB
// directly in tests that manage their own *sql.DB (testcontainers).
type Connection struct {
	DB *sql.DB
}

// NewConnection opens a PostgreSQL connection pool and verifies connectivity.
//
// Pool limits come from the supplied Config (per-role defaults, env
// overridable). The DSN is taken from Config.ConnectionString so
// transaction-pooler deployments automatically disable named prepared
// statements.
//
// The caller owns the returned connection and must Close it.
func NewConnection(config *Config) (*Connection, error) {
	if config == nil {
		return nil, ErrInvalidStorageConfig
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStorageConfig, err)
	}

	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	// Verify connectivity now so misconfiguration fails at startup, not on
	// the first query.
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{DB: db}, nil
}

// BeginTx starts a transaction with the given options.
func (c *Connection) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := c.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return tx, nil
}

// QueryContext executes a query that returns rows.
func (c *Connection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := c.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// QueryRowContext executes a query expected to return at most one row.
func (c *Connection) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.DB.QueryRowContext(ctx, query, args...)
}

// ExecContext executes a statement without returning rows.
func (c *Connection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.DB.ExecContext(ctx, query, args...)
}

// HealthCheck verifies the database is reachable.
//
// Used by readiness probes and the /ready endpoint. The probe is bounded by
// healthCheckTimeout regardless of the caller's context deadline.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if c.DB == nil {
		return ErrNoDatabaseConnection
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := c.DB.PingContext(probeCtx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close releases all pooled connections.
func (c *Connection) Close() error {
	if c.DB == nil {
		return nil
	}

	return c.DB.Close()
}
