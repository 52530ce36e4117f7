package main

import (
	"errors"
	"net/url"
	"os"
	"strings"
)

// ErrDatabaseURLRequired is returned when DATABASE_URL is not set.
var ErrDatabaseURLRequired = errors.New("DATABASE_URL is required")

const defaultMigrationTable = "schema_migrations"

// Config holds the migrator's runtime configuration.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string

	// MigrationTable is the table golang-migrate tracks applied versions in.
	MigrationTable string
}

// LoadConfig reads configuration from the environment.
//
// DATABASE_URL is required. CHRONICLER_MIGRATION_TABLE overrides the
// tracking table name; the golang-migrate default is kept otherwise so the
// migrator and the test helpers agree on where versions live.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationTable: os.Getenv("CHRONICLER_MIGRATION_TABLE"),
	}

	if cfg.MigrationTable == "" {
		cfg.MigrationTable = defaultMigrationTable
	}

	if cfg.DatabaseURL == "" {
		return nil, ErrDatabaseURLRequired
	}

	return cfg, nil
}

// String renders the configuration with the database password masked.
func (c *Config) String() string {
	return "Config{DatabaseURL: " + maskURL(c.DatabaseURL) + ", MigrationTable: " + c.MigrationTable + "}"
}

// maskURL replaces the password in a connection URL with a literal "***",
// splicing the raw string so the mask never gets percent-encoded. URLs that
// do not parse are masked wholesale rather than risking a leak.
func maskURL(raw string) string {
	if _, err := url.Parse(raw); err != nil {
		return "***"
	}

	schemeEnd := strings.Index(raw, "://")
	if schemeEnd == -1 {
		return raw
	}

	afterScheme := raw[schemeEnd+3:]

	atIndex := strings.LastIndex(afterScheme, "@")
	if atIndex == -1 {
		return raw
	}

	userInfo := afterScheme[:atIndex]

	colonIndex := strings.Index(userInfo, ":")
	if colonIndex == -1 {
		return raw
	}

	if userInfo[colonIndex+1:] == "" {
		return raw
	}

	return raw[:schemeEnd+3] + userInfo[:colonIndex] + ":***" + afterScheme[atIndex:]
}
