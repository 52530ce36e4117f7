package storage

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chronicler-io/chronicler/internal/config"
)

const (
	// Read API pool bounds: dashboards issue short concurrent queries.
	defaultAPIMaxOpenConns = 10
	defaultAPIMaxIdleConns = 5

	// Ingester pool bounds: one writer goroutine, modest headroom for run accounting.
	defaultIngestMaxOpenConns = 5
	defaultIngestMaxIdleConns = 1

	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute

	// transactionPoolerPort is the conventional port for transaction-mode
	// connection poolers (PgBouncer, Supabase pooler). Server-side prepared
	// statements break behind these, so we detect and disable them.
	transactionPoolerPort = "6543"
)

var (
	// ErrDatabaseURLEmpty is returned when the database url is an empty string.
	ErrDatabaseURLEmpty = errors.New("database URL cannot be empty")
)

// Config holds PostgreSQL connection configuration with production-ready defaults.
type Config struct {
	databaseURL     string
	MaxOpenConns    int           // Maximum number of open connections
	MaxIdleConns    int           // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of connections
	ConnMaxIdleTime time.Duration // Maximum idle time for connections
}

// LoadConfig loads PostgreSQL configuration for the dashboard API from
// environment variables with fallback to read-path defaults.
//
// DATABASE_URL may omit the password; when DB_PASSWORD is set it is merged
// into the URL (URL-encoded). This mirrors deployments where the DSN lives in
// config but the credential is injected separately.
func LoadConfig() *Config {
	return loadConfig(defaultAPIMaxOpenConns, defaultAPIMaxIdleConns)
}

// LoadIngestConfig loads PostgreSQL configuration for the ingester with
// write-path defaults. The ingester writes meetings sequentially, so the pool
// stays small.
func LoadIngestConfig() *Config {
	return loadConfig(defaultIngestMaxOpenConns, defaultIngestMaxIdleConns)
}

func loadConfig(maxOpen, maxIdle int) *Config {
	rawURL := config.GetEnvStr("DATABASE_URL", "") // DatabaseURL is private for obvious reasons.
	if password := config.GetEnvStr("DB_PASSWORD", ""); password != "" {
		rawURL = mergePassword(rawURL, password)
	}

	return &Config{
		databaseURL:     rawURL,
		MaxOpenConns:    config.GetEnvInt("DATABASE_MAX_OPEN_CONNS", maxOpen),
		MaxIdleConns:    config.GetEnvInt("DATABASE_MAX_IDLE_CONNS", maxIdle),
		ConnMaxLifetime: config.GetEnvDuration("DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
		ConnMaxIdleTime: config.GetEnvDuration("DATABASE_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime),
	}
}

// mergePassword injects password into rawURL's userinfo when the URL does not
// already carry one. Returns rawURL unchanged when it cannot be parsed or when
// a password is already present.
func mergePassword(rawURL, password string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.User == nil {
		return rawURL
	}

	if _, hasPassword := parsed.User.Password(); hasPassword {
		return rawURL
	}

	parsed.User = url.UserPassword(parsed.User.Username(), password)

	return parsed.String()
}

// Validate checks if the PostgreSQL configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.databaseURL) == "" {
		return ErrDatabaseURLEmpty
	}

	return nil
}

// UsesTransactionPooler reports whether the database URL points at a
// transaction-mode pooler (port 6543 or a host containing "pooler").
func (c *Config) UsesTransactionPooler() bool {
	parsed, err := url.Parse(c.databaseURL)
	if err != nil {
		return false
	}

	return parsed.Port() == transactionPoolerPort ||
		strings.Contains(parsed.Hostname(), "pooler")
}

// ConnectionString returns the DSN to hand to sql.Open.
//
// Behind a transaction pooler the same server connection is not guaranteed
// across statements, so lib/pq's named prepared statements fail with
// "prepared statement does not exist". binary_parameters=yes makes lib/pq
// send parameterized queries in a single round trip without naming them.
func (c *Config) ConnectionString() string {
	if !c.UsesTransactionPooler() {
		return c.databaseURL
	}

	separator := "?"
	if strings.Contains(c.databaseURL, "?") {
		separator = "&"
	}

	if strings.Contains(c.databaseURL, "binary_parameters=") {
		return c.databaseURL
	}

	return c.databaseURL + separator + "binary_parameters=yes"
}

// MaskDatabaseURL returns a masked databaseURL safe for logging.
func (c *Config) MaskDatabaseURL() string {
	if c.databaseURL == "" {
		return ""
	}

	// Find the scheme separator
	schemeEnd := strings.Index(c.databaseURL, "://")
	if schemeEnd == -1 {
		return c.databaseURL
	}

	// Find the last @ which separates userinfo from host
	afterScheme := c.databaseURL[schemeEnd+3:]

	lastAtIndex := strings.LastIndex(afterScheme, "@")
	if lastAtIndex == -1 {
		// No @ found, no userinfo
		return c.databaseURL
	}

	// Extract userinfo
	userInfo := afterScheme[:lastAtIndex]

	colonIndex := strings.Index(userInfo, ":")
	if colonIndex == -1 {
		// No password
		return c.databaseURL
	}

	// Found username:password
	username := userInfo[:colonIndex]
	password := userInfo[colonIndex+1:]

	if password == "" {
		// Empty password, don't mask
		return c.databaseURL
	}

	// Build masked URL
	scheme := c.databaseURL[:schemeEnd]
	hostAndRest := afterScheme[lastAtIndex:]

	return scheme + "://" + username + ":***" + hostAndRest
}
