// Package middleware provides HTTP middleware components for the Chronicler API.
package middleware

import (
	"time"

	"github.com/chronicler-io/chronicler/internal/config"
)

// Config holds rate limiter configuration.
//
// Rate limits specify requests per second (RPS) for three tiers:
//   - Global: Applied to all requests
//   - Per-subject: Applied to authenticated requests
//   - Unauthenticated: Applied to requests without an identity
//
// Burst capacity allows temporary bursts above sustained rate.
// If burst fields are 0, they are computed automatically as 2 × rate.
type Config struct {
	// Rate limits (requests per second)
	GlobalRPS  int // Default: 100
	SubjectRPS int // Default: 50
	UnAuthRPS  int // Default: 10

	// Optional burst capacity overrides (0 = compute automatically as 2 × rate) using computeBurstCapacity()
	GlobalBurst  int // Default: 0 (computed as 2 × GlobalRPS = 200)
	SubjectBurst int // Default: 0 (computed as 2 × SubjectRPS = 100)
	UnAuthBurst  int // Default: 0 (computed as 2 × UnAuthRPS = 20)

	// Memory cleanup configuration
	CleanupInterval time.Duration // Default: 5 minutes
	IdleTimeout     time.Duration // Default: 1 hour
	MaxSubjects     int           // Default: 100
}

// LoadConfig loads middleware config from environment variables with fallback to defaults.
//
// Default burst capacity: 2 × rate (allows 2-second burst)
// Default cleanup: every 5 minutes, removes subjects idle >1 hour.
func LoadConfig() *Config {
	return &Config{
		// Rate limits
		GlobalRPS:  config.GetEnvInt("CHRONICLER_GLOBAL_RPS", defaultGlobalRPS),
		SubjectRPS: config.GetEnvInt("CHRONICLER_SUBJECT_RPS", defaultSubjectRPS),
		UnAuthRPS:  config.GetEnvInt("CHRONICLER_UNAUTH_RPS", defaultUnAuthRPS),

		// Burst overrides (0 = auto-compute)
		GlobalBurst:  config.GetEnvInt("CHRONICLER_GLOBAL_BURST", 0),
		SubjectBurst: config.GetEnvInt("CHRONICLER_SUBJECT_BURST", 0),
		UnAuthBurst:  config.GetEnvInt("CHRONICLER_UNAUTH_BURST", 0),

		// Cleanup configuration
		CleanupInterval: config.GetEnvDuration(
			"CHRONICLER_RATE_LIMIT_CLEANUP_INTERVAL", rateLimiterCleanupInterval,
		),
		IdleTimeout: config.GetEnvDuration("CHRONICLER_RATE_LIMIT_IDLE_TIMEOUT", rateLimiterIdleTimeout),
		MaxSubjects: config.GetEnvInt("CHRONICLER_RATE_LIMIT_MAX_SUBJECTS", maxSubjects),
	}
}
