// Package config reads runtime settings from environment variables and
// hosts the shared integration-test database harness.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup returns the raw value of an environment variable. An empty value
// counts as unset so that `KEY=` in a unit file falls back to the default
// instead of clearing the setting.
func lookup(key string) (string, bool) {
	value := os.Getenv(key)

	return value, value != ""
}

// GetEnvStr returns the value of key, or defaultValue when key is unset.
func GetEnvStr(key, defaultValue string) string {
	if value, ok := lookup(key); ok {
		return value
	}

	return defaultValue
}

// GetEnvInt parses key as an int. Unset or unparseable values yield
// defaultValue.
func GetEnvInt(key string, defaultValue int) int {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}

	return defaultValue
}

// GetEnvInt64 parses key as an int64. Unset or unparseable values yield
// defaultValue.
func GetEnvInt64(key string, defaultValue int64) int64 {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}

	return defaultValue
}

// GetEnvBool parses key as a boolean. "true", "1" and "yes" are true;
// "false", "0" and "no" are false; anything else yields defaultValue.
// Matching is case-insensitive.
func GetEnvBool(key string, defaultValue bool) bool {
	value, ok := lookup(key)
	if !ok {
		return defaultValue
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

// GetEnvDuration parses key with time.ParseDuration ("30s", "5m"). Unset or
// unparseable values yield defaultValue.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := lookup(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}

	return defaultValue
}

// GetEnvLogLevel maps key to a slog level. Recognized values are "debug",
// "info", "warn"/"warning" and "error"; anything else yields defaultValue.
func GetEnvLogLevel(key string, defaultValue slog.Level) slog.Level {
	value, ok := lookup(key)
	if !ok {
		return defaultValue
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultValue
	}
}

// ParseCommaSeparatedList splits input on commas, trimming whitespace and
// dropping empty entries. Never returns nil.
func ParseCommaSeparatedList(input string) []string {
	result := []string{}

	for part := range strings.SplitSeq(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
