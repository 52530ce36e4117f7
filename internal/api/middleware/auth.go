// Package middleware provides HTTP middleware components for the Chronicler API.
package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chronicler-io/chronicler/internal/config"
	"github.com/chronicler-io/chronicler/internal/storage"
)

// publicEndpoints defines public endpoints that bypass authentication.
// These endpoints are accessible without credentials (e.g., K8s health probes, monitoring tools).
//
// Security note: Only health check endpoints should be in this map.
// Never add business logic endpoints to this bypass list.
var publicEndpoints = map[string]bool{} //nolint: gochecknoglobals

// RegisterPublicEndpoint registers an endpoint that bypasses authentication.
// This should only be called during route setup for health check endpoints.
//
// Security Warning: Never register business logic endpoints as public.
// Public endpoints are accessible without credentials and should only be used
// for K8s health probes and monitoring tools.
//
// Example:
//
//	middleware.RegisterPublicEndpoint("/ping")
//	middleware.RegisterPublicEndpoint("/healthz")
func RegisterPublicEndpoint(endpoint string) {
	publicEndpoints[endpoint] = true
}

type (
	// AuthError represents an authentication error with a specific type.
	AuthError struct {
		Type    error
		Message string
	}

	// AuthConfig holds dashboard authentication configuration.
	//
	// Two credential forms are accepted:
	//   - Authorization: Bearer <jwt>  — HS256 token signed with JWTSecret
	//   - X-Api-Key: <token>           — service token compared against AdminTokenHash
	//
	// DevBypass short-circuits both checks and grants a development admin
	// identity. It must never be enabled in production.
	AuthConfig struct {
		JWTSecret      string
		AdminTokenHash string
		DevBypass      bool
	}

	// jwtClaims models the claims Chronicler reads from a dashboard token.
	// The role may live at the top level or nested under app_metadata,
	// depending on which identity provider issued the token.
	jwtClaims struct {
		Role        string `json:"role"`
		AppMetadata struct {
			Role string `json:"role"`
		} `json:"app_metadata"`
		jwt.RegisteredClaims
	}
)

// Authentication error types for granular error handling.
var (
	// ErrMissingCredentials is returned when no token is provided in headers.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrInvalidToken is returned for malformed, unverifiable, or unknown tokens.
	// Generic error prevents enumeration attacks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a JWT has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrAuthNotConfigured is returned when authentication is required but no
	// secret or service token hash is configured.
	ErrAuthNotConfigured = errors.New("authentication not configured")
)

// LoadAuthConfig loads authentication configuration from environment variables.
//
// JWT_SECRET is the HS256 signing secret for dashboard Bearer tokens.
// ADMIN_TOKEN_BCRYPT_HASH is the bcrypt hash service tokens are compared against.
// DEV_AUTH_BYPASS=true disables authentication entirely (development only).
func LoadAuthConfig() *AuthConfig {
	return &AuthConfig{
		JWTSecret:      config.GetEnvStr("JWT_SECRET", ""),
		AdminTokenHash: config.GetEnvStr("ADMIN_TOKEN_BCRYPT_HASH", ""),
		DevBypass:      config.GetEnvBool("DEV_AUTH_BYPASS", false),
	}
}

// Enabled reports whether any authentication mechanism is configured.
func (c *AuthConfig) Enabled() bool {
	return c.DevBypass || c.JWTSecret != "" || c.AdminTokenHash != ""
}

// extractCredentials extracts caller credentials from request headers.
// It checks the X-Api-Key header first (service tokens), then falls back to
// Authorization: Bearer (JWTs).
//
// Returns (token, isServiceToken, true) if found, ("", false, false) otherwise.
//
// Security considerations:
// - Rejects tokens containing newlines (header injection prevention)
// - Trims whitespace from tokens
// - Case-sensitive "Bearer " prefix check
// - X-Api-Key takes precedence over Authorization header.
func extractCredentials(r *http.Request) (string, bool, bool) {
	// Primary: Check X-Api-Key header (service tokens for automation)
	if apiKey := r.Header.Get("X-Api-Key"); apiKey != "" {
		token, ok := validateToken(apiKey)

		return token, true, ok
	}

	// Secondary: Check Authorization: Bearer header (dashboard JWTs)
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		// Check for "Bearer " prefix (note the space)
		if strings.HasPrefix(authHeader, "Bearer ") {
			token, ok := validateToken(strings.TrimPrefix(authHeader, "Bearer "))

			return token, false, ok
		}
	}

	return "", false, false
}

// validateToken validates and cleans a raw token value.
// Returns (cleanedToken, true) if valid, ("", false) otherwise.
//
// Validation rules:
// - Rejects tokens containing newlines (\r or \n) for header injection prevention
// - Trims leading/trailing whitespace
// - Rejects empty tokens after trimming.
func validateToken(token string) (string, bool) {
	// Security: Reject tokens containing newlines (header injection prevention)
	if strings.ContainsAny(token, "\r\n") {
		return "", false
	}

	token = strings.TrimSpace(token)

	if token == "" {
		return "", false
	}

	return token, true
}

// Error implements the error interface for AuthError.
func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed: %s: %s", e.Type.Error(), e.Message)
	}

	return "authentication failed: " + e.Type.Error()
}

// Unwrap returns the wrapped error type, enabling standard errors.Is() and errors.As() behavior.
func (e *AuthError) Unwrap() error {
	return e.Type
}

// authenticateServiceToken compares an X-Api-Key value against the configured
// bcrypt hash. When no hash is configured a dummy comparison still runs so the
// response time does not reveal whether service tokens are enabled.
func authenticateServiceToken(cfg *AuthConfig, token string, logger *slog.Logger, correlationID string) (Identity, error) {
	if cfg.AdminTokenHash == "" {
		storage.DummyCompareServiceToken()

		logger.Error("authentication failed: service token presented but none configured",
			slog.String("correlation_id", correlationID),
			slog.String("failure_type", "service_token_not_configured"),
		)

		return Identity{}, &AuthError{
			Type:    ErrInvalidToken,
			Message: "Invalid or missing credentials",
		}
	}

	if !storage.CompareServiceToken(cfg.AdminTokenHash, token) {
		logger.Error("authentication failed: service token mismatch",
			slog.String("correlation_id", correlationID),
			slog.String("failure_type", "service_token_mismatch"),
		)

		return Identity{}, &AuthError{
			Type:    ErrInvalidToken,
			Message: "Invalid or missing credentials",
		}
	}

	return Identity{
		Subject:  "service-token",
		Role:     RoleAdmin,
		Method:   "service_token",
		AuthTime: time.Now(),
	}, nil
}

// authenticateJWT verifies an HS256 Bearer token and derives the caller role.
//
// Role resolution order: top-level "role" claim, then "app_metadata.role",
// then RoleReadOnly. Unknown role values degrade to RoleReadOnly rather than
// failing the request.
func authenticateJWT(cfg *AuthConfig, token string, logger *slog.Logger, correlationID string) (Identity, error) {
	if cfg.JWTSecret == "" {
		logger.Error("authentication failed: bearer token presented but JWT_SECRET not configured",
			slog.String("correlation_id", correlationID),
			slog.String("failure_type", "jwt_not_configured"),
		)

		return Identity{}, &AuthError{
			Type:    ErrAuthNotConfigured,
			Message: "Bearer authentication is not configured",
		}
	}

	claims := &jwtClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, t.Header["alg"])
		}

		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		failureType := "jwt_invalid"
		authErr := &AuthError{Type: ErrInvalidToken, Message: "Invalid or missing credentials"}

		if errors.Is(err, jwt.ErrTokenExpired) {
			failureType = "jwt_expired"
			authErr = &AuthError{Type: ErrTokenExpired, Message: "Token has expired"}
		}

		logger.Error("authentication failed: bearer token rejected",
			slog.String("error", err.Error()),
			slog.String("correlation_id", correlationID),
			slog.String("failure_type", failureType),
		)

		return Identity{}, authErr
	}

	if !parsed.Valid {
		return Identity{}, &AuthError{
			Type:    ErrInvalidToken,
			Message: "Invalid or missing credentials",
		}
	}

	role := claims.Role
	if role == "" {
		role = claims.AppMetadata.Role
	}

	if role != RoleAdmin {
		role = RoleReadOnly
	}

	subject := claims.Subject
	if subject == "" {
		subject = "unknown"
	}

	return Identity{
		Subject:  subject,
		Role:     role,
		Method:   "jwt",
		AuthTime: time.Now(),
	}, nil
}

// Authenticate creates an authentication middleware that validates dashboard
// credentials and enriches the request context with caller identity.
//
// The middleware:
// - Extracts credentials from X-Api-Key (service tokens) or Authorization: Bearer (JWTs)
// - Verifies service tokens against the configured bcrypt hash
// - Verifies JWTs (HS256) and derives the caller role from claims
// - Short-circuits to a development admin identity when DevBypass is set
// - Returns RFC 7807 compliant error responses on failure
//
// Example usage:
//
//	authCfg := middleware.LoadAuthConfig()
//	logger := slog.Default()
//	authMiddleware := middleware.Authenticate(authCfg, logger)
//	handler = authMiddleware(handler)
func Authenticate(cfg *AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check if this path bypasses authentication (public endpoints)
			if publicEndpoints[r.URL.Path] {
				next.ServeHTTP(w, r)

				return
			}

			correlationID := GetCorrelationID(r.Context())

			if cfg.DevBypass {
				identity := Identity{
					Subject:  "dev-bypass",
					Role:     RoleAdmin,
					Method:   "dev_bypass",
					AuthTime: time.Now(),
				}

				next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), identity)))

				return
			}

			authStart := time.Now()

			token, isServiceToken, found := extractCredentials(r)
			if !found {
				// Timing: run the dummy comparison even for missing
				// credentials so failure paths stay uniform.
				storage.DummyCompareServiceToken()

				writeAuthError(w, r, logger, &AuthError{
					Type:    ErrMissingCredentials,
					Message: "Missing credentials",
				})

				return
			}

			var (
				identity Identity
				err      error
			)

			if isServiceToken {
				identity, err = authenticateServiceToken(cfg, token, logger, correlationID)
			} else {
				identity, err = authenticateJWT(cfg, token, logger, correlationID)
			}

			if err != nil {
				writeAuthError(w, r, logger, err)

				return
			}

			ctx := SetIdentity(r.Context(), identity)

			logger.Info("Request authenticated",
				slog.String("subject", identity.Subject),
				slog.String("role", identity.Role),
				slog.String("auth_method", identity.Method),
				slog.Duration("auth_latency", time.Since(authStart)),
				slog.String("correlation_id", correlationID),
				slog.String("endpoint", r.URL.Path),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError writes an RFC 7807 compliant error response for authentication failures.
// It maps authentication errors to appropriate HTTP status codes and logs the failure.
func writeAuthError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	correlationID := GetCorrelationID(r.Context())

	// Map authentication error to HTTP status code
	var statusCode int

	var authErr *AuthError
	if errors.As(err, &authErr) {
		switch {
		case errors.Is(authErr.Type, ErrMissingCredentials):
			statusCode = http.StatusUnauthorized
		case errors.Is(authErr.Type, ErrInvalidToken):
			statusCode = http.StatusUnauthorized
		case errors.Is(authErr.Type, ErrTokenExpired):
			statusCode = http.StatusUnauthorized
		case errors.Is(authErr.Type, ErrAuthNotConfigured):
			statusCode = http.StatusServiceUnavailable
		default:
			statusCode = http.StatusUnauthorized
		}
	} else {
		// Fallback for unexpected errors
		statusCode = http.StatusUnauthorized
	}

	// Log authentication failure (no sensitive data)
	logger.Warn("Authentication failed",
		slog.String("reason", err.Error()),
		slog.String("correlation_id", correlationID),
		slog.String("endpoint", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("user_agent", r.UserAgent()),
	)

	detail := err.Error()
	// Write RFC 7807 compliant error response
	if err := writeRFC7807Error(w, r, statusCode, detail, correlationID); err != nil {
		logger.Error("failed to write response with RFC 7807 error format",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("detail", detail),
			slog.Any("error", err),
		)

		// Fallback to plain text if writeRFC7807Error fails
		http.Error(w, detail, statusCode)
	}
}

// writeRFC7807Error writes an RFC 7807 compliant error response without importing the api package.
func writeRFC7807Error(
	w http.ResponseWriter,
	r *http.Request,
	statusCode int,
	detail,
	correlationID string,
) error {
	// Map status code to title
	var title string

	switch statusCode {
	case http.StatusUnauthorized:
		title = "Unauthorized"
	case http.StatusForbidden:
		title = "Forbidden"
	case http.StatusTooManyRequests:
		title = "Too Many Requests"
	case http.StatusServiceUnavailable:
		title = "Service Unavailable"
	default:
		title = "Authentication Failed"
	}

	// Create RFC 7807 problem detail
	problem := map[string]interface{}{
		"type":           fmt.Sprintf("https://chronicler.io/problems/%d", statusCode),
		"title":          title,
		"status":         statusCode,
		"detail":         detail,
		"instance":       r.URL.Path,
		"correlation_id": correlationID,
	}

	// Set proper content type and status code
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(statusCode)

	// Write response
	return json.NewEncoder(w).Encode(problem)
}
