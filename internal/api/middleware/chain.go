package middleware

import (
	"log/slog"
	"net/http"
)

// Option wraps a handler with one middleware layer.
type Option func(http.Handler) http.Handler

// noop is the Option for middleware that is configured off.
func noop(next http.Handler) http.Handler { return next }

// Apply wraps handler with the given options. The first option becomes the
// outermost layer, so requests pass through options in the order listed.
func Apply(handler http.Handler, options ...Option) http.Handler {
	for i := len(options) - 1; i >= 0; i-- {
		handler = options[i](handler)
	}

	return handler
}

// WithCorrelationID tags requests with a correlation id.
func WithCorrelationID() Option {
	return CorrelationID()
}

// WithRecovery converts panics into 500 responses.
func WithRecovery(logger *slog.Logger) Option {
	return Recovery(logger)
}

// WithAuth enforces dashboard authentication. A nil or unconfigured cfg
// disables the layer entirely.
func WithAuth(cfg *AuthConfig, logger *slog.Logger) Option {
	if cfg == nil || !cfg.Enabled() {
		return noop
	}

	return Authenticate(cfg, logger)
}

// WithRateLimit throttles requests per client. A nil limiter disables the
// layer.
func WithRateLimit(limiter RateLimiter, logger *slog.Logger) Option {
	if limiter == nil {
		return noop
	}

	return RateLimit(limiter, logger)
}

// WithRequestLogger logs request start and completion.
func WithRequestLogger(logger *slog.Logger) Option {
	return RequestLogger(logger)
}

// WithCORS sets cross-origin headers.
func WithCORS(config CORSConfig) Option {
	return CORS(config)
}
