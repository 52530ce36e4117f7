package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chronicler-io/chronicler/internal/api/middleware"
)

const (
	serviceVersion = "v1.0.0" // TODO: inject at build time

	healthCheckTimeout     = 2 * time.Second
	contentTypeProblemJSON = "application/problem+json"
)

func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Health probes stay reachable without credentials; "/" catches
	// everything unrouted with a 404 problem.
	s.registerPublicRoutes(
		mux,
		Route{"GET /ping", s.handlePing},
		Route{"GET /ready", s.handleReady},
		Route{"GET /healthz", s.handleHealthz},
		Route{"/", s.handleNotFound},
	)

	mux.HandleFunc("GET /api/kpis", s.handleGetKPIs)
	mux.HandleFunc("GET /api/meetings", s.handleListMeetings)
	mux.HandleFunc("GET /api/meetings/{id}", s.handleGetMeetingDetails)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/monthly", s.handleMonthlyAggregates)
	mux.HandleFunc("GET /api/alerts", s.handleListAlerts)

	mux.HandleFunc("POST /api/alerts/{id}/acknowledge", s.handleAcknowledgeAlert)
	mux.HandleFunc("POST /api/exports", s.handleExportMeetings)
}

// registerPublicRoutes registers routes on the mux and marks their paths as
// exempt from the auth middleware. Route patterns may carry a Go 1.22 method
// prefix ("GET /ping"); the bypass registration needs the bare path since
// that is what r.URL.Path holds at match time.
//
// Only health probes belong here. Business endpoints must stay behind auth.
func (s *Server) registerPublicRoutes(mux *http.ServeMux, routes ...Route) {
	for _, route := range routes {
		mux.Handle(route.Path, route.Handler)

		path := publicPathOf(route.Path)
		if path == "" {
			s.logger.Warn("Malformed route path detected, ignoring route", slog.String("path", route.Path))

			continue
		}

		middleware.RegisterPublicEndpoint(path)
	}
}

func publicPathOf(pattern string) string {
	parts := strings.Fields(pattern)
	if len(parts) == 2 && isHTTPMethod(parts[0]) {
		return parts[1]
	}

	return strings.TrimSpace(pattern)
}

func isHTTPMethod(s string) bool {
	switch s {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// handlePing is the liveness probe: the process is up and serving.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Chronicler-Version", serviceVersion)
	s.writeText(w, r, http.StatusOK, "pong")
}

// handleReady is the readiness probe. It pings the dashboard store with a
// short deadline; an unreachable store returns 503 so the orchestrator stops
// routing traffic here. With no store configured the server serves empty
// reads, so it reports ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.logger.Warn("Dashboard store not configured - readiness check disabled",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		)
		s.writeText(w, r, http.StatusOK, "ready")

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Error("Storage health check failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
		s.writeText(w, r, http.StatusServiceUnavailable, "storage unavailable")

		return
	}

	s.writeText(w, r, http.StatusOK, "ready")
}

// handleHealthz reports service identity and uptime.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	var uptime string
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	w.Header().Set("X-Chronicler-Version", serviceVersion)
	s.writeJSON(w, r, HealthStatus{
		Status:      "ok",
		ServiceName: "chronicler",
		Version:     serviceVersion,
		Uptime:      uptime,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, s.logger, NotFound("The requested resource was not found"))
}

// writeText writes a plain-text response, logging write failures against the
// request's correlation id.
func (s *Server) writeText(w http.ResponseWriter, r *http.Request, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)

	if _, err := w.Write([]byte(body)); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// writeJSON marshals payload and writes it with a 200. Marshal failures
// degrade to a 500 problem response.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to marshal response",
			"correlation_id", middleware.GetCorrelationID(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// hasJSONContentType reports whether the Content-Type is application/json,
// tolerating parameters like charset.
func hasJSONContentType(contentType string) bool {
	return strings.HasPrefix(strings.TrimSpace(contentType), "application/json")
}
