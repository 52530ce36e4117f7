// Package api provides HTTP API server implementation for the Chronicler dashboard.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chronicler-io/chronicler/internal/api/middleware"
	"github.com/chronicler-io/chronicler/internal/dashboard"
)

// ============================================================================
// Test scaffolding: mock store, server construction, request helpers
// ============================================================================

// mockStore is a scriptable dashboard.Store for handler tests. Value fields
// are served as-is; err fields force the corresponding method to fail. Call
// arguments are recorded so tests can assert what the handler asked for.
type mockStore struct {
	kpis    *dashboard.KPIs
	kpisErr error

	meetings   []dashboard.MeetingSummary
	total      int
	listErr    error
	lastFilter *dashboard.MeetingFilter

	exportItems  []dashboard.MeetingSummary
	exportTotal  int
	exportErr    error
	exportFilter *dashboard.MeetingFilter

	detail    *dashboard.MeetingDetail
	detailErr error
	detailID  uuid.UUID

	runs      []dashboard.RunSummary
	runsErr   error
	lastLimit int

	monthly    []dashboard.MonthlyAggregate
	monthlyErr error
	lastMonths int

	alerts          []dashboard.Alert
	alertsErr       error
	lastAlertFilter *dashboard.AlertFilter

	ackErr  error
	ackedID uuid.UUID
	ackedBy string

	healthErr error
}

func (m *mockStore) GetKPIs(_ context.Context) (*dashboard.KPIs, error) {
	if m.kpisErr != nil {
		return nil, m.kpisErr
	}

	return m.kpis, nil
}

func (m *mockStore) ListMeetings(
	_ context.Context,
	filter *dashboard.MeetingFilter,
) ([]dashboard.MeetingSummary, int, error) {
	m.lastFilter = filter

	if m.listErr != nil {
		return nil, 0, m.listErr
	}

	return m.meetings, m.total, nil
}

func (m *mockStore) ExportMeetings(
	_ context.Context,
	filter *dashboard.MeetingFilter,
) ([]dashboard.MeetingSummary, int, error) {
	m.exportFilter = filter

	if m.exportErr != nil {
		return nil, 0, m.exportErr
	}

	return m.exportItems, m.exportTotal, nil
}

func (m *mockStore) GetMeetingDetail(_ context.Context, id uuid.UUID) (*dashboard.MeetingDetail, error) {
	m.detailID = id

	if m.detailErr != nil {
		return nil, m.detailErr
	}

	return m.detail, nil
}

func (m *mockStore) ListRuns(_ context.Context, limit int) ([]dashboard.RunSummary, error) {
	m.lastLimit = limit

	if m.runsErr != nil {
		return nil, m.runsErr
	}

	return m.runs, nil
}

func (m *mockStore) MonthlyAggregates(_ context.Context, months int) ([]dashboard.MonthlyAggregate, error) {
	m.lastMonths = months

	if m.monthlyErr != nil {
		return nil, m.monthlyErr
	}

	return m.monthly, nil
}

func (m *mockStore) ListAlerts(_ context.Context, filter *dashboard.AlertFilter) ([]dashboard.Alert, error) {
	m.lastAlertFilter = filter

	if m.alertsErr != nil {
		return nil, m.alertsErr
	}

	return m.alerts, nil
}

func (m *mockStore) AcknowledgeAlert(_ context.Context, alertID uuid.UUID, acknowledgedBy string) error {
	if m.ackErr != nil {
		return m.ackErr
	}

	m.ackedID = alertID
	m.ackedBy = acknowledgedBy

	return nil
}

func (m *mockStore) HealthCheck(_ context.Context) error {
	return m.healthErr
}

// newTestConfig returns a valid server configuration for handler tests.
// Error-level logging keeps test output free of startup noise.
func newTestConfig() *ServerConfig {
	return &ServerConfig{
		Port:               8080,
		Host:               "127.0.0.1",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           slog.LevelError,
		MaxRequestSize:     1 << 20,
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Api-Key"},
		CORSMaxAge:         300,
	}
}

// newTestServer builds a server with no authentication and no rate limiting,
// so requests reach handlers carrying no identity.
func newTestServer(store dashboard.Store) *Server {
	return NewServer(newTestConfig(), store, nil, nil)
}

// newAdminTestServer builds a server whose auth middleware grants every
// request an admin identity via the dev bypass.
func newAdminTestServer(store dashboard.Store) *Server {
	return NewServer(newTestConfig(), store, &middleware.AuthConfig{DevBypass: true}, nil)
}

// jwtOnlyAuthConfig enables JWT authentication with a throwaway secret, so
// requests without credentials are rejected on protected routes.
func jwtOnlyAuthConfig() *middleware.AuthConfig {
	return &middleware.AuthConfig{JWTSecret: "route-test-secret"} // pragma: allowlist secret
}

// serve runs one request through the server's full middleware chain.
func serve(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	return rec
}

// decodeProblem decodes an RFC 7807 response body and checks its content type.
func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) *ProblemDetail {
	t.Helper()

	if got := rec.Header().Get("Content-Type"); got != "application/problem+json" {
		t.Errorf("expected problem+json content type, got %q", got)
	}

	var problem ProblemDetail
	if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
		t.Fatalf("failed to decode problem detail: %v", err)
	}

	return &problem
}

// ============================================================================
// Server-level behavior
// ============================================================================

func TestServer_UnknownRouteReturnsProblem(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	s := newTestServer(nil)
	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", rec.Code)
	}

	problem := decodeProblem(t, rec)
	if problem.Status != http.StatusNotFound {
		t.Errorf("expected problem status 404, got %d", problem.Status)
	}

	if problem.Type != "https://chronicler.io/problems/404" {
		t.Errorf("unexpected problem type %q", problem.Type)
	}

	if problem.Instance != "/does-not-exist" {
		t.Errorf("expected instance to echo the request path, got %q", problem.Instance)
	}
}

func TestServer_ResponsesCarryCorrelationID(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	s := newTestServer(nil)
	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected X-Correlation-ID header on response")
	}
}
