package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chronicler-io/chronicler/internal/dashboard"
)

func TestListAlerts_ReturnsAlertFeed(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	recordIndex := 4
	runID := uuid.MustParse("84fadcd0-2222-4f3a-9b1c-0d1e2f304152")
	ackedAt := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	store := &mockStore{
		alerts: []dashboard.Alert{
			{
				ID:             uuid.MustParse("aa11bb22-cc33-4d44-8e55-ff6600771882"),
				SourceURL:      "https://archive.example.com/2025/meeting-summaries.json",
				ErrorType:      "record_validation_error",
				Message:        "workgroup: required",
				RecordIndex:    &recordIndex,
				IngestionRunID: &runID,
				CreatedAt:      ackedAt.Add(-time.Hour),
				Acknowledged:   true,
				AcknowledgedAt: &ackedAt,
				AcknowledgedBy: "ops@example.com",
			},
			{
				ID:        uuid.MustParse("bb22cc33-dd44-4e55-9f66-007718829933"),
				SourceURL: "https://archive.example.com/2024/meeting-summaries.json",
				ErrorType: "http_error",
				Message:   "unexpected status 503",
				CreatedAt: ackedAt.Add(-2 * time.Hour),
			},
		},
	}

	s := newAdminTestServer(store)
	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response AlertListResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode alerts: %v", err)
	}

	if len(response.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(response.Alerts))
	}

	first := response.Alerts[0]
	if first.ErrorType != "record_validation_error" || !first.Acknowledged {
		t.Errorf("unexpected first alert %+v", first)
	}

	if first.RecordIndex == nil || *first.RecordIndex != 4 {
		t.Errorf("expected record_index 4, got %v", first.RecordIndex)
	}

	if first.IngestionRunID != runID.String() {
		t.Errorf("expected run id %s, got %s", runID, first.IngestionRunID)
	}

	// Source-level alerts have no run reference and omit the field
	if response.Alerts[1].IngestionRunID != "" {
		t.Errorf("expected empty run id, got %s", response.Alerts[1].IngestionRunID)
	}
}

func TestListAlerts_AdminSeesEverythingByDefault(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := &mockStore{}

	s := newAdminTestServer(store)
	serve(t, s, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))

	filter := store.lastAlertFilter
	if filter == nil {
		t.Fatal("expected the store to be queried")
	}

	if filter.Hours != defaultAlertHours {
		t.Errorf("expected default lookback %d hours, got %d", defaultAlertHours, filter.Hours)
	}

	if filter.Acknowledged != nil {
		t.Errorf("expected nil acknowledged filter for admins, got %v", *filter.Acknowledged)
	}
}

func TestListAlerts_NonAdminDefaultsToUnacknowledged(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := &mockStore{}

	// No auth middleware: requests reach the handler with no identity
	s := newTestServer(store)
	serve(t, s, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))

	filter := store.lastAlertFilter
	if filter == nil {
		t.Fatal("expected the store to be queried")
	}

	if filter.Acknowledged == nil || *filter.Acknowledged {
		t.Errorf("expected acknowledged=false default for non-admins, got %v", filter.Acknowledged)
	}
}

func TestListAlerts_FilterParameters(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := &mockStore{}
	s := newAdminTestServer(store)

	target := "/api/alerts?hours=72&error_type=http_error&acknowledged=true"
	serve(t, s, httptest.NewRequest(http.MethodGet, target, nil))

	filter := store.lastAlertFilter
	if filter == nil {
		t.Fatal("expected the store to be queried")
	}

	if filter.Hours != 72 {
		t.Errorf("expected 72 hour lookback, got %d", filter.Hours)
	}

	if filter.ErrorType == nil || *filter.ErrorType != "http_error" {
		t.Errorf("expected error_type filter, got %v", filter.ErrorType)
	}

	if filter.Acknowledged == nil || !*filter.Acknowledged {
		t.Errorf("expected acknowledged=true, got %v", filter.Acknowledged)
	}
}

func TestListAlerts_HoursClampedToWeek(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := &mockStore{}
	s := newAdminTestServer(store)

	serve(t, s, httptest.NewRequest(http.MethodGet, "/api/alerts?hours=169", nil))

	if store.lastAlertFilter.Hours != defaultAlertHours {
		t.Errorf("expected fallback to %d hours, got %d", defaultAlertHours, store.lastAlertFilter.Hours)
	}

	serve(t, s, httptest.NewRequest(http.MethodGet, "/api/alerts?hours=168", nil))

	if store.lastAlertFilter.Hours != maxAlertHours {
		t.Errorf("expected %d hours at the cap, got %d", maxAlertHours, store.lastAlertFilter.Hours)
	}
}

func TestListAlerts_UnparseableAcknowledgedIgnored(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := &mockStore{}
	s := newAdminTestServer(store)

	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/api/alerts?acknowledged=kinda", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if store.lastAlertFilter.Acknowledged != nil {
		t.Errorf("expected unparseable acknowledged to be dropped, got %v", *store.lastAlertFilter.Acknowledged)
	}
}

func TestListAlerts_NoStoreServesEmptyFeed(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	s := newTestServer(nil)
	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 in degraded mode, got %d", rec.Code)
	}

	var response AlertListResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode alerts: %v", err)
	}

	if response.Alerts == nil || len(response.Alerts) != 0 {
		t.Errorf("expected empty alerts slice, got %v", response.Alerts)
	}
}

func TestListAlerts_StoreFailureReturns500(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := &mockStore{alertsErr: errors.New("connection refused")}

	s := newAdminTestServer(store)
	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
