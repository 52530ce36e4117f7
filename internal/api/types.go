// Package api provides HTTP API server implementation for the Chronicler dashboard.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/chronicler-io/chronicler/internal/dashboard"
)

// meetingDateLayout is the wire format for meeting dates in responses.
const meetingDateLayout = "2006-01-02"

type (
	// KPIResponse is the aggregate snapshot returned by GET /api/kpis.
	KPIResponse struct {
		TotalIngested     int        `json:"total_ingested"`     //nolint: tagliatelle
		SourcesCount      int        `json:"sources_count"`      //nolint: tagliatelle
		SuccessRate       float64    `json:"success_rate"`       //nolint: tagliatelle
		DuplicatesAvoided int        `json:"duplicates_avoided"` //nolint: tagliatelle
		LastRunTimestamp  *time.Time `json:"last_run_timestamp"` //nolint: tagliatelle
	}

	// MeetingSummary is one row of the meetings listing and export payloads.
	MeetingSummary struct {
		ID                      string     `json:"id"`
		SourceName              string     `json:"source_name"`  //nolint: tagliatelle
		Workgroup               string     `json:"workgroup"`
		MeetingDate             string     `json:"meeting_date"` //nolint: tagliatelle
		IngestedAt              *time.Time `json:"ingested_at"`  //nolint: tagliatelle
		Title                   string     `json:"title"`
		ValidationWarningsCount int        `json:"validation_warnings_count"` //nolint: tagliatelle
		HasMissingFields        bool       `json:"has_missing_fields"`        //nolint: tagliatelle
	}

	// MeetingListResponse is the paginated response for GET /api/meetings.
	MeetingListResponse struct {
		Items      []MeetingSummary `json:"items"`
		Total      int              `json:"total"`
		Page       int              `json:"page"`
		PageSize   int              `json:"page_size"`   //nolint: tagliatelle
		TotalPages int              `json:"total_pages"` //nolint: tagliatelle
	}

	// Provenance explains where a persisted meeting came from.
	Provenance struct {
		WorkgroupID string     `json:"workgroup_id"` //nolint: tagliatelle
		SourceURL   string     `json:"source_url"`   //nolint: tagliatelle
		IngestedAt  *time.Time `json:"ingested_at"`  //nolint: tagliatelle
		UpdatedAt   *time.Time `json:"updated_at"`   //nolint: tagliatelle
	}

	// MeetingDetailResponse is the single-meeting payload for GET /api/meetings/{id}.
	MeetingDetailResponse struct {
		MeetingSummary

		NormalizedFields json.RawMessage `json:"normalized_fields"`  //nolint: tagliatelle
		MissingFields    []string        `json:"missing_fields"`     //nolint: tagliatelle
		Provenance       Provenance      `json:"provenance"`
		RawJSONReference string          `json:"raw_json_reference"` //nolint: tagliatelle
		RawJSON          json.RawMessage `json:"raw_json,omitempty"` //nolint: tagliatelle
	}

	// RunSummary is one ingestion run row for GET /api/runs.
	RunSummary struct {
		ID                string     `json:"id"`
		SourceURL         string     `json:"source_url"` //nolint: tagliatelle
		Status            string     `json:"status"`
		RecordsProcessed  int        `json:"records_processed"`  //nolint: tagliatelle
		RecordsFailed     int        `json:"records_failed"`     //nolint: tagliatelle
		DuplicatesAvoided int        `json:"duplicates_avoided"` //nolint: tagliatelle
		StartedAt         time.Time  `json:"started_at"`         //nolint: tagliatelle
		FinishedAt        *time.Time `json:"finished_at"`        //nolint: tagliatelle
	}

	// RunListResponse is the response for GET /api/runs.
	RunListResponse struct {
		Runs []RunSummary `json:"runs"`
	}

	// MonthlyAggregate is one row of GET /api/runs/monthly.
	MonthlyAggregate struct {
		Month               string `json:"month"`
		RecordsIngested     int    `json:"records_ingested"`      //nolint: tagliatelle
		RecordsWithWarnings int    `json:"records_with_warnings"` //nolint: tagliatelle
	}

	// Alert is one error-log entry for GET /api/alerts.
	Alert struct {
		ID             string     `json:"id"`
		SourceURL      string     `json:"source_url"` //nolint: tagliatelle
		ErrorType      string     `json:"error_type"` //nolint: tagliatelle
		Message        string     `json:"message"`
		RecordIndex    *int       `json:"record_index"`     //nolint: tagliatelle
		IngestionRunID string     `json:"ingestion_run_id,omitempty"` //nolint: tagliatelle
		CreatedAt      time.Time  `json:"created_at"`       //nolint: tagliatelle
		Acknowledged   bool       `json:"acknowledged"`
		AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"` //nolint: tagliatelle
		AcknowledgedBy string     `json:"acknowledged_by,omitempty"` //nolint: tagliatelle
	}

	// AlertListResponse is the response for GET /api/alerts.
	AlertListResponse struct {
		Alerts []Alert `json:"alerts"`
	}

	// AcknowledgeResponse confirms POST /api/alerts/{id}/acknowledge.
	AcknowledgeResponse struct {
		ID             string `json:"id"`
		Acknowledged   bool   `json:"acknowledged"`
		AcknowledgedBy string `json:"acknowledged_by"` //nolint: tagliatelle
	}

	// ExportRequest is the body of POST /api/exports. Filter semantics match
	// the meetings listing.
	ExportRequest struct {
		Format    string `json:"format"`
		Workgroup string `json:"workgroup,omitempty"`
		DateFrom  string `json:"date_from,omitempty"` //nolint: tagliatelle
		DateTo    string `json:"date_to,omitempty"`   //nolint: tagliatelle
		Search    string `json:"search,omitempty"`
	}

	// ExportJSONResponse is the JSON-format export payload.
	ExportJSONResponse struct {
		Items []MeetingSummary `json:"items"`
		Total int              `json:"total"`
	}

	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName,omitempty"`
		Version     string `json:"version,omitempty"`
		Uptime      string `json:"uptime,omitempty"`
	}

	// Route represents an HTTP route configuration with a path and handler.
	// Used for declarative route registration with middleware bypass support.
	Route struct {
		Path    string           // The URL path for this route (e.g., "/ping", "/healthz")
		Handler http.HandlerFunc // The HTTP handler function for this route
	}
)

// mapMeetingSummary converts a domain MeetingSummary to its API shape.
func mapMeetingSummary(m dashboard.MeetingSummary) MeetingSummary {
	return MeetingSummary{
		ID:                      m.ID.String(),
		SourceName:              m.SourceName,
		Workgroup:               m.Workgroup,
		MeetingDate:             m.MeetingDate.Format(meetingDateLayout),
		IngestedAt:              m.IngestedAt,
		Title:                   m.Title,
		ValidationWarningsCount: m.ValidationWarningsCount,
		HasMissingFields:        m.HasMissingFields,
	}
}

// mapMeetingSummaries converts a domain summary slice, never returning nil so
// empty listings serialize as [] rather than null.
func mapMeetingSummaries(meetings []dashboard.MeetingSummary) []MeetingSummary {
	items := make([]MeetingSummary, 0, len(meetings))
	for _, m := range meetings {
		items = append(items, mapMeetingSummary(m))
	}

	return items
}
