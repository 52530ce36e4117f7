// Package dashboard defines the read-side domain model served to the
// dashboard: KPIs, meeting listings and detail, run history, monthly
// aggregates, and error alerts. The storage layer implements Store; the API
// layer consumes it.
package dashboard

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type (
	// KPIs is the aggregate snapshot served by GET /api/kpis, backed by the
	// mv_ingestion_kpis materialized view. An empty store yields the zero
	// snapshot with a 100.0 success rate and no last-run timestamp.
	KPIs struct {
		TotalIngested     int
		SourcesCount      int
		SuccessRate       float64
		DuplicatesAvoided int
		LastRunTimestamp  *time.Time
	}

	// MeetingFilter selects and pages the meetings listing. Nil members are
	// unset. Search is a case-insensitive substring match over workgroup
	// and title.
	MeetingFilter struct {
		Workgroup *string
		DateFrom  *time.Time
		DateTo    *time.Time
		Search    *string
		Page      int
		PageSize  int
	}

	// MeetingSummary is one row of the meetings listing.
	MeetingSummary struct {
		ID                      uuid.UUID
		SourceName              string
		Workgroup               string
		MeetingDate             time.Time
		IngestedAt              *time.Time
		Title                   string
		ValidationWarningsCount int
		HasMissingFields        bool
	}

	// MeetingDetail extends the summary with normalization provenance for
	// the single-meeting view.
	MeetingDetail struct {
		MeetingSummary
		NormalizedFields json.RawMessage
		MissingFields    []string
		Provenance       Provenance
		RawJSONReference string
		RawJSON          json.RawMessage
	}

	// Provenance explains where a persisted meeting came from.
	Provenance struct {
		WorkgroupID uuid.UUID
		SourceURL   string
		IngestedAt  *time.Time
		UpdatedAt   *time.Time
	}

	// RunSummary is one ingestion run row.
	RunSummary struct {
		ID                uuid.UUID
		SourceURL         string
		Status            string
		RecordsProcessed  int
		RecordsFailed     int
		DuplicatesAvoided int
		StartedAt         time.Time
		FinishedAt        *time.Time
	}

	// MonthlyAggregate is one row of the monthly ingestion rollup.
	MonthlyAggregate struct {
		Month               string
		RecordsIngested     int
		RecordsWithWarnings int
	}

	// AlertFilter selects recent error-log entries. Hours bounds the
	// lookback window. A nil Acknowledged means the caller's role decides
	// the default (non-admins see only unacknowledged alerts).
	AlertFilter struct {
		Hours        int
		ErrorType    *string
		Acknowledged *bool
	}

	// Alert is one error-log entry joined against its acknowledgment.
	Alert struct {
		ID             uuid.UUID
		SourceURL      string
		ErrorType      string
		Message        string
		RecordIndex    *int
		IngestionRunID *uuid.UUID
		CreatedAt      time.Time
		Acknowledged   bool
		AcknowledgedAt *time.Time
		AcknowledgedBy string
	}
)
