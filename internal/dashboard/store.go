package dashboard

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrMeetingNotFound is returned when a meeting id resolves to no row.
	ErrMeetingNotFound = errors.New("meeting not found")

	// ErrAlertNotFound is returned when an alert id resolves to no error-log row.
	ErrAlertNotFound = errors.New("alert not found")
)

// Store is the read interface the dashboard API is served from. All methods
// are read-only and idempotent except AcknowledgeAlert, which upserts one
// acknowledgment row.
type Store interface {
	// GetKPIs returns the aggregate dashboard snapshot.
	GetKPIs(ctx context.Context) (*KPIs, error)

	// ListMeetings returns one page of meeting summaries plus the total
	// match count for pagination.
	ListMeetings(ctx context.Context, filter *MeetingFilter) ([]MeetingSummary, int, error)

	// ExportMeetings returns every summary matching the filter (no paging)
	// plus the total count, for the export endpoint's row-limit check.
	ExportMeetings(ctx context.Context, filter *MeetingFilter) ([]MeetingSummary, int, error)

	// GetMeetingDetail returns the full detail payload for one meeting.
	// Returns ErrMeetingNotFound when the id resolves to nothing.
	GetMeetingDetail(ctx context.Context, id uuid.UUID) (*MeetingDetail, error)

	// ListRuns returns the most recent ingestion runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// MonthlyAggregates returns up to months rows of the monthly rollup,
	// newest month first.
	MonthlyAggregates(ctx context.Context, months int) ([]MonthlyAggregate, error)

	// ListAlerts returns recent error-log entries joined against their
	// acknowledgments.
	ListAlerts(ctx context.Context, filter *AlertFilter) ([]Alert, error)

	// AcknowledgeAlert upserts an acknowledgment for the given error-log
	// entry. Returns ErrAlertNotFound when no such entry exists.
	AcknowledgeAlert(ctx context.Context, alertID uuid.UUID, acknowledgedBy string) error

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error
}
