package ingestion

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Row bundles passed to the store adapter. The writer fully resolves
// identity and normalization before any store call, so the storage layer
// only binds parameters and manages the transaction.
type (
	// WorkgroupRow is one workgroup upsert, materialized before any meeting
	// referencing it within the same run.
	WorkgroupRow struct {
		ID   uuid.UUID
		Name string
		Raw  json.RawMessage
	}

	// MeetingRows is the complete row set of one meeting: the meeting row
	// plus every nested child, in document order. The store persists the
	// whole bundle in a single transaction or not at all.
	MeetingRows struct {
		Meeting     MeetingRow
		AgendaItems []AgendaItemRow
	}

	// MeetingRow is the normalized meetings-table row.
	MeetingRow struct {
		ID               uuid.UUID
		WorkgroupID      uuid.UUID
		Date             time.Time
		Type             string
		Host             string
		Documenter       string
		Attendees        []string
		Purpose          string
		VideoLinks       []string
		WorkingDocs      json.RawMessage
		TimestampedVideo json.RawMessage
		Tags             json.RawMessage
		Warnings         []string
		SourceURL        string
		Raw              json.RawMessage
	}

	// AgendaItemRow is one agenda_items row together with its children.
	AgendaItemRow struct {
		ID               uuid.UUID
		MeetingID        uuid.UUID
		Status           string
		OrderIndex       int
		Raw              json.RawMessage
		ActionItems      []ActionItemRow
		DecisionItems    []DecisionItemRow
		DiscussionPoints []DiscussionPointRow
	}

	// ActionItemRow is one action_items row.
	ActionItemRow struct {
		ID           uuid.UUID
		AgendaItemID uuid.UUID
		Text         string
		Assignee     string
		DueDate      string
		Status       string
		Raw          json.RawMessage
	}

	// DecisionItemRow is one decision_items row.
	DecisionItemRow struct {
		ID           uuid.UUID
		AgendaItemID uuid.UUID
		Decision     string
		Rationale    string
		EffectScope  string
		Raw          json.RawMessage
	}

	// DiscussionPointRow is one discussion_points row.
	DiscussionPointRow struct {
		ID           uuid.UUID
		AgendaItemID uuid.UUID
		Point        string
		OrderIndex   int
		Raw          json.RawMessage
	}
)

// Store is the adapter the writer persists meetings through. Implementations
// must make PersistMeeting atomic: either the whole bundle lands or none of
// it does.
type Store interface {
	// UpsertWorkgroups materializes the given workgroups in one transaction.
	UpsertWorkgroups(ctx context.Context, workgroups []WorkgroupRow) error

	// PersistMeeting upserts one meeting and all its nested children in a
	// single transaction. It reports duplicate=true when the meeting id
	// already existed (the upsert updated rather than inserted).
	PersistMeeting(ctx context.Context, rows *MeetingRows) (duplicate bool, err error)
}

// RunStore records ingestion runs and their error-log entries.
type RunStore interface {
	// OpenRun inserts a new run row for the given source with status running.
	OpenRun(ctx context.Context, sourceURL string) (uuid.UUID, error)

	// CloseRun finalizes a run with its terminal status and counters.
	CloseRun(ctx context.Context, runID uuid.UUID, status RunStatus, stats RunStats) error

	// RecordError appends an error-log entry attributed to the given run.
	RecordError(ctx context.Context, runID uuid.UUID, pipeErr *PipelineError) error

	// RefreshAggregates rebuilds the dashboard's materialized aggregates.
	// Called once after an ingestion pass so KPI and monthly views reflect
	// the new rows.
	RefreshAggregates(ctx context.Context) error
}
