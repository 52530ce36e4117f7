// Package ingestion implements the meeting-summary ingestion pipeline:
// fetching JSON documents from remote feeds, validating them in two phases,
// deriving deterministic identity, and materializing records into the store
// one transaction per meeting.
package ingestion

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type (
	// MeetingRecord is the strict internal model produced by the record gate.
	// All text fields are trimmed; required fields are guaranteed non-empty.
	MeetingRecord struct {
		// ID is the meeting UUID taken verbatim from the source when the
		// source supplied a parseable one, uuid.Nil otherwise (derived later).
		ID          uuid.UUID
		Workgroup   string
		WorkgroupID uuid.UUID
		Info        MeetingInfo
		AgendaItems []AgendaItem
		Tags        json.RawMessage
		Type        string

		// Raw is the original record fragment, preserved verbatim for the
		// raw_json column and for provenance.
		Raw json.RawMessage

		// Warnings accumulates validator-level losses (dropped action items,
		// coerced discussion points). Persisted on the meeting row.
		Warnings []string
	}

	// MeetingInfo holds the normalized meetingInfo sub-object.
	MeetingInfo struct {
		Date             time.Time
		Host             string
		Documenter       string
		Attendees        []string
		Purpose          string
		VideoLinks       []string
		WorkingDocs      json.RawMessage
		TimestampedVideo json.RawMessage
	}

	// AgendaItem is one agenda entry of a meeting, in document order.
	AgendaItem struct {
		ID               uuid.UUID // uuid.Nil when the source supplied none
		Status           string
		OrderIndex       int
		ActionItems      []ActionItem
		DecisionItems    []DecisionItem
		DiscussionPoints []DiscussionPoint
		Raw              json.RawMessage
	}

	// ActionItem is an actionable task attached to an agenda item.
	ActionItem struct {
		ID       uuid.UUID
		Text     string
		Assignee string
		DueDate  string
		Status   string
		Raw      json.RawMessage
	}

	// DecisionItem records a decision taken under an agenda item.
	DecisionItem struct {
		ID          uuid.UUID
		Decision    string
		Rationale   string
		EffectScope string
		Raw         json.RawMessage
	}

	// DiscussionPoint is a normalized discussion entry. The input shape is
	// polymorphic (bare string, {point: string}, or a single-key object);
	// normalization always yields canonical point text.
	DiscussionPoint struct {
		ID      uuid.UUID
		Point   string
		Coerced bool // true when last-resort string coercion was applied
		Raw     json.RawMessage
	}
)

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

// Ingestion run states. A run opens as running and closes as exactly one of
// the terminal states.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// RunStats accumulates per-source counters reported when a run closes.
type RunStats struct {
	RecordsProcessed  int
	RecordsFailed     int
	DuplicatesAvoided int
}
