package ingestion

import (
	"context"
	"fmt"
	"log/slog"
)

// Writer materializes validated meeting records into the store, one atomic
// transaction per meeting. Identity derivation and the cycle guard run
// before any store call, so a rejected record costs no transaction.
type Writer struct {
	store  Store
	logger *slog.Logger
}

// NewWriter creates a writer over the given store adapter.
func NewWriter(store Store, logger *slog.Logger) *Writer {
	return &Writer{
		store:  store,
		logger: logger,
	}
}

// Materialize resolves deterministic identity for a validated record and
// flattens it into the row bundle the store persists. It runs the cycle
// guard first: records nested deeper than the bound, or self-referencing,
// fail with ErrCircularReference and produce no rows.
//
// Materialize is pure with respect to the store; dry-run mode calls it
// without ever calling Write.
func (w *Writer) Materialize(record *MeetingRecord, sourceURL string) (*MeetingRows, error) {
	if err := CheckRecordDepth(record.Raw); err != nil {
		return nil, err
	}

	meetingID := MeetingID(record)

	rows := &MeetingRows{
		Meeting: MeetingRow{
			ID:               meetingID,
			WorkgroupID:      record.WorkgroupID,
			Date:             record.Info.Date,
			Type:             record.Type,
			Host:             record.Info.Host,
			Documenter:       record.Info.Documenter,
			Attendees:        record.Info.Attendees,
			Purpose:          record.Info.Purpose,
			VideoLinks:       record.Info.VideoLinks,
			WorkingDocs:      record.Info.WorkingDocs,
			TimestampedVideo: record.Info.TimestampedVideo,
			Tags:             record.Tags,
			Warnings:         record.Warnings,
			SourceURL:        sourceURL,
			Raw:              record.Raw,
		},
	}

	for i := range record.AgendaItems {
		item := &record.AgendaItems[i]
		agendaID := AgendaItemID(meetingID, item)

		agendaRow := AgendaItemRow{
			ID:         agendaID,
			MeetingID:  meetingID,
			Status:     item.Status,
			OrderIndex: item.OrderIndex,
			Raw:        item.Raw,
		}

		for j := range item.ActionItems {
			action := &item.ActionItems[j]
			agendaRow.ActionItems = append(agendaRow.ActionItems, ActionItemRow{
				ID:           ActionItemID(agendaID, action, j),
				AgendaItemID: agendaID,
				Text:         action.Text,
				Assignee:     action.Assignee,
				DueDate:      action.DueDate,
				Status:       action.Status,
				Raw:          action.Raw,
			})
		}

		for j := range item.DecisionItems {
			decision := &item.DecisionItems[j]
			agendaRow.DecisionItems = append(agendaRow.DecisionItems, DecisionItemRow{
				ID:           DecisionItemID(agendaID, decision, j),
				AgendaItemID: agendaID,
				Decision:     decision.Decision,
				Rationale:    decision.Rationale,
				EffectScope:  decision.EffectScope,
				Raw:          decision.Raw,
			})
		}

		for j := range item.DiscussionPoints {
			point := &item.DiscussionPoints[j]
			agendaRow.DiscussionPoints = append(agendaRow.DiscussionPoints, DiscussionPointRow{
				ID:           DiscussionPointID(agendaID, point, j),
				AgendaItemID: agendaID,
				Point:        point.Point,
				OrderIndex:   j,
				Raw:          point.Raw,
			})
		}

		rows.AgendaItems = append(rows.AgendaItems, agendaRow)
	}

	return rows, nil
}

// Write materializes and persists one record. A duplicate return means the
// deterministic id already existed and the upsert converged onto it: the
// later record wins and the collision counts as duplicates_avoided.
func (w *Writer) Write(ctx context.Context, record *MeetingRecord, sourceURL string) (bool, error) {
	rows, err := w.Materialize(record, sourceURL)
	if err != nil {
		return false, err
	}

	duplicate, err := w.store.PersistMeeting(ctx, rows)
	if err != nil {
		return false, fmt.Errorf("persist meeting %s: %w", rows.Meeting.ID, err)
	}

	if duplicate {
		w.logger.Info("Deterministic id collision resolved as update",
			slog.String("meeting_id", rows.Meeting.ID.String()),
			slog.String("workgroup_id", rows.Meeting.WorkgroupID.String()),
			slog.String("source_url", sourceURL),
		)
	}

	return duplicate, nil
}
