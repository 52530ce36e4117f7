package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/chronicler-io/chronicler/internal/api/middleware"
	"github.com/chronicler-io/chronicler/internal/dashboard"
)

// handleGetMeetingDetails handles GET /api/meetings/{id}.
// Returns the full payload for one meeting: summary fields plus normalized
// fields, missing-field diagnostics, provenance, and the raw source document.
//
// Path Parameters:
//   - id: meeting UUID
//
// Response: MeetingDetailResponse; 404 when the id resolves to no meeting.
func (s *Server) handleGetMeetingDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	idStr := r.PathValue("id")
	if idStr == "" {
		WriteErrorResponse(w, r, s.logger, BadRequest("Missing meeting ID"))

		return
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("Invalid meeting ID: must be a UUID"))

		return
	}

	// The detail view has no degraded mode: without a store there is nothing
	// useful to serve for a specific meeting.
	if s.store == nil {
		s.logger.ErrorContext(ctx, "Meeting detail requested without a configured store",
			"correlation_id", correlationID,
			"meeting_id", id.String(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Storage is not configured"))

		return
	}

	detail, err := s.store.GetMeetingDetail(ctx, id)
	if err != nil {
		if errors.Is(err, dashboard.ErrMeetingNotFound) {
			WriteErrorResponse(w, r, s.logger, NotFound("Meeting not found"))

			return
		}

		s.logger.ErrorContext(ctx, "Failed to query meeting",
			"correlation_id", correlationID,
			"meeting_id", id.String(),
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to query meeting"))

		return
	}

	s.writeJSON(w, r, mapMeetingDetail(detail))
}

// mapMeetingDetail converts a domain MeetingDetail to its API response shape.
func mapMeetingDetail(detail *dashboard.MeetingDetail) MeetingDetailResponse {
	missing := detail.MissingFields
	if missing == nil {
		missing = []string{}
	}

	return MeetingDetailResponse{
		MeetingSummary:   mapMeetingSummary(detail.MeetingSummary),
		NormalizedFields: detail.NormalizedFields,
		MissingFields:    missing,
		Provenance: Provenance{
			WorkgroupID: detail.Provenance.WorkgroupID.String(),
			SourceURL:   detail.Provenance.SourceURL,
			IngestedAt:  detail.Provenance.IngestedAt,
			UpdatedAt:   detail.Provenance.UpdatedAt,
		},
		RawJSONReference: detail.RawJSONReference,
		RawJSON:          detail.RawJSON,
	}
}
