package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/chronicler-io/chronicler/internal/api/middleware"
	"github.com/chronicler-io/chronicler/internal/dashboard"
)

// handleAcknowledgeAlert handles POST /api/alerts/{id}/acknowledge.
// Upserts an acknowledgment row for one error-log entry. Admin only.
//
// Path Parameters:
//   - id: alert (error-log entry) UUID
//
// Response: AcknowledgeResponse; 403 for non-admin callers, 404 when the
// alert does not exist.
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	identity, ok := middleware.GetIdentity(ctx)
	if !ok || !identity.IsAdmin() {
		WriteErrorResponse(w, r, s.logger, Forbidden("Acknowledging alerts requires the admin role"))

		return
	}

	idStr := r.PathValue("id")
	if idStr == "" {
		WriteErrorResponse(w, r, s.logger, BadRequest("Missing alert ID"))

		return
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("Invalid alert ID: must be a UUID"))

		return
	}

	if s.store == nil {
		s.logger.ErrorContext(ctx, "Alert acknowledgment requested without a configured store",
			"correlation_id", correlationID,
			"alert_id", id.String(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Storage is not configured"))

		return
	}

	if err := s.store.AcknowledgeAlert(ctx, id, identity.Subject); err != nil {
		if errors.Is(err, dashboard.ErrAlertNotFound) {
			WriteErrorResponse(w, r, s.logger, NotFound("Alert not found"))

			return
		}

		s.logger.ErrorContext(ctx, "Failed to acknowledge alert",
			"correlation_id", correlationID,
			"alert_id", id.String(),
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to acknowledge alert"))

		return
	}

	s.logger.InfoContext(ctx, "Alert acknowledged",
		"correlation_id", correlationID,
		"alert_id", id.String(),
		"acknowledged_by", identity.Subject,
	)

	s.writeJSON(w, r, AcknowledgeResponse{
		ID:             id.String(),
		Acknowledged:   true,
		AcknowledgedBy: identity.Subject,
	})
}
