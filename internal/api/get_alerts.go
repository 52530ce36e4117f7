package api

import (
	"net/http"
	"strconv"

	"github.com/chronicler-io/chronicler/internal/api/middleware"
	"github.com/chronicler-io/chronicler/internal/dashboard"
)

const (
	defaultAlertHours = 24
	maxAlertHours     = 168
)

// handleListAlerts handles GET /api/alerts.
// Returns recent error-log entries joined against their acknowledgments.
//
// Query Parameters:
//   - hours: lookback window, 1-168 (default: 24); out-of-range values fall
//     back to the default
//   - error_type: exact error taxonomy value (e.g. "record_validation_error")
//   - acknowledged: "true" | "false"
//
// Non-admin callers that do not pass acknowledged see only unacknowledged
// alerts; admins see everything by default.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	filter := parseAlertFilter(r)

	// Degraded mode: no store configured, serve an empty alert feed
	if s.store == nil {
		s.writeJSON(w, r, AlertListResponse{Alerts: []Alert{}})

		return
	}

	alerts, err := s.store.ListAlerts(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query alerts",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to query alerts"))

		return
	}

	s.writeJSON(w, r, AlertListResponse{Alerts: mapAlerts(alerts)})
}

// parseAlertFilter builds the alert filter from query parameters and caller
// role. Unparseable values degrade to defaults.
func parseAlertFilter(r *http.Request) *dashboard.AlertFilter {
	q := r.URL.Query()

	filter := &dashboard.AlertFilter{
		Hours: parseBoundedInt(q.Get("hours"), defaultAlertHours, maxAlertHours),
	}

	if errorType := q.Get("error_type"); errorType != "" {
		filter.ErrorType = &errorType
	}

	if ackStr := q.Get("acknowledged"); ackStr != "" {
		if ack, err := strconv.ParseBool(ackStr); err == nil {
			filter.Acknowledged = &ack
		}
	}

	// Non-admin callers default to the unacknowledged feed
	if filter.Acknowledged == nil {
		identity, ok := middleware.GetIdentity(r.Context())
		if !ok || !identity.IsAdmin() {
			unacknowledged := false
			filter.Acknowledged = &unacknowledged
		}
	}

	return filter
}

// mapAlerts converts a domain alert slice, never returning nil so empty
// feeds serialize as [] rather than null.
func mapAlerts(alerts []dashboard.Alert) []Alert {
	rows := make([]Alert, 0, len(alerts))

	for _, alert := range alerts {
		row := Alert{
			ID:             alert.ID.String(),
			SourceURL:      alert.SourceURL,
			ErrorType:      alert.ErrorType,
			Message:        alert.Message,
			RecordIndex:    alert.RecordIndex,
			CreatedAt:      alert.CreatedAt,
			Acknowledged:   alert.Acknowledged,
			AcknowledgedAt: alert.AcknowledgedAt,
			AcknowledgedBy: alert.AcknowledgedBy,
		}

		if alert.IngestionRunID != nil {
			row.IngestionRunID = alert.IngestionRunID.String()
		}

		rows = append(rows, row)
	}

	return rows
}
