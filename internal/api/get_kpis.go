package api

import (
	"net/http"

	"github.com/chronicler-io/chronicler/internal/api/middleware"
)

// handleGetKPIs handles GET /api/kpis.
// Returns the aggregate dashboard snapshot from the KPI materialized view.
//
// An unconfigured store serves the empty snapshot (all zeroes, 100.0 success
// rate) rather than failing, so a dashboard can render before the database
// is wired up.
func (s *Server) handleGetKPIs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	response := KPIResponse{SuccessRate: 100.0}

	if s.store != nil {
		kpis, err := s.store.GetKPIs(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to query KPIs",
				"correlation_id", correlationID,
				"error", err.Error(),
			)
			WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to query KPIs"))

			return
		}

		response = KPIResponse{
			TotalIngested:     kpis.TotalIngested,
			SourcesCount:      kpis.SourcesCount,
			SuccessRate:       kpis.SuccessRate,
			DuplicatesAvoided: kpis.DuplicatesAvoided,
			LastRunTimestamp:  kpis.LastRunTimestamp,
		}
	}

	s.writeJSON(w, r, response)
}
