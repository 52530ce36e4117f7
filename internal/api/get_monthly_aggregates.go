package api

import (
	"net/http"

	"github.com/chronicler-io/chronicler/internal/api/middleware"
)

const (
	defaultMonths = 12
	maxMonths     = 60
)

// handleMonthlyAggregates handles GET /api/runs/monthly.
// Returns the monthly ingestion rollup, newest month first, as a bare array.
//
// Query Parameters:
//   - months: 1-60 (default: 12); out-of-range or unparseable values fall
//     back to the default rather than failing the request
func (s *Server) handleMonthlyAggregates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	months := parseBoundedInt(r.URL.Query().Get("months"), defaultMonths, maxMonths)

	// Degraded mode: no store configured, serve an empty rollup
	if s.store == nil {
		s.writeJSON(w, r, []MonthlyAggregate{})

		return
	}

	aggregates, err := s.store.MonthlyAggregates(ctx, months)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query monthly aggregates",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to query monthly aggregates"))

		return
	}

	rows := make([]MonthlyAggregate, 0, len(aggregates))
	for _, agg := range aggregates {
		rows = append(rows, MonthlyAggregate{
			Month:               agg.Month,
			RecordsIngested:     agg.RecordsIngested,
			RecordsWithWarnings: agg.RecordsWithWarnings,
		})
	}

	s.writeJSON(w, r, rows)
}
