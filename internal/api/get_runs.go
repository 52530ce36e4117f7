package api

import (
	"net/http"
	"strconv"

	"github.com/chronicler-io/chronicler/internal/api/middleware"
	"github.com/chronicler-io/chronicler/internal/dashboard"
)

const (
	defaultRunLimit = 100
	maxRunLimit     = 1000
)

// handleListRuns handles GET /api/runs.
// Returns recent ingestion runs, newest first.
//
// Query Parameters:
//   - limit: 1-1000 (default: 100); out-of-range or unparseable values
//     fall back to the default rather than failing the request
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	limit := parseBoundedInt(r.URL.Query().Get("limit"), defaultRunLimit, maxRunLimit)

	// Degraded mode: no store configured, serve an empty run history
	if s.store == nil {
		s.writeJSON(w, r, RunListResponse{Runs: []RunSummary{}})

		return
	}

	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query runs",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to query runs"))

		return
	}

	s.writeJSON(w, r, RunListResponse{Runs: mapRunSummaries(runs)})
}

// parseBoundedInt parses a positive integer query value, falling back to
// fallback when the value is missing, unparseable, or outside [1, max].
func parseBoundedInt(value string, fallback, max int) int {
	if value == "" {
		return fallback
	}

	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > max {
		return fallback
	}

	return n
}

// mapRunSummaries converts a domain run slice, never returning nil so empty
// histories serialize as [] rather than null.
func mapRunSummaries(runs []dashboard.RunSummary) []RunSummary {
	summaries := make([]RunSummary, 0, len(runs))

	for _, run := range runs {
		summaries = append(summaries, RunSummary{
			ID:                run.ID.String(),
			SourceURL:         run.SourceURL,
			Status:            run.Status,
			RecordsProcessed:  run.RecordsProcessed,
			RecordsFailed:     run.RecordsFailed,
			DuplicatesAvoided: run.DuplicatesAvoided,
			StartedAt:         run.StartedAt,
			FinishedAt:        run.FinishedAt,
		})
	}

	return summaries
}
