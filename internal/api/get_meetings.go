package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/chronicler-io/chronicler/internal/api/middleware"
	"github.com/chronicler-io/chronicler/internal/dashboard"
)

type (
	// meetingListParams holds parsed query parameters for the meetings listing.
	meetingListParams struct {
		workgroup *string
		dateFrom  *time.Time
		dateTo    *time.Time
		search    *string
		page      int
		pageSize  int
	}

	// paramError represents a parameter validation error.
	paramError struct {
		param string
		msg   string
	}
)

const (
	// Pagination defaults and limits.
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
	minPageSize     = 1
)

func (e *paramError) Error() string {
	return "Invalid parameter '" + e.param + "': " + e.msg
}

// handleListMeetings handles GET /api/meetings.
// Returns a paginated list of meeting summaries with optional filtering.
//
// Query Parameters:
//   - workgroup: exact workgroup name (case-insensitive)
//   - date_from, date_to: YYYY-MM-DD bounds on meeting_date (inclusive)
//   - search: case-insensitive substring over workgroup and title
//   - page: >= 1 (default: 1)
//   - page_size: 1-100 (default: 50)
//
// Response: MeetingListResponse sorted by ingested_at DESC NULLS LAST,
// meeting_date DESC NULLS LAST.
func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	// Parse query parameters
	params, err := parseMeetingListParams(r)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, UnprocessableEntity(err.Error()))

		return
	}

	// Degraded mode: no store configured, serve an empty page
	if s.store == nil {
		s.writeJSON(w, r, MeetingListResponse{
			Items:      []MeetingSummary{},
			Total:      0,
			Page:       params.page,
			PageSize:   params.pageSize,
			TotalPages: 0,
		})

		return
	}

	filter := buildMeetingFilter(params)

	// Query meetings from store (with database-level pagination)
	meetings, total, err := s.store.ListMeetings(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query meetings",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to query meetings"))

		return
	}

	s.writeJSON(w, r, MeetingListResponse{
		Items:      mapMeetingSummaries(meetings),
		Total:      total,
		Page:       params.page,
		PageSize:   params.pageSize,
		TotalPages: totalPages(total, params.pageSize),
	})
}

// parseMeetingListParams parses and validates query parameters.
func parseMeetingListParams(r *http.Request) (*meetingListParams, error) {
	q := r.URL.Query()

	params := &meetingListParams{
		page:     defaultPage,
		pageSize: defaultPageSize,
	}

	if workgroup := q.Get("workgroup"); workgroup != "" {
		params.workgroup = &workgroup
	}

	if search := q.Get("search"); search != "" {
		params.search = &search
	}

	// Parse date bounds (YYYY-MM-DD)
	if dateFrom := q.Get("date_from"); dateFrom != "" {
		t, err := time.Parse(meetingDateLayout, dateFrom)
		if err != nil {
			return nil, &paramError{param: "date_from", msg: "must be a valid YYYY-MM-DD date"}
		}

		params.dateFrom = &t
	}

	if dateTo := q.Get("date_to"); dateTo != "" {
		t, err := time.Parse(meetingDateLayout, dateTo)
		if err != nil {
			return nil, &paramError{param: "date_to", msg: "must be a valid YYYY-MM-DD date"}
		}

		params.dateTo = &t
	}

	// Parse page
	if pageStr := q.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, &paramError{param: "page", msg: "must be a valid integer"}
		}

		if page < 1 {
			return nil, &paramError{param: "page", msg: "must be >= 1"}
		}

		params.page = page
	}

	// Parse page_size
	if sizeStr := q.Get("page_size"); sizeStr != "" {
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return nil, &paramError{param: "page_size", msg: "must be a valid integer"}
		}

		if size < minPageSize || size > maxPageSize {
			return nil, &paramError{param: "page_size", msg: "must be between 1 and 100"}
		}

		params.pageSize = size
	}

	return params, nil
}

// buildMeetingFilter creates a dashboard.MeetingFilter from parsed parameters.
func buildMeetingFilter(params *meetingListParams) *dashboard.MeetingFilter {
	return &dashboard.MeetingFilter{
		Workgroup: params.workgroup,
		DateFrom:  params.dateFrom,
		DateTo:    params.dateTo,
		Search:    params.search,
		Page:      params.page,
		PageSize:  params.pageSize,
	}
}

// totalPages computes the page count for a result set.
func totalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}

	return (total + pageSize - 1) / pageSize
}
