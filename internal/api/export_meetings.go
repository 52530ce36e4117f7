package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/chronicler-io/chronicler/internal/api/middleware"
	"github.com/chronicler-io/chronicler/internal/dashboard"
)

const (
	// maxExportRows caps the export result size; larger matches get a 413.
	maxExportRows = 10000

	formatCSV  = "csv"
	formatJSON = "json"
)

// exportColumns is the fixed column order for both export formats.
var exportColumns = []string{ //nolint: gochecknoglobals
	"id",
	"source_name",
	"workgroup",
	"meeting_date",
	"ingested_at",
	"title",
	"validation_warnings_count",
	"has_missing_fields",
}

// handleExportMeetings handles POST /api/exports.
// Streams every meeting summary matching the filter as a CSV or JSON
// attachment. Filter semantics match GET /api/meetings, without pagination.
//
// Request body: ExportRequest {format: csv|json, workgroup, date_from, date_to, search}.
//
// Responses:
//   - 200 with Content-Disposition attachment
//   - 413 when more than 10 000 rows match
//   - 422 for an unknown format or malformed dates
func (s *Server) handleExportMeetings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	if !hasJSONContentType(r.Header.Get("Content-Type")) {
		WriteErrorResponse(w, r, s.logger, BadRequest("Content-Type must be application/json"))

		return
	}

	var request ExportRequest

	body := http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	if err := json.NewDecoder(body).Decode(&request); err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("Invalid JSON body: "+err.Error()))

		return
	}

	filter, format, err := parseExportRequest(&request)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, UnprocessableEntity(err.Error()))

		return
	}

	// Degraded mode: no store configured, serve an empty export
	var (
		meetings []dashboard.MeetingSummary
		total    int
	)

	if s.store != nil {
		meetings, total, err = s.store.ExportMeetings(ctx, filter)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to query meetings for export",
				"correlation_id", correlationID,
				"error", err.Error(),
			)
			WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to query meetings"))

			return
		}
	}

	if total > maxExportRows {
		WriteErrorResponse(w, r, s.logger, PayloadTooLarge(
			"Export matches "+strconv.Itoa(total)+" rows; the limit is "+strconv.Itoa(maxExportRows),
		))

		return
	}

	items := mapMeetingSummaries(meetings)

	switch format {
	case formatJSON:
		s.writeExportJSON(w, r, items, total)
	default:
		s.writeExportCSV(w, r, items)
	}
}

// parseExportRequest validates the export request and converts it into a
// dashboard filter plus a normalized format.
func parseExportRequest(request *ExportRequest) (*dashboard.MeetingFilter, string, error) {
	format := request.Format
	if format == "" {
		format = formatCSV
	}

	if format != formatCSV && format != formatJSON {
		return nil, "", &paramError{param: "format", msg: "must be \"csv\" or \"json\""}
	}

	filter := &dashboard.MeetingFilter{}

	if request.Workgroup != "" {
		workgroup := request.Workgroup
		filter.Workgroup = &workgroup
	}

	if request.Search != "" {
		search := request.Search
		filter.Search = &search
	}

	if request.DateFrom != "" {
		t, err := time.Parse(meetingDateLayout, request.DateFrom)
		if err != nil {
			return nil, "", &paramError{param: "date_from", msg: "must be a valid YYYY-MM-DD date"}
		}

		filter.DateFrom = &t
	}

	if request.DateTo != "" {
		t, err := time.Parse(meetingDateLayout, request.DateTo)
		if err != nil {
			return nil, "", &paramError{param: "date_to", msg: "must be a valid YYYY-MM-DD date"}
		}

		filter.DateTo = &t
	}

	return filter, format, nil
}

// writeExportCSV streams the summaries as a CSV attachment with the fixed
// column order.
func (s *Server) writeExportCSV(w http.ResponseWriter, r *http.Request, items []MeetingSummary) {
	correlationID := middleware.GetCorrelationID(r.Context())

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename=meetings_export.csv`)
	w.WriteHeader(http.StatusOK)

	writer := csv.NewWriter(w)

	if err := writer.Write(exportColumns); err != nil {
		s.logger.Error("Failed to write export header",
			"correlation_id", correlationID,
			"error", err.Error(),
		)

		return
	}

	for _, item := range items {
		ingestedAt := ""
		if item.IngestedAt != nil {
			ingestedAt = item.IngestedAt.Format(time.RFC3339)
		}

		record := []string{
			item.ID,
			item.SourceName,
			item.Workgroup,
			item.MeetingDate,
			ingestedAt,
			item.Title,
			strconv.Itoa(item.ValidationWarningsCount),
			strconv.FormatBool(item.HasMissingFields),
		}

		if err := writer.Write(record); err != nil {
			s.logger.Error("Failed to write export row",
				"correlation_id", correlationID,
				"meeting_id", item.ID,
				"error", err.Error(),
			)

			return
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		s.logger.Error("Failed to flush export",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
	}
}

// writeExportJSON writes the summaries as a JSON attachment.
func (s *Server) writeExportJSON(w http.ResponseWriter, r *http.Request, items []MeetingSummary, total int) {
	correlationID := middleware.GetCorrelationID(r.Context())

	data, err := json.Marshal(ExportJSONResponse{Items: items, Total: total})
	if err != nil {
		s.logger.Error("Failed to marshal export",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode export"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename=meetings_export.json`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
