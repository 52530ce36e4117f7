package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/chronicler-io/chronicler/internal/dashboard"
)

// Compile-time assertion: MeetingStore serves the dashboard read interface.
var _ dashboard.Store = (*MeetingStore)(nil)

// maxAlertRows bounds every alert listing regardless of the lookback window.
const maxAlertRows = 100

// GetKPIs returns the aggregate snapshot from mv_ingestion_kpis. The view
// holds a single row; an empty (never refreshed) view yields the zero
// snapshot with a 100.0 success rate.
func (s *MeetingStore) GetKPIs(ctx context.Context) (*dashboard.KPIs, error) {
	query := `
		SELECT
			total_ingested,
			sources_count,
			success_rate,
			duplicates_avoided,
			last_run_timestamp
		FROM mv_ingestion_kpis
		LIMIT 1
	`

	kpis := &dashboard.KPIs{SuccessRate: 100.0}

	var lastRun sql.NullTime

	err := s.conn.QueryRowContext(ctx, query).Scan(
		&kpis.TotalIngested,
		&kpis.SourcesCount,
		&kpis.SuccessRate,
		&kpis.DuplicatesAvoided,
		&lastRun,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return kpis, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query KPIs: %w", err)
	}

	if lastRun.Valid {
		kpis.LastRunTimestamp = &lastRun.Time
	}

	return kpis, nil
}

// ListMeetings returns one page of meeting summaries from
// meeting_summary_view plus the total match count.
//
// Uses COUNT(*) OVER() to get the total in the same query.
func (s *MeetingStore) ListMeetings(
	ctx context.Context,
	filter *dashboard.MeetingFilter,
) ([]dashboard.MeetingSummary, int, error) {
	query, args := buildMeetingQuery(filter, true)

	return s.queryMeetingSummaries(ctx, query, args)
}

// ExportMeetings returns every summary matching the filter, unpaged, for
// the export endpoint.
func (s *MeetingStore) ExportMeetings(
	ctx context.Context,
	filter *dashboard.MeetingFilter,
) ([]dashboard.MeetingSummary, int, error) {
	query, args := buildMeetingQuery(filter, false)

	return s.queryMeetingSummaries(ctx, query, args)
}

func (s *MeetingStore) queryMeetingSummaries(
	ctx context.Context,
	query string,
	args []any,
) ([]dashboard.MeetingSummary, int, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query meetings: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	summaries := make([]dashboard.MeetingSummary, 0)
	total := 0

	for rows.Next() {
		summary, rowTotal, err := scanMeetingSummary(rows)
		if err != nil {
			return nil, 0, err
		}

		total = rowTotal

		summaries = append(summaries, *summary)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate meetings: %w", err)
	}

	return summaries, total, nil
}

type meetingSummaryScanner interface {
	Scan(dest ...any) error
}

func scanMeetingSummary(row meetingSummaryScanner) (*dashboard.MeetingSummary, int, error) {
	var (
		summary    dashboard.MeetingSummary
		ingestedAt sql.NullTime
		total      int
	)

	err := row.Scan(
		&summary.ID,
		&summary.SourceName,
		&summary.Workgroup,
		&summary.MeetingDate,
		&ingestedAt,
		&summary.Title,
		&summary.ValidationWarningsCount,
		&summary.HasMissingFields,
		&total,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan meeting summary: %w", err)
	}

	if ingestedAt.Valid {
		summary.IngestedAt = &ingestedAt.Time
	}

	return &summary, total, nil
}

// buildMeetingQuery assembles the listing query with dynamic filter
// conditions and positional parameters.
func buildMeetingQuery(filter *dashboard.MeetingFilter, paged bool) (string, []any) {
	baseQuery := `
		SELECT
			id,
			source_name,
			workgroup,
			meeting_date,
			ingested_at,
			title,
			validation_warnings_count,
			has_missing_fields,
			COUNT(*) OVER() AS total_count
		FROM meeting_summary_view
	`

	conditions, args, paramIndex := buildMeetingFilterConditions(filter)
	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	baseQuery += " ORDER BY ingested_at DESC NULLS LAST, meeting_date DESC NULLS LAST"

	if paged && filter != nil {
		offset := (filter.Page - 1) * filter.PageSize
		baseQuery += fmt.Sprintf(" LIMIT $%d OFFSET $%d", paramIndex, paramIndex+1)
		args = append(args, filter.PageSize, offset)
	}

	return baseQuery, args
}

func buildMeetingFilterConditions(filter *dashboard.MeetingFilter) ([]string, []any, int) {
	if filter == nil {
		return nil, nil, 1
	}

	var conditions []string

	var args []any

	paramIndex := 1

	if filter.Workgroup != nil {
		conditions = append(conditions, fmt.Sprintf("workgroup ILIKE $%d", paramIndex))
		args = append(args, *filter.Workgroup)
		paramIndex++
	}

	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("meeting_date >= $%d", paramIndex))
		args = append(args, *filter.DateFrom)
		paramIndex++
	}

	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("meeting_date <= $%d", paramIndex))
		args = append(args, *filter.DateTo)
		paramIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions,
			fmt.Sprintf("(workgroup ILIKE $%d OR title ILIKE $%d)", paramIndex, paramIndex+1))
		pattern := "%" + *filter.Search + "%"
		args = append(args, pattern, pattern)
		paramIndex += 2
	}

	return conditions, args, paramIndex
}

// GetMeetingDetail returns the full detail payload for one meeting,
// joining the summary view with the raw document on the meetings table.
func (s *MeetingStore) GetMeetingDetail(ctx context.Context, id uuid.UUID) (*dashboard.MeetingDetail, error) {
	query := `
		SELECT
			v.id,
			v.source_name,
			v.workgroup,
			v.meeting_date,
			v.ingested_at,
			v.title,
			v.validation_warnings_count,
			v.has_missing_fields,
			v.normalized_fields,
			v.missing_fields,
			v.workgroup_id,
			v.source_url,
			v.updated_at,
			v.raw_json_reference,
			m.raw_json
		FROM meeting_summary_view v
		JOIN meetings m ON m.id = v.id
		WHERE v.id = $1
	`

	var (
		detail           dashboard.MeetingDetail
		ingestedAt       sql.NullTime
		updatedAt        sql.NullTime
		normalizedFields sql.NullString
		rawJSON          sql.NullString
		sourceURL        sql.NullString
		missingFields    []string
	)

	err := s.conn.QueryRowContext(ctx, query, id).Scan(
		&detail.ID,
		&detail.SourceName,
		&detail.Workgroup,
		&detail.MeetingDate,
		&ingestedAt,
		&detail.Title,
		&detail.ValidationWarningsCount,
		&detail.HasMissingFields,
		&normalizedFields,
		pq.Array(&missingFields),
		&detail.Provenance.WorkgroupID,
		&sourceURL,
		&updatedAt,
		&detail.RawJSONReference,
		&rawJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dashboard.ErrMeetingNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query meeting %s: %w", id, err)
	}

	if ingestedAt.Valid {
		detail.IngestedAt = &ingestedAt.Time
		detail.Provenance.IngestedAt = &ingestedAt.Time
	}

	if updatedAt.Valid {
		detail.Provenance.UpdatedAt = &updatedAt.Time
	}

	if sourceURL.Valid {
		detail.Provenance.SourceURL = sourceURL.String
	}

	if normalizedFields.Valid {
		detail.NormalizedFields = json.RawMessage(normalizedFields.String)
	}

	if rawJSON.Valid {
		detail.RawJSON = json.RawMessage(rawJSON.String)
	}

	detail.MissingFields = missingFields

	return &detail, nil
}

// ListRuns returns the most recent ingestion runs, newest first.
func (s *MeetingStore) ListRuns(ctx context.Context, limit int) ([]dashboard.RunSummary, error) {
	query := `
		SELECT
			id,
			source_url,
			status,
			records_processed,
			records_failed,
			duplicates_avoided,
			started_at,
			finished_at
		FROM ingestion_run_view
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := s.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	runs := make([]dashboard.RunSummary, 0, limit)

	for rows.Next() {
		var (
			run        dashboard.RunSummary
			finishedAt sql.NullTime
		)

		err := rows.Scan(
			&run.ID,
			&run.SourceURL,
			&run.Status,
			&run.RecordsProcessed,
			&run.RecordsFailed,
			&run.DuplicatesAvoided,
			&run.StartedAt,
			&finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if finishedAt.Valid {
			run.FinishedAt = &finishedAt.Time
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// MonthlyAggregates returns up to months rows of mv_ingestion_monthly,
// newest month first.
func (s *MeetingStore) MonthlyAggregates(ctx context.Context, months int) ([]dashboard.MonthlyAggregate, error) {
	query := `
		SELECT month, records_ingested, records_with_warnings
		FROM mv_ingestion_monthly
		ORDER BY month DESC
		LIMIT $1
	`

	rows, err := s.conn.QueryContext(ctx, query, months)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly aggregates: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	aggregates := make([]dashboard.MonthlyAggregate, 0, months)

	for rows.Next() {
		var agg dashboard.MonthlyAggregate

		if err := rows.Scan(&agg.Month, &agg.RecordsIngested, &agg.RecordsWithWarnings); err != nil {
			return nil, fmt.Errorf("failed to scan monthly aggregate: %w", err)
		}

		aggregates = append(aggregates, agg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate monthly aggregates: %w", err)
	}

	return aggregates, nil
}

// ListAlerts returns recent error-log entries joined against their
// acknowledgments, newest first, capped at maxAlertRows.
func (s *MeetingStore) ListAlerts(ctx context.Context, filter *dashboard.AlertFilter) ([]dashboard.Alert, error) {
	baseQuery := `
		SELECT
			e.id,
			e.source_url,
			e.error_type,
			e.message,
			e.record_index,
			e.ingestion_run_id,
			e.created_at,
			a.alert_id IS NOT NULL AS acknowledged,
			a.acknowledged_at,
			COALESCE(a.acknowledged_by, '') AS acknowledged_by
		FROM error_log e
		LEFT JOIN alert_acknowledgments a ON a.alert_id = e.id::text
		WHERE e.created_at > NOW() - ($1 * INTERVAL '1 hour')
	`

	args := []any{filter.Hours}
	paramIndex := 2

	if filter.ErrorType != nil {
		baseQuery += fmt.Sprintf(" AND e.error_type = $%d", paramIndex)
		args = append(args, *filter.ErrorType)
		paramIndex++
	}

	if filter.Acknowledged != nil {
		if *filter.Acknowledged {
			baseQuery += " AND a.alert_id IS NOT NULL"
		} else {
			baseQuery += " AND a.alert_id IS NULL"
		}
	}

	baseQuery += fmt.Sprintf(" ORDER BY e.created_at DESC LIMIT %d", maxAlertRows)

	rows, err := s.conn.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	alerts := make([]dashboard.Alert, 0)

	for rows.Next() {
		var (
			alert          dashboard.Alert
			recordIndex    sql.NullInt64
			runID          sql.Null[uuid.UUID]
			acknowledgedAt sql.NullTime
		)

		err := rows.Scan(
			&alert.ID,
			&alert.SourceURL,
			&alert.ErrorType,
			&alert.Message,
			&recordIndex,
			&runID,
			&alert.CreatedAt,
			&alert.Acknowledged,
			&acknowledgedAt,
			&alert.AcknowledgedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		if recordIndex.Valid {
			idx := int(recordIndex.Int64)
			alert.RecordIndex = &idx
		}

		if runID.Valid {
			alert.IngestionRunID = &runID.V
		}

		if acknowledgedAt.Valid {
			alert.AcknowledgedAt = &acknowledgedAt.Time
		}

		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}

// AcknowledgeAlert upserts an acknowledgment for the given error-log entry.
// Re-acknowledging refreshes the timestamp and the acknowledging identity.
func (s *MeetingStore) AcknowledgeAlert(ctx context.Context, alertID uuid.UUID, acknowledgedBy string) error {
	var exists bool

	err := s.conn.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM error_log WHERE id = $1)", alertID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check alert %s: %w", alertID, err)
	}

	if !exists {
		return dashboard.ErrAlertNotFound
	}

	query := `
		INSERT INTO alert_acknowledgments (alert_id, acknowledged_at, acknowledged_by)
		VALUES ($1, NOW(), $2)
		ON CONFLICT (alert_id) DO UPDATE
		SET
			acknowledged_at = NOW(),
			acknowledged_by = EXCLUDED.acknowledged_by
	`

	if _, err := s.conn.ExecContext(ctx, query, alertID.String(), acknowledgedBy); err != nil {
		return fmt.Errorf("failed to acknowledge alert %s: %w", alertID, err)
	}

	return nil
}
