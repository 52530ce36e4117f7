package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/chronicler-io/chronicler/internal/ingestion"
)

// Run accounting methods of MeetingStore, implementing ingestion.RunStore.
// Runs and error-log rows live outside the per-meeting transactions: a run
// row must survive even when every record of its source fails.

// OpenRun inserts a new ingestion run with status running.
func (s *MeetingStore) OpenRun(ctx context.Context, sourceURL string) (uuid.UUID, error) {
	runID := uuid.New()

	query := `
		INSERT INTO ingestion_runs (
			id, source_url, status, records_processed, records_failed, duplicates_avoided, started_at
		)
		VALUES ($1, $2, $3, 0, 0, 0, NOW())
	`

	_, err := s.conn.ExecContext(ctx, query, runID, sourceURL, ingestion.RunStatusRunning)
	if err != nil {
		return uuid.Nil, classifyStoreError(fmt.Errorf("%w: open run for %s: %w", ErrRunAccountingFailed, sourceURL, err))
	}

	return runID, nil
}

// CloseRun finalizes a run with its terminal status and counters.
func (s *MeetingStore) CloseRun(
	ctx context.Context,
	runID uuid.UUID,
	status ingestion.RunStatus,
	stats ingestion.RunStats,
) error {
	query := `
		UPDATE ingestion_runs
		SET
			status = $2,
			records_processed = $3,
			records_failed = $4,
			duplicates_avoided = $5,
			finished_at = NOW()
		WHERE id = $1
	`

	result, err := s.conn.ExecContext(ctx, query,
		runID, status, stats.RecordsProcessed, stats.RecordsFailed, stats.DuplicatesAvoided)
	if err != nil {
		return classifyStoreError(fmt.Errorf("%w: close run %s: %w", ErrRunAccountingFailed, runID, err))
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("%w: run %s not found", ErrRunAccountingFailed, runID)
	}

	return nil
}

// RecordError appends an error-log entry attributed to the given run.
// A nil record index is persisted for source-level failures.
func (s *MeetingStore) RecordError(ctx context.Context, runID uuid.UUID, pipeErr *ingestion.PipelineError) error {
	query := `
		INSERT INTO error_log (id, ingestion_run_id, source_url, error_type, message, record_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	var recordIndex any
	if pipeErr.RecordIndex >= 0 {
		recordIndex = pipeErr.RecordIndex
	}

	var run any
	if runID != uuid.Nil {
		run = runID
	}

	_, err := s.conn.ExecContext(ctx, query,
		uuid.New(), run, pipeErr.SourceURL, string(pipeErr.Type), pipeErr.Message, recordIndex)
	if err != nil {
		return classifyStoreError(fmt.Errorf("%w: record error for run %s: %w", ErrRunAccountingFailed, runID, err))
	}

	return nil
}

// RefreshAggregates invokes the schema's refresh function so the KPI and
// monthly materialized views pick up this pass's rows.
func (s *MeetingStore) RefreshAggregates(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `SELECT refresh_dashboard_aggregates()`)
	if err != nil {
		return classifyStoreError(fmt.Errorf("%w: refresh aggregates: %w", ErrRunAccountingFailed, err))
	}

	return nil
}
