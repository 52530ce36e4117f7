package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// progressInterval is how many records pass between progress emissions.
const progressInterval = 10

// ProgressFunc receives per-source ingestion progress. The coordinator calls
// it every few records and once at the end of each source.
type ProgressFunc func(sourceURL string, processed, total int)

// RunEventPublisher receives run lifecycle notifications. Implementations
// must tolerate being called after partial failures; a nil publisher
// disables notification entirely.
type RunEventPublisher interface {
	PublishRunStarted(ctx context.Context, runID uuid.UUID, sourceURL string) error
	PublishRunFinished(ctx context.Context, runID uuid.UUID, sourceURL string, status RunStatus, stats RunStats) error
}

type (
	// Coordinator orchestrates ingestion across sources: one run per source,
	// sequential records, per-record and per-source failure isolation.
	Coordinator struct {
		fetcher   *Fetcher
		writer    *Writer
		store     Store
		runStore  RunStore
		publisher RunEventPublisher
		logger    *slog.Logger

		dryRun         bool
		skipValidation bool
		progress       ProgressFunc
	}

	// CoordinatorOption configures optional coordinator behavior.
	CoordinatorOption func(*Coordinator)

	// SourceResult summarizes one source's run after it closes.
	SourceResult struct {
		SourceURL string
		RunID     uuid.UUID
		Status    RunStatus
		Stats     RunStats
	}

	// Summary aggregates results across all sources of one invocation.
	Summary struct {
		Sources []SourceResult
	}
)

// WithDryRun makes the coordinator validate and derive identity without any
// store calls. No runs are opened and no rows are written.
func WithDryRun() CoordinatorOption {
	return func(c *Coordinator) { c.dryRun = true }
}

// WithSkipValidation bypasses the structure gate. The record gate still
// applies to every record.
func WithSkipValidation() CoordinatorOption {
	return func(c *Coordinator) { c.skipValidation = true }
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) CoordinatorOption {
	return func(c *Coordinator) { c.progress = fn }
}

// WithPublisher installs a run-event publisher.
func WithPublisher(p RunEventPublisher) CoordinatorOption {
	return func(c *Coordinator) { c.publisher = p }
}

// NewCoordinator wires the pipeline components together.
func NewCoordinator(
	fetcher *Fetcher,
	writer *Writer,
	store Store,
	runStore RunStore,
	logger *slog.Logger,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		fetcher:  fetcher,
		writer:   writer,
		store:    store,
		runStore: runStore,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Ingest processes every source in order. A failure on one source never
// aborts the others; cancellation closes the in-flight run as partial and
// returns the context error.
func (c *Coordinator) Ingest(ctx context.Context, sources []string) (*Summary, error) {
	c.logger.Info("ingestion_start",
		slog.Int("source_count", len(sources)),
		slog.Bool("dry_run", c.dryRun),
		slog.Bool("skip_validation", c.skipValidation),
	)
	c.logger.Info("sources_identified", slog.Any("sources", sources))

	summary := &Summary{}

	for _, sourceURL := range sources {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("ingestion cancelled: %w", err)
		}

		result := c.ingestSource(ctx, sourceURL)
		summary.Sources = append(summary.Sources, result)
	}

	var totals RunStats
	for _, r := range summary.Sources {
		totals.RecordsProcessed += r.Stats.RecordsProcessed
		totals.RecordsFailed += r.Stats.RecordsFailed
		totals.DuplicatesAvoided += r.Stats.DuplicatesAvoided
	}

	if !c.dryRun {
		if err := c.runStore.RefreshAggregates(ctx); err != nil {
			c.logger.Error("Failed to refresh dashboard aggregates",
				slog.String("error", err.Error()),
			)
		}
	}

	c.logger.Info("ingestion_complete",
		slog.Int("sources", len(summary.Sources)),
		slog.Int("records_processed", totals.RecordsProcessed),
		slog.Int("records_failed", totals.RecordsFailed),
		slog.Int("duplicates_avoided", totals.DuplicatesAvoided),
	)

	return summary, nil
}

// ingestSource processes one source end to end and always returns a closed
// result. Source-fatal failures close the run as failed; record failures
// only bump counters.
func (c *Coordinator) ingestSource(ctx context.Context, sourceURL string) SourceResult {
	result := SourceResult{SourceURL: sourceURL}

	runID, err := c.openRun(ctx, sourceURL)
	if err != nil {
		c.logger.Error("source_processing_failed",
			slog.String("source_url", sourceURL),
			slog.String("error", err.Error()),
		)

		result.Status = RunStatusFailed

		return result
	}

	result.RunID = runID

	records, err := c.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return c.failSource(ctx, result, err)
	}

	if !c.skipValidation {
		if err := ValidateStructure(records); err != nil {
			c.logger.Warn("structure_validation_failed",
				slog.String("source_url", sourceURL),
				slog.String("error", err.Error()),
			)

			return c.failSource(ctx, result,
				newSourceError(sourceURL, ErrorTypeValidation, err.Error(), err))
		}
	}

	valid, invalid := c.gateRecords(ctx, runID, sourceURL, records)

	if err := c.materializeWorkgroups(ctx, valid); err != nil {
		return c.failSource(ctx, result, err)
	}

	stats := c.writeRecords(ctx, runID, sourceURL, valid, len(records))
	stats.RecordsFailed += invalid

	if c.dryRun {
		// Dry-run reports what validation alone established.
		stats.RecordsProcessed = len(valid)
	} else {
		stats.RecordsProcessed = len(records)
	}

	result.Stats = stats

	switch {
	case ctx.Err() != nil:
		result.Status = RunStatusPartial
	case stats.RecordsFailed == 0:
		result.Status = RunStatusSucceeded
	default:
		result.Status = RunStatusPartial
	}

	c.closeRun(ctx, result)

	return result
}

// gatedRecord pairs a record that passed the record gate with its index in
// the source document. Error attribution and progress always use the
// document index, which diverges from the slice position once any record
// fails the gate.
type gatedRecord struct {
	index  int
	record *MeetingRecord
}

// gateRecords runs the record gate over the document. Invalid records are
// logged and counted; valid records continue to the writer.
func (c *Coordinator) gateRecords(
	ctx context.Context,
	runID uuid.UUID,
	sourceURL string,
	records []json.RawMessage,
) ([]gatedRecord, int) {
	valid := make([]gatedRecord, 0, len(records))
	invalid := 0

	for i, raw := range records {
		record, err := ParseRecord(raw)
		if err != nil {
			invalid++
			c.recordFailure(ctx, runID,
				newRecordError(sourceURL, i, ErrorTypeRecordValidation, err.Error(), err))

			continue
		}

		valid = append(valid, gatedRecord{index: i, record: record})
	}

	return valid, invalid
}

// materializeWorkgroups upserts the unique workgroup set of a document in a
// single transaction, before any meeting referencing them.
func (c *Coordinator) materializeWorkgroups(ctx context.Context, records []gatedRecord) error {
	if c.dryRun || len(records) == 0 {
		return nil
	}

	seen := make(map[uuid.UUID]struct{}, len(records))
	workgroups := make([]WorkgroupRow, 0, len(records))

	for _, g := range records {
		record := g.record
		if _, ok := seen[record.WorkgroupID]; ok {
			continue
		}

		seen[record.WorkgroupID] = struct{}{}
		workgroups = append(workgroups, WorkgroupRow{
			ID:   record.WorkgroupID,
			Name: record.Workgroup,
			Raw:  record.Raw,
		})
	}

	if err := c.store.UpsertWorkgroups(ctx, workgroups); err != nil {
		return fmt.Errorf("materialize workgroups: %w", err)
	}

	return nil
}

// writeRecords drives the writer across gated records sequentially, emitting
// progress every progressInterval document positions and once at the end.
func (c *Coordinator) writeRecords(
	ctx context.Context,
	runID uuid.UUID,
	sourceURL string,
	records []gatedRecord,
	total int,
) RunStats {
	var stats RunStats

	lastEmitted := 0

	for _, g := range records {
		if ctx.Err() != nil {
			break
		}

		if c.dryRun {
			if _, err := c.writer.Materialize(g.record, sourceURL); err != nil {
				stats.RecordsFailed++
			}
		} else if duplicate, err := c.writer.Write(ctx, g.record, sourceURL); err != nil {
			stats.RecordsFailed++
			c.recordFailure(ctx, runID, classifyWriteError(sourceURL, g.index, err))
		} else if duplicate {
			stats.DuplicatesAvoided++
		}

		// Progress counts document positions, so gate failures between valid
		// records still advance the trail.
		if position := g.index + 1; position%progressInterval == 0 {
			c.emitProgress(sourceURL, position, total)
			lastEmitted = position
		}
	}

	if ctx.Err() == nil && total > 0 && lastEmitted != total {
		c.emitProgress(sourceURL, total, total)
	}

	return stats
}

// failSource records a source-fatal error and closes the run as failed.
func (c *Coordinator) failSource(ctx context.Context, result SourceResult, err error) SourceResult {
	c.logger.Error("source_processing_failed",
		slog.String("source_url", result.SourceURL),
		slog.String("error", err.Error()),
	)

	var pipeErr *PipelineError
	if !errors.As(err, &pipeErr) {
		pipeErr = newSourceError(result.SourceURL, ErrorTypeUnknown, err.Error(), err)
	}

	c.recordFailure(ctx, result.RunID, pipeErr)

	result.Status = RunStatusFailed
	c.closeRun(ctx, result)

	return result
}

// openRun opens a run row unless in dry-run mode.
func (c *Coordinator) openRun(ctx context.Context, sourceURL string) (uuid.UUID, error) {
	if c.dryRun {
		return uuid.Nil, nil
	}

	runID, err := c.runStore.OpenRun(ctx, sourceURL)
	if err != nil {
		return uuid.Nil, fmt.Errorf("open run: %w", err)
	}

	if c.publisher != nil {
		if err := c.publisher.PublishRunStarted(ctx, runID, sourceURL); err != nil {
			c.logger.Warn("Failed to publish run_started event",
				slog.String("run_id", runID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	return runID, nil
}

// closeRun finalizes the run row and publishes the finish event. The
// terminal status must land even when the pass was cancelled, so the store
// and publisher calls run on a detached context.
func (c *Coordinator) closeRun(ctx context.Context, result SourceResult) {
	if c.dryRun {
		return
	}

	ctx = context.WithoutCancel(ctx)

	if err := c.runStore.CloseRun(ctx, result.RunID, result.Status, result.Stats); err != nil {
		c.logger.Error("Failed to close ingestion run",
			slog.String("run_id", result.RunID.String()),
			slog.String("source_url", result.SourceURL),
			slog.String("error", err.Error()),
		)
	}

	if c.publisher != nil {
		err := c.publisher.PublishRunFinished(ctx, result.RunID, result.SourceURL, result.Status, result.Stats)
		if err != nil {
			c.logger.Warn("Failed to publish run_finished event",
				slog.String("run_id", result.RunID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// recordFailure logs a pipeline error and persists the error-log row.
func (c *Coordinator) recordFailure(ctx context.Context, runID uuid.UUID, pipeErr *PipelineError) {
	attrs := []any{
		slog.String("source_url", pipeErr.SourceURL),
		slog.String("error_type", string(pipeErr.Type)),
		slog.String("message", pipeErr.Message),
	}
	if pipeErr.RecordIndex >= 0 {
		attrs = append(attrs, slog.Int("record_index", pipeErr.RecordIndex))
	}

	c.logger.Warn("Ingestion error", attrs...)

	if c.dryRun {
		return
	}

	// Error-log rows describing a cancelled pass must still persist.
	ctx = context.WithoutCancel(ctx)

	if err := c.runStore.RecordError(ctx, runID, pipeErr); err != nil {
		c.logger.Error("Failed to persist error log entry",
			slog.String("run_id", runID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// emitProgress invokes the progress callback or logs by default.
func (c *Coordinator) emitProgress(sourceURL string, processed, total int) {
	if c.progress != nil {
		c.progress(sourceURL, processed, total)

		return
	}

	c.logger.Info("Ingestion progress",
		slog.String("source_url", sourceURL),
		slog.Int("records_processed", processed),
		slog.Int("total_records", total),
	)
}

// classifyWriteError maps a writer failure onto the error taxonomy. Store
// implementations classify their own failures via PipelineError; anything
// unclassified is unknown_error.
func classifyWriteError(sourceURL string, index int, err error) *PipelineError {
	var pipeErr *PipelineError
	if errors.As(err, &pipeErr) {
		// Re-attribute to this record while keeping the classification.
		return newRecordError(sourceURL, index, pipeErr.Type, pipeErr.Message, err)
	}

	if errors.Is(err, ErrCircularReference) {
		return newRecordError(sourceURL, index, ErrorTypeCircularReference, err.Error(), err)
	}

	return newRecordError(sourceURL, index, ErrorTypeUnknown, err.Error(), err)
}
