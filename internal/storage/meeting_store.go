package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lib/pq"

	"github.com/chronicler-io/chronicler/internal/config"
	"github.com/chronicler-io/chronicler/internal/ingestion"
)

// Sentinel errors for meeting storage operations.
var (
	// ErrMeetingStoreFailed is returned when a meeting persistence operation fails.
	ErrMeetingStoreFailed = errors.New("meeting storage failed")

	// ErrWorkgroupUpsertFailed is returned when workgroup materialization fails.
	ErrWorkgroupUpsertFailed = errors.New("workgroup upsert failed")

	// ErrRunAccountingFailed is returned when run or error-log persistence fails.
	ErrRunAccountingFailed = errors.New("run accounting failed")

	// Compile-time interface assertions to ensure MeetingStore satisfies the
	// ingestion-side contracts. Early compile errors if the contracts change.

	// MeetingStore implements ingestion.Store (write interface for meetings).
	_ ingestion.Store = (*MeetingStore)(nil)

	// MeetingStore implements ingestion.RunStore (run/error accounting).
	_ ingestion.RunStore = (*MeetingStore)(nil)
)

// MeetingStore implements the ingestion store contracts with a PostgreSQL
// backend. Each meeting is persisted in a single transaction: the meeting
// row plus all nested children land atomically or not at all. All upserts
// are keyed by deterministic UUIDs, so re-ingesting an identical document
// converges to the same row set.
type MeetingStore struct {
	conn   *Connection
	logger *slog.Logger
}

// NewMeetingStore creates a PostgreSQL-backed meeting store.
// Returns ErrNoDatabaseConnection if conn is nil.
func NewMeetingStore(conn *Connection) (*MeetingStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &MeetingStore{
		conn: conn,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *MeetingStore) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

// Close releases the underlying database connection.
func (s *MeetingStore) Close() error {
	return s.conn.Close()
}

// UpsertWorkgroups materializes the given workgroups in one transaction.
// The coordinator calls this before any meeting write of the same run, so
// meeting foreign keys always resolve.
func (s *MeetingStore) UpsertWorkgroups(ctx context.Context, workgroups []ingestion.WorkgroupRow) error {
	if len(workgroups) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return classifyStoreError(fmt.Errorf("%w: failed to begin transaction: %w", ErrWorkgroupUpsertFailed, err))
	}

	defer func() {
		_ = tx.Rollback() // Safe to call even after commit
	}()

	query := `
		INSERT INTO workgroups (id, name, raw_json, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET
			name = EXCLUDED.name,
			raw_json = EXCLUDED.raw_json,
			updated_at = NOW()
	`

	for _, wg := range workgroups {
		rawJSON, err := rawJSONB(wg.Raw)
		if err != nil {
			return fmt.Errorf("%w: workgroup %s: %w", ErrWorkgroupUpsertFailed, wg.ID, err)
		}

		if _, err := tx.ExecContext(ctx, query, wg.ID, wg.Name, rawJSON); err != nil {
			return classifyStoreError(fmt.Errorf("%w: workgroup %s: %w", ErrWorkgroupUpsertFailed, wg.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyStoreError(fmt.Errorf("%w: %w", ErrWorkgroupUpsertFailed, err))
	}

	s.logger.Debug("workgroups materialized", slog.Int("count", len(workgroups)))

	return nil
}

// PersistMeeting upserts one meeting and every nested child atomically.
// Returns duplicate=true when the meeting id already existed, meaning the
// upsert converged onto an existing row set instead of inserting.
func (s *MeetingStore) PersistMeeting(ctx context.Context, rows *ingestion.MeetingRows) (bool, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, classifyStoreError(fmt.Errorf("%w: failed to begin transaction: %w", ErrMeetingStoreFailed, err))
	}

	defer func() {
		_ = tx.Rollback() // Safe to call even after commit
	}()

	duplicate, err := s.upsertMeeting(ctx, tx, &rows.Meeting)
	if err != nil {
		return false, classifyStoreError(fmt.Errorf("%w: %w", ErrMeetingStoreFailed, err))
	}

	for i := range rows.AgendaItems {
		item := &rows.AgendaItems[i]

		if err := s.upsertAgendaItem(ctx, tx, item); err != nil {
			return false, classifyStoreError(fmt.Errorf("%w: %w", ErrMeetingStoreFailed, err))
		}

		for j := range item.ActionItems {
			if err := s.upsertActionItem(ctx, tx, &item.ActionItems[j]); err != nil {
				return false, classifyStoreError(fmt.Errorf("%w: %w", ErrMeetingStoreFailed, err))
			}
		}

		for j := range item.DecisionItems {
			if err := s.upsertDecisionItem(ctx, tx, &item.DecisionItems[j]); err != nil {
				return false, classifyStoreError(fmt.Errorf("%w: %w", ErrMeetingStoreFailed, err))
			}
		}

		for j := range item.DiscussionPoints {
			if err := s.upsertDiscussionPoint(ctx, tx, &item.DiscussionPoints[j]); err != nil {
				return false, classifyStoreError(fmt.Errorf("%w: %w", ErrMeetingStoreFailed, err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, classifyStoreError(fmt.Errorf("%w: %w", ErrMeetingStoreFailed, err))
	}

	s.logger.Debug("meeting persisted",
		slog.String("meeting_id", rows.Meeting.ID.String()),
		slog.Int("agenda_items", len(rows.AgendaItems)),
		slog.Bool("duplicate", duplicate),
	)

	return duplicate, nil
}

// upsertMeeting writes the meetings row. The xmax trick distinguishes a
// fresh insert from a conflict update without a second round trip.
func (s *MeetingStore) upsertMeeting(ctx context.Context, tx *sql.Tx, m *ingestion.MeetingRow) (bool, error) {
	workingDocs, err := rawJSONB(m.WorkingDocs)
	if err != nil {
		return false, fmt.Errorf("meeting %s working_docs: %w", m.ID, err)
	}

	timestampedVideo, err := rawJSONB(m.TimestampedVideo)
	if err != nil {
		return false, fmt.Errorf("meeting %s timestamped_video: %w", m.ID, err)
	}

	tags, err := rawJSONB(m.Tags)
	if err != nil {
		return false, fmt.Errorf("meeting %s tags: %w", m.ID, err)
	}

	rawJSON, err := rawJSONB(m.Raw)
	if err != nil {
		return false, fmt.Errorf("meeting %s raw_json: %w", m.ID, err)
	}

	warnings, err := warningsJSONB(m.Warnings)
	if err != nil {
		return false, fmt.Errorf("meeting %s validation_warnings: %w", m.ID, err)
	}

	query := `
		INSERT INTO meetings (
			id,
			workgroup_id,
			meeting_date,
			meeting_type,
			host,
			documenter,
			attendees,
			purpose,
			video_links,
			working_docs,
			timestamped_video,
			tags,
			validation_warnings,
			source_url,
			raw_json,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET
			workgroup_id = EXCLUDED.workgroup_id,
			meeting_date = EXCLUDED.meeting_date,
			meeting_type = EXCLUDED.meeting_type,
			host = EXCLUDED.host,
			documenter = EXCLUDED.documenter,
			attendees = EXCLUDED.attendees,
			purpose = EXCLUDED.purpose,
			video_links = EXCLUDED.video_links,
			working_docs = EXCLUDED.working_docs,
			timestamped_video = EXCLUDED.timestamped_video,
			tags = EXCLUDED.tags,
			validation_warnings = EXCLUDED.validation_warnings,
			source_url = EXCLUDED.source_url,
			raw_json = EXCLUDED.raw_json,
			updated_at = NOW()
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool

	err = tx.QueryRowContext(
		ctx,
		query,
		m.ID,
		m.WorkgroupID,
		m.Date,
		m.Type,
		m.Host,
		m.Documenter,
		pq.Array(m.Attendees),
		m.Purpose,
		pq.Array(m.VideoLinks),
		workingDocs,
		timestampedVideo,
		tags,
		warnings,
		m.SourceURL,
		rawJSON,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert meeting %s: %w", m.ID, err)
	}

	return !inserted, nil
}

func (s *MeetingStore) upsertAgendaItem(ctx context.Context, tx *sql.Tx, item *ingestion.AgendaItemRow) error {
	rawJSON, err := rawJSONB(item.Raw)
	if err != nil {
		return fmt.Errorf("agenda item %s raw_json: %w", item.ID, err)
	}

	query := `
		INSERT INTO agenda_items (id, meeting_id, status, order_index, raw_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET
			meeting_id = EXCLUDED.meeting_id,
			status = EXCLUDED.status,
			order_index = EXCLUDED.order_index,
			raw_json = EXCLUDED.raw_json,
			updated_at = NOW()
	`

	if _, err := tx.ExecContext(ctx, query, item.ID, item.MeetingID, item.Status, item.OrderIndex, rawJSON); err != nil {
		return fmt.Errorf("failed to upsert agenda item %s: %w", item.ID, err)
	}

	return nil
}

func (s *MeetingStore) upsertActionItem(ctx context.Context, tx *sql.Tx, item *ingestion.ActionItemRow) error {
	rawJSON, err := rawJSONB(item.Raw)
	if err != nil {
		return fmt.Errorf("action item %s raw_json: %w", item.ID, err)
	}

	query := `
		INSERT INTO action_items (id, agenda_item_id, text, assignee, due_date, status, raw_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET
			agenda_item_id = EXCLUDED.agenda_item_id,
			text = EXCLUDED.text,
			assignee = EXCLUDED.assignee,
			due_date = EXCLUDED.due_date,
			status = EXCLUDED.status,
			raw_json = EXCLUDED.raw_json,
			updated_at = NOW()
	`

	_, err = tx.ExecContext(ctx, query,
		item.ID, item.AgendaItemID, item.Text, item.Assignee, item.DueDate, item.Status, rawJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert action item %s: %w", item.ID, err)
	}

	return nil
}

func (s *MeetingStore) upsertDecisionItem(ctx context.Context, tx *sql.Tx, item *ingestion.DecisionItemRow) error {
	rawJSON, err := rawJSONB(item.Raw)
	if err != nil {
		return fmt.Errorf("decision item %s raw_json: %w", item.ID, err)
	}

	query := `
		INSERT INTO decision_items (
			id, agenda_item_id, decision_text, rationale, effect_scope, raw_json, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET
			agenda_item_id = EXCLUDED.agenda_item_id,
			decision_text = EXCLUDED.decision_text,
			rationale = EXCLUDED.rationale,
			effect_scope = EXCLUDED.effect_scope,
			raw_json = EXCLUDED.raw_json,
			updated_at = NOW()
	`

	_, err = tx.ExecContext(ctx, query,
		item.ID, item.AgendaItemID, item.Decision, item.Rationale, item.EffectScope, rawJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert decision item %s: %w", item.ID, err)
	}

	return nil
}

func (s *MeetingStore) upsertDiscussionPoint(ctx context.Context, tx *sql.Tx, point *ingestion.DiscussionPointRow) error {
	rawJSON, err := rawJSONB(point.Raw)
	if err != nil {
		return fmt.Errorf("discussion point %s raw_json: %w", point.ID, err)
	}

	query := `
		INSERT INTO discussion_points (id, agenda_item_id, point_text, order_index, raw_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET
			agenda_item_id = EXCLUDED.agenda_item_id,
			point_text = EXCLUDED.point_text,
			order_index = EXCLUDED.order_index,
			raw_json = EXCLUDED.raw_json,
			updated_at = NOW()
	`

	_, err = tx.ExecContext(ctx, query,
		point.ID, point.AgendaItemID, point.Point, point.OrderIndex, rawJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert discussion point %s: %w", point.ID, err)
	}

	return nil
}

// isDatabaseConnectionError reports whether err is a connection-level
// failure rather than a statement-level one.
//
// PostgreSQL class 08 covers connection exceptions:
//
//	08000 - connection_exception
//	08003 - connection_does_not_exist
//	08006 - connection_failure
//	08001 - sqlclient_unable_to_establish_sqlconnection
//	08004 - sqlserver_rejected_establishment_of_sqlconnection
func isDatabaseConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), "08")
	}

	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}

// classifyStoreError wraps a store failure in a PipelineError carrying the
// taxonomy type the coordinator persists: class 08 and driver connection
// failures become database_connection_error, class 42 sql_syntax_error,
// 23505 unique_violation, everything else unknown_error.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}

	errType := ingestion.ErrorTypeUnknown

	var pqErr *pq.Error

	switch {
	case isDatabaseConnectionError(err):
		errType = ingestion.ErrorTypeDatabaseConnection
	case errors.As(err, &pqErr) && pqErr.Code == "23505":
		errType = ingestion.ErrorTypeUniqueViolation
	case errors.As(err, &pqErr) && strings.HasPrefix(string(pqErr.Code), "42"):
		errType = ingestion.ErrorTypeSQLSyntax
	}

	return &ingestion.PipelineError{
		RecordIndex: -1,
		Type:        errType,
		Message:     err.Error(),
		Err:         err,
	}
}

// rawJSONB converts a raw fragment to a nullable JSONB parameter. Empty
// fragments become SQL NULL.
func rawJSONB(raw json.RawMessage) (sql.NullString, error) {
	if len(raw) == 0 || strings.TrimSpace(string(raw)) == "null" {
		return sql.NullString{Valid: false}, nil // SQL NULL
	}

	if !json.Valid(raw) {
		return sql.NullString{Valid: false}, errors.New("invalid JSON fragment")
	}

	return sql.NullString{String: string(raw), Valid: true}, nil
}

// warningsJSONB marshals the validation warning list; an empty list is
// persisted as an empty JSON array, not NULL, so view counting stays simple.
func warningsJSONB(warnings []string) (string, error) {
	if warnings == nil {
		warnings = []string{}
	}

	data, err := json.Marshal(warnings)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
