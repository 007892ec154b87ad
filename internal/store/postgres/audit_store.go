package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/comixlabs/catalog-etl/internal/store"
)

// Begin inserts a running etl_run row and returns its id.
func (s *Store) Begin(ctx context.Context, sourceSystem string, startedAt time.Time) (int64, error) {
	query := `
		INSERT INTO etl_run (source_system, started_at, records_read, records_loaded, status)
		VALUES ($1, $2, 0, 0, $3)
		RETURNING run_id`

	var id int64
	if err := s.db.QueryRow(ctx, query, sourceSystem, startedAt, store.RunRunning).Scan(&id); err != nil {
		return 0, fmt.Errorf("begin audit run: %w", err)
	}
	return id, nil
}

// Finish finalizes the run. The status guard makes finalization exactly-once:
// a second Finish matches zero rows and errors instead of rewriting history.
func (s *Store) Finish(
	ctx context.Context,
	runID int64,
	finishedAt time.Time,
	recordsRead, recordsLoaded int,
	status store.RunStatus,
	notes string,
) error {
	query := `
		UPDATE etl_run
		SET finished_at = $2, records_read = $3, records_loaded = $4, status = $5, notes = $6
		WHERE run_id = $1 AND status = $7`

	var notesParam *string
	if notes != "" {
		notesParam = &notes
	}
	tag, err := s.db.Exec(ctx, query, runID, finishedAt, recordsRead, recordsLoaded, status, notesParam, store.RunRunning)
	if err != nil {
		return fmt.Errorf("finish audit run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish audit run %d: not running (already finalized or missing)", runID)
	}
	return nil
}

// GetRun loads a single run or returns store.ErrNotFound.
func (s *Store) GetRun(ctx context.Context, runID int64) (store.AuditRun, error) {
	query := `
		SELECT run_id, source_system, started_at, finished_at, records_read, records_loaded, status, notes
		FROM etl_run
		WHERE run_id = $1`

	var run store.AuditRun
	err := s.db.QueryRow(ctx, query, runID).Scan(
		&run.ID,
		&run.SourceSystem,
		&run.StartedAt,
		&run.FinishedAt,
		&run.RecordsRead,
		&run.RecordsLoaded,
		&run.Status,
		&run.Notes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.AuditRun{}, store.ErrNotFound
	}
	if err != nil {
		return store.AuditRun{}, fmt.Errorf("get audit run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest-first, optionally filtered by status.
func (s *Store) ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.AuditRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT run_id, source_system, started_at, finished_at, records_read, records_loaded, status, notes
		FROM etl_run
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY run_id DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit runs: %w", err)
	}
	defer rows.Close()

	var runs []store.AuditRun
	for rows.Next() {
		var run store.AuditRun
		if err := rows.Scan(
			&run.ID,
			&run.SourceSystem,
			&run.StartedAt,
			&run.FinishedAt,
			&run.RecordsRead,
			&run.RecordsLoaded,
			&run.Status,
			&run.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan audit run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit runs: %w", err)
	}
	return runs, nil
}
