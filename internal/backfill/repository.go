package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/scorebook/internal/store"
)

// Repository handles persistence for batch runs and their events.
type Repository struct {
	db *store.Database
}

// NewRepository constructs a Repository.
func NewRepository(db *store.Database) *Repository {
	return &Repository{db: db}
}

const runColumns = `run_id, urls, dry_run, status, status_message, progress_current, progress_total,
	scraped, skipped, empty, failed, last_error, created_at, updated_at, started_at, completed_at`

// CreateRun inserts a new queued run and returns the stored record.
func (r *Repository) CreateRun(ctx context.Context, run *Run) (*Run, error) {
	query := `
		INSERT INTO batch_runs (run_id, urls, dry_run, status, status_message, progress_total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + runColumns

	row := r.db.DB().QueryRowContext(ctx, query,
		run.RunID, run.URLs, run.DryRun, string(run.Status), run.StatusMessage, run.ProgressTotal,
	)

	stored, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return stored, nil
}

// UpdateStatus updates status, message and optional error.
func (r *Repository) UpdateStatus(ctx context.Context, runID string, status RunStatus, message string, lastErr error) error {
	query := `
		UPDATE batch_runs
		SET status = $2::varchar,
			status_message = $3,
			last_error = $4,
			updated_at = NOW(),
			started_at = CASE WHEN $2::varchar = 'running' THEN COALESCE(started_at, NOW()) ELSE started_at END,
			completed_at = CASE WHEN $2::varchar IN ('completed','failed','cancelled') THEN NOW() ELSE completed_at END
		WHERE run_id = $1
	`

	var errText sql.NullString
	if lastErr != nil {
		errText = sql.NullString{String: lastErr.Error(), Valid: true}
	}

	if _, err := r.db.DB().ExecContext(ctx, query, runID, string(status), message, errText); err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

// UpdateProgress updates the progress counters and message.
func (r *Repository) UpdateProgress(ctx context.Context, runID string, current, total int, message string) error {
	query := `
		UPDATE batch_runs
		SET progress_current = $2,
			progress_total = $3,
			status_message = $4,
			updated_at = NOW()
		WHERE run_id = $1
	`

	if _, err := r.db.DB().ExecContext(ctx, query, runID, current, total, message); err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return nil
}

// UpdateCounts stores the outcome tallies of a run.
func (r *Repository) UpdateCounts(ctx context.Context, runID string, s *Summary) error {
	query := `
		UPDATE batch_runs
		SET scraped = $2, skipped = $3, empty = $4, failed = $5, updated_at = NOW()
		WHERE run_id = $1
	`

	if _, err := r.db.DB().ExecContext(ctx, query, runID,
		len(s.Scraped), len(s.Skipped), len(s.Empty), len(s.Failed)); err != nil {
		return fmt.Errorf("update run counts: %w", err)
	}
	return nil
}

// AppendEvent stores a log entry for a run.
func (r *Repository) AppendEvent(ctx context.Context, runID, eventType, url, message string) error {
	query := `
		INSERT INTO batch_run_events (run_id, event_type, url, message)
		VALUES ($1, $2, NULLIF($3, ''), $4)
	`

	if _, err := r.db.DB().ExecContext(ctx, query, runID, eventType, url, message); err != nil {
		return fmt.Errorf("insert run event: %w", err)
	}
	return nil
}

// ResetStuckRuns marks runs left running by a previous process as failed.
func (r *Repository) ResetStuckRuns(ctx context.Context) error {
	_, err := r.db.DB().ExecContext(ctx, `
		UPDATE batch_runs
		SET status = 'failed',
			status_message = 'Interrupted by service restart',
			updated_at = NOW(),
			completed_at = NOW()
		WHERE status IN ('running', 'queued')
	`)
	if err != nil {
		return fmt.Errorf("reset stuck runs: %w", err)
	}
	return nil
}

// GetRun returns one run by id.
func (r *Repository) GetRun(ctx context.Context, runID string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM batch_runs WHERE run_id = $1`

	run, err := scanRun(r.db.DB().QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// GetActiveRun returns the currently running run, if any.
func (r *Repository) GetActiveRun(ctx context.Context) (*Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM batch_runs
		WHERE status = 'running'
		ORDER BY started_at DESC
		LIMIT 1
	`

	run, err := scanRun(r.db.DB().QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active run: %w", err)
	}
	return run, nil
}

// ListRecentRuns returns the most recent runs, newest first.
func (r *Repository) ListRecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM batch_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func scanRun(scanner interface {
	Scan(dest ...interface{}) error
}) (*Run, error) {
	run := &Run{}
	var status string
	err := scanner.Scan(
		&run.RunID,
		&run.URLs,
		&run.DryRun,
		&status,
		&run.StatusMessage,
		&run.ProgressCurrent,
		&run.ProgressTotal,
		&run.Scraped,
		&run.Skipped,
		&run.Empty,
		&run.Failed,
		&run.LastError,
		&run.CreatedAt,
		&run.UpdatedAt,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	return run, nil
}
