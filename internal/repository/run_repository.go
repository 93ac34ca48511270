package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
)

// ErrRunActive is returned by Claim when another run holds the running slot.
var ErrRunActive = errors.New("another dispatch run is active")

// RunRepository is the run ledger: one row per engine invocation, never
// deleted, and the mutual-exclusion point for concurrent runs.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository constructs the repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// runClaimLockKey scopes the advisory lock that serialises run claims.
const runClaimLockKey = int64(0x6372657764697370)

// Claim opens a new run in RUNNING state. Claimants serialise on a
// transaction-scoped advisory lock before checking for an active row; under
// READ COMMITTED a plain conditional insert cannot see a concurrent claim's
// uncommitted row, so two claims racing would both land without the lock.
// The loser sees the winner's committed row and fails fast with ErrRunActive.
func (r *RunRepository) Claim(ctx context.Context, trigger models.RunTrigger) (*models.DispatchRun, error) {
	run := &models.DispatchRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin run claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, runClaimLockKey); err != nil {
		return nil, fmt.Errorf("acquire run claim lock: %w", err)
	}

	var active bool
	if err := tx.GetContext(ctx, &active, `SELECT EXISTS (SELECT 1 FROM dispatch_runs WHERE status = $1)`, models.RunStatusRunning); err != nil {
		return nil, fmt.Errorf("check active run: %w", err)
	}
	if active {
		return nil, ErrRunActive
	}

	const query = `INSERT INTO dispatch_runs (id, trigger_kind, status, started_at, processed, assigned, failed)
VALUES ($1, $2, $3, $4, 0, 0, 0)`
	if _, err := tx.ExecContext(ctx, query, run.ID, run.Trigger, run.Status, run.StartedAt); err != nil {
		return nil, fmt.Errorf("claim dispatch run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit run claim: %w", err)
	}
	return run, nil
}

// Complete closes a run with its final counts.
func (r *RunRepository) Complete(ctx context.Context, id string, processed, assigned, failed int) error {
	const query = `UPDATE dispatch_runs
SET status = $2, finished_at = $3, processed = $4, assigned = $5, failed = $6
WHERE id = $1 AND status = $7`
	return r.finish(ctx, query, id, models.RunStatusCompleted, processed, assigned, failed, nil)
}

// Fail closes a run after an unrecoverable infrastructure error. Counts for
// events already processed are retained.
func (r *RunRepository) Fail(ctx context.Context, id string, processed, assigned, failed int, cause string) error {
	const query = `UPDATE dispatch_runs
SET status = $2, finished_at = $3, processed = $4, assigned = $5, failed = $6, error = $8
WHERE id = $1 AND status = $7`
	return r.finish(ctx, query, id, models.RunStatusFailed, processed, assigned, failed, &cause)
}

func (r *RunRepository) finish(ctx context.Context, query, id string, status models.RunStatus, processed, assigned, failed int, cause *string) error {
	args := []interface{}{id, status, time.Now().UTC(), processed, assigned, failed, models.RunStatusRunning}
	if cause != nil {
		args = append(args, *cause)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("close dispatch run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check closed rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID returns a single run.
func (r *RunRepository) FindByID(ctx context.Context, id string) (*models.DispatchRun, error) {
	const query = `SELECT id, trigger_kind, status, started_at, finished_at, processed, assigned, failed, error
FROM dispatch_runs WHERE id = $1`
	var run models.DispatchRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns the most recent runs for audit and reporting.
func (r *RunRepository) List(ctx context.Context, limit int) ([]models.DispatchRun, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, trigger_kind, status, started_at, finished_at, processed, assigned, failed, error
FROM dispatch_runs
ORDER BY started_at DESC
LIMIT $1`
	var runs []models.DispatchRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list dispatch runs: %w", err)
	}
	return runs, nil
}
