package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
)

// ProposalRepository is the proposal store: it holds candidate assignments
// through their review lifecycle.
type ProposalRepository struct {
	db *sqlx.DB
}

// NewProposalRepository constructs the repository.
func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

const proposalColumns = `id, run_id, event_id, employee_id, proposed_start, origin, status, conflicts, decision_conflicts, decided_at, decided_by, created_at, updated_at`

// Create inserts a new engine-originated proposal.
func (r *ProposalRepository) Create(ctx context.Context, proposal *models.ScheduleProposal) error {
	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = now
	}
	proposal.UpdatedAt = now
	if len(proposal.Conflicts) == 0 {
		proposal.Conflicts = types.JSONText("[]")
	}
	const query = `INSERT INTO schedule_proposals (id, run_id, event_id, employee_id, proposed_start, origin, status, conflicts, created_at, updated_at)
		VALUES (:id, :run_id, :event_id, :employee_id, :proposed_start, :origin, :status, :conflicts, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, proposal); err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	return nil
}

// FindByID returns a single proposal.
func (r *ProposalRepository) FindByID(ctx context.Context, id string) (*models.ScheduleProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_proposals WHERE id = $1`, proposalColumns)
	var proposal models.ScheduleProposal
	if err := r.db.GetContext(ctx, &proposal, query, id); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// FindByIDForUpdate locks the proposal row inside the edit transaction so a
// concurrent reader sees either the pre-edit or fully-post-edit state.
func (r *ProposalRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ScheduleProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_proposals WHERE id = $1 FOR UPDATE`, proposalColumns)
	var proposal models.ScheduleProposal
	if err := sqlx.GetContext(ctx, exec, &proposal, query, id); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// ListByRun returns the run's proposals enriched for the review surface.
func (r *ProposalRepository) ListByRun(ctx context.Context, runID string) ([]models.ProposalDetail, error) {
	const query = `
SELECT p.id, p.run_id, p.event_id, p.employee_id, p.proposed_start, p.origin, p.status,
       p.conflicts, p.decision_conflicts, p.decided_at, p.decided_by, p.created_at, p.updated_at,
       e.name AS event_name, e.category AS event_category, e.due_at AS event_due_at,
       emp.full_name AS employee_name
FROM schedule_proposals p
JOIN work_events e ON e.id = p.event_id
LEFT JOIN employees emp ON emp.id = p.employee_id
WHERE p.run_id = $1
ORDER BY p.proposed_start ASC, p.id ASC`
	var proposals []models.ProposalDetail
	if err := r.db.SelectContext(ctx, &proposals, query, runID); err != nil {
		return nil, fmt.Errorf("list proposals by run: %w", err)
	}
	return proposals, nil
}

// ListOpenByRun returns the run's open (non-rejected, non-committed)
// proposals for conflict grouping.
func (r *ProposalRepository) ListOpenByRun(ctx context.Context, runID string) ([]models.ScheduleProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_proposals
WHERE run_id = $1 AND status IN ('PROPOSED', 'USER_EDITED', 'APPROVED')
ORDER BY id ASC`, proposalColumns)
	var proposals []models.ScheduleProposal
	if err := r.db.SelectContext(ctx, &proposals, query, runID); err != nil {
		return nil, fmt.Errorf("list open proposals: %w", err)
	}
	return proposals, nil
}

// ListOpenGroup returns the open proposals sharing (employee, calendar date)
// within a run: one soft-conflict group.
func (r *ProposalRepository) ListOpenGroup(ctx context.Context, exec sqlx.ExtContext, runID, employeeID string, date time.Time) ([]models.ScheduleProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_proposals
WHERE run_id = $1 AND employee_id = $2
  AND proposed_start >= $3 AND proposed_start < $4
  AND status IN ('PROPOSED', 'USER_EDITED', 'APPROVED')
ORDER BY id ASC`, proposalColumns)
	day := models.DateOnly(date)
	var proposals []models.ScheduleProposal
	if err := sqlx.SelectContext(ctx, exec, &proposals, query, runID, employeeID, day, day.AddDate(0, 0, 1)); err != nil {
		return nil, fmt.Errorf("list conflict group: %w", err)
	}
	return proposals, nil
}

// UpdateConflicts replaces the conflict annotations of a proposal.
func (r *ProposalRepository) UpdateConflicts(ctx context.Context, exec sqlx.ExtContext, id string, conflicts types.JSONText) error {
	const query = `UPDATE schedule_proposals SET conflicts = $2, updated_at = $3 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, id, conflicts, time.Now().UTC()); err != nil {
		return fmt.Errorf("update proposal conflicts: %w", err)
	}
	return nil
}

// ApplyEdit writes a validated human edit inside the edit transaction.
func (r *ProposalRepository) ApplyEdit(ctx context.Context, exec sqlx.ExtContext, id, employeeID string, proposedStart time.Time) error {
	const query = `UPDATE schedule_proposals
SET employee_id = $2, proposed_start = $3, origin = $4, status = $5, updated_at = $6
WHERE id = $1`
	result, err := exec.ExecContext(ctx, query, id, employeeID, proposedStart, models.OriginHumanEdit, models.ProposalStatusUserEdited, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("apply proposal edit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check edited rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordDecision stores an approve/reject outcome together with the conflict
// set that existed at decision time.
func (r *ProposalRepository) RecordDecision(ctx context.Context, exec sqlx.ExtContext, id string, status models.ProposalStatus, decidedBy string, snapshot types.JSONText) error {
	const query = `UPDATE schedule_proposals
SET status = $2, decided_by = $3, decided_at = $4, decision_conflicts = $5, updated_at = $4
WHERE id = $1`
	result, err := exec.ExecContext(ctx, query, id, status, decidedBy, time.Now().UTC(), snapshot)
	if err != nil {
		return fmt.Errorf("record proposal decision: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check decided rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkCommitted finalises an approved proposal inside the commit transaction.
func (r *ProposalRepository) MarkCommitted(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE schedule_proposals SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	result, err := exec.ExecContext(ctx, query, id, models.ProposalStatusCommitted, time.Now().UTC(), models.ProposalStatusApproved)
	if err != nil {
		return fmt.Errorf("mark proposal committed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check committed rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListApproved returns approved-but-uncommitted proposals for the
// resubmission sweep.
func (r *ProposalRepository) ListApproved(ctx context.Context) ([]models.ScheduleProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_proposals WHERE status = 'APPROVED' ORDER BY decided_at ASC`, proposalColumns)
	var proposals []models.ScheduleProposal
	if err := r.db.SelectContext(ctx, &proposals, query); err != nil {
		return nil, fmt.Errorf("list approved proposals: %w", err)
	}
	return proposals, nil
}

// CountOpenSameDayCategory counts open proposals (any run) holding the
// employee on the date for the given category, excluding one proposal id.
// Used by the same-day single-duty rule.
func (r *ProposalRepository) CountOpenSameDayCategory(ctx context.Context, employeeID string, date time.Time, category models.EventCategory, excludeID string) (int, error) {
	const query = `SELECT COUNT(*)
FROM schedule_proposals p
JOIN work_events e ON e.id = p.event_id
WHERE p.employee_id = $1 AND e.category = $2
  AND p.proposed_start >= $3 AND p.proposed_start < $4
  AND p.status IN ('PROPOSED', 'USER_EDITED', 'APPROVED')
  AND p.id <> $5`
	day := models.DateOnly(date)
	var count int
	if err := r.db.GetContext(ctx, &count, query, employeeID, category, day, day.AddDate(0, 0, 1), excludeID); err != nil {
		return 0, fmt.Errorf("count same-day proposals: %w", err)
	}
	return count, nil
}

// CountOpenBetween counts an employee's open proposals starting inside
// [from, to); combined with committed assignments for workload ordering.
func (r *ProposalRepository) CountOpenBetween(ctx context.Context, employeeID string, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM schedule_proposals
WHERE employee_id = $1 AND proposed_start >= $2 AND proposed_start < $3
  AND status IN ('PROPOSED', 'USER_EDITED', 'APPROVED')`
	var count int
	if err := r.db.GetContext(ctx, &count, query, employeeID, from, to); err != nil {
		return 0, fmt.Errorf("count open proposals between: %w", err)
	}
	return count, nil
}
