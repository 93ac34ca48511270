package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
)

// AssignmentRepository persists the authoritative-schedule mirror written on
// commit and read by the validator and the candidate selector.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// CreateWithTx inserts a committed assignment inside the commit transaction.
func (r *AssignmentRepository) CreateWithTx(ctx context.Context, exec sqlx.ExtContext, assignment *models.CommittedAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO committed_assignments (id, event_id, employee_id, category, start_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := exec.ExecContext(ctx, query, assignment.ID, assignment.EventID, assignment.EmployeeID, assignment.Category, assignment.StartAt, assignment.CreatedAt); err != nil {
		return fmt.Errorf("create committed assignment: %w", err)
	}
	return nil
}

// ListNear returns the employee's committed assignments whose start falls
// within the proximity window around the proposed start.
func (r *AssignmentRepository) ListNear(ctx context.Context, employeeID string, start time.Time, proximity time.Duration) ([]models.CommittedAssignment, error) {
	const query = `SELECT id, event_id, employee_id, category, start_at, created_at
FROM committed_assignments
WHERE employee_id = $1 AND start_at >= $2 AND start_at <= $3
ORDER BY start_at ASC`
	var assignments []models.CommittedAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, employeeID, start.Add(-proximity), start.Add(proximity)); err != nil {
		return nil, fmt.Errorf("list nearby assignments: %w", err)
	}
	return assignments, nil
}

// CountSameDayCategory counts the employee's committed assignments of the
// category on the given calendar date.
func (r *AssignmentRepository) CountSameDayCategory(ctx context.Context, employeeID string, date time.Time, category models.EventCategory) (int, error) {
	const query = `SELECT COUNT(*) FROM committed_assignments
WHERE employee_id = $1 AND category = $2 AND start_at >= $3 AND start_at < $4`
	day := models.DateOnly(date)
	var count int
	if err := r.db.GetContext(ctx, &count, query, employeeID, category, day, day.AddDate(0, 0, 1)); err != nil {
		return 0, fmt.Errorf("count same-day assignments: %w", err)
	}
	return count, nil
}

// CountBetween counts an employee's committed assignments starting inside
// [from, to); used for weekly workload ordering.
func (r *AssignmentRepository) CountBetween(ctx context.Context, employeeID string, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM committed_assignments
WHERE employee_id = $1 AND start_at >= $2 AND start_at < $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, employeeID, from, to); err != nil {
		return 0, fmt.Errorf("count assignments between: %w", err)
	}
	return count, nil
}
