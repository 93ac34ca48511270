package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
)

// WorkEventRepository reads work events from the external event source table
// and writes back the assigned flag on commit.
type WorkEventRepository struct {
	db *sqlx.DB
}

// NewWorkEventRepository constructs the repository.
func NewWorkEventRepository(db *sqlx.DB) *WorkEventRepository {
	return &WorkEventRepository{db: db}
}

// FindByID returns a single work event.
func (r *WorkEventRepository) FindByID(ctx context.Context, id string) (*models.WorkEvent, error) {
	const query = `SELECT id, name, category, earliest_start, due_at, location, assigned, created_at FROM work_events WHERE id = $1`
	var event models.WorkEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// ListUnassigned returns all events still waiting for an assignment.
func (r *WorkEventRepository) ListUnassigned(ctx context.Context) ([]models.WorkEvent, error) {
	const query = `SELECT id, name, category, earliest_start, due_at, location, assigned, created_at
FROM work_events
WHERE assigned = FALSE
ORDER BY due_at ASC, id ASC`
	var events []models.WorkEvent
	if err := r.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("list unassigned events: %w", err)
	}
	return events, nil
}

// MarkAssigned flips the assigned flag inside the commit transaction.
func (r *WorkEventRepository) MarkAssigned(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE work_events SET assigned = TRUE WHERE id = $1 AND assigned = FALSE`
	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark event assigned: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check assigned rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
