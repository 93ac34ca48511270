package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
)

// RotationRepository reads the date-indexed rotation directory.
type RotationRepository struct {
	db *sqlx.DB
}

// NewRotationRepository constructs the repository.
func NewRotationRepository(db *sqlx.DB) *RotationRepository {
	return &RotationRepository{db: db}
}

// FindByDateAndRole returns the rotation entry for the date/role pair, or
// nil when nobody is on rotation that day.
func (r *RotationRepository) FindByDateAndRole(ctx context.Context, date time.Time, role models.RotationRole) (*models.RotationEntry, error) {
	const query = `SELECT id, date, role, employee_id, created_at
FROM rotation_entries
WHERE date = $1 AND role = $2
LIMIT 1`
	var entry models.RotationEntry
	if err := r.db.GetContext(ctx, &entry, query, models.DateOnly(date), role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}
