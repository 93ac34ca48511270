package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
)

// AvailabilityRepository reads the availability directory: weekly windows
// plus time-off intervals. Read-only to the core.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListWindows returns every active weekly window for the employee.
func (r *AvailabilityRepository) ListWindows(ctx context.Context, employeeID string) ([]models.AvailabilityWindow, error) {
	const query = `SELECT id, employee_id, day_of_week, start_minute, end_minute, active, created_at
FROM availability_windows
WHERE employee_id = $1 AND active = TRUE
ORDER BY day_of_week ASC, start_minute ASC`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, employeeID); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	return windows, nil
}

// ListTimeOffCovering returns the time-off intervals that contain the date.
func (r *AvailabilityRepository) ListTimeOffCovering(ctx context.Context, employeeID string, date time.Time) ([]models.TimeOffInterval, error) {
	const query = `SELECT id, employee_id, start_date, end_date, created_at
FROM time_off_intervals
WHERE employee_id = $1 AND start_date <= $2 AND end_date >= $2
ORDER BY start_date ASC`
	var intervals []models.TimeOffInterval
	if err := r.db.SelectContext(ctx, &intervals, query, employeeID, models.DateOnly(date)); err != nil {
		return nil, fmt.Errorf("list time off: %w", err)
	}
	return intervals, nil
}
