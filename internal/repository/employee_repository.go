package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
)

// EmployeeRepository reads the staff roster.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// FindByID returns a single employee.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	const query = `SELECT id, full_name, classification, active, created_at FROM employees WHERE id = $1`
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		return nil, err
	}
	return &employee, nil
}

// ListActive returns every active employee ordered by id for determinism.
func (r *EmployeeRepository) ListActive(ctx context.Context) ([]models.Employee, error) {
	const query = `SELECT id, full_name, classification, active, created_at FROM employees WHERE active = TRUE ORDER BY id ASC`
	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query); err != nil {
		return nil, fmt.Errorf("list active employees: %w", err)
	}
	return employees, nil
}
