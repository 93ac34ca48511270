package models

import "time"

// RotationRole is a named duty whose assignee is predetermined by the
// date-indexed rotation directory rather than general eligibility.
type RotationRole string

const (
	RotationRolePrimaryLead     RotationRole = "PRIMARY_LEAD"
	RotationRolePrimaryRotating RotationRole = "PRIMARY_ROTATING"
)

// RotationEntry maps a calendar date and role to the employee on rotation.
type RotationEntry struct {
	ID         string       `db:"id" json:"id"`
	Date       time.Time    `db:"date" json:"date"`
	Role       RotationRole `db:"role" json:"role"`
	EmployeeID string       `db:"employee_id" json:"employee_id"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}
