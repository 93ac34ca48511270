package models

import "time"

// EmployeeClassification is the job classification used for role eligibility.
type EmployeeClassification string

const (
	ClassificationLead       EmployeeClassification = "LEAD"
	ClassificationTechnician EmployeeClassification = "TECHNICIAN"
	ClassificationSupervisor EmployeeClassification = "SUPERVISOR"
)

// Employee is a dispatchable staff member.
type Employee struct {
	ID             string                 `db:"id" json:"id"`
	FullName       string                 `db:"full_name" json:"full_name"`
	Classification EmployeeClassification `db:"classification" json:"classification"`
	Active         bool                   `db:"active" json:"active"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
}
