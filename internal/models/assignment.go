package models

import "time"

// CommittedAssignment mirrors one accepted booking in the authoritative
// schedule. Rows are written when the submission gateway accepts a proposal
// and are read by the overlap, same-day and workload checks.
type CommittedAssignment struct {
	ID         string        `db:"id" json:"id"`
	EventID    string        `db:"event_id" json:"event_id"`
	EmployeeID string        `db:"employee_id" json:"employee_id"`
	Category   EventCategory `db:"category" json:"category"`
	StartAt    time.Time     `db:"start_at" json:"start_at"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}
