package models

import "time"

// RunTrigger records what started a dispatch run.
type RunTrigger string

const (
	TriggerManual    RunTrigger = "MANUAL"
	TriggerScheduled RunTrigger = "SCHEDULED"
)

// RunStatus is the lifecycle state of a dispatch run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// DispatchRun is one row of the run ledger: a single invocation of the batch
// assignment engine. Rows are never deleted; they are the audit trail.
type DispatchRun struct {
	ID         string     `db:"id" json:"id"`
	Trigger    RunTrigger `db:"trigger_kind" json:"trigger"`
	Status     RunStatus  `db:"status" json:"status"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	Processed  int        `db:"processed" json:"processed"`
	Assigned   int        `db:"assigned" json:"assigned"`
	Failed     int        `db:"failed" json:"failed"`
	Error      *string    `db:"error" json:"error,omitempty"`
}
