package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ProposalStatus is the review lifecycle state of a proposal.
type ProposalStatus string

const (
	ProposalStatusProposed   ProposalStatus = "PROPOSED"
	ProposalStatusUserEdited ProposalStatus = "USER_EDITED"
	ProposalStatusApproved   ProposalStatus = "APPROVED"
	ProposalStatusRejected   ProposalStatus = "REJECTED"
	ProposalStatusCommitted  ProposalStatus = "COMMITTED"
)

// Open reports whether the proposal still participates in conflict grouping.
// Rejected proposals leave the pool; committed ones are guarded by the hard
// overlap checks instead.
func (s ProposalStatus) Open() bool {
	return s == ProposalStatusProposed || s == ProposalStatusUserEdited || s == ProposalStatusApproved
}

// Editable reports whether a human may still change employee or start time.
func (s ProposalStatus) Editable() bool {
	return s == ProposalStatusProposed || s == ProposalStatusUserEdited
}

// ProposalOrigin records who produced the current employee/time pairing.
type ProposalOrigin string

const (
	OriginEngine    ProposalOrigin = "ENGINE"
	OriginHumanEdit ProposalOrigin = "HUMAN_EDIT"
)

// ConflictRecord flags a soft double-booking against another open proposal.
// Records are symmetric: if A carries one pointing at B, B carries one
// pointing at A.
type ConflictRecord struct {
	OtherProposalID string `json:"other_proposal_id"`
	EmployeeID      string `json:"employee_id"`
	Date            string `json:"date"`
	Detail          string `json:"detail"`
}

// ScheduleProposal is a not-yet-committed candidate assignment awaiting
// human review.
type ScheduleProposal struct {
	ID                string         `db:"id" json:"id"`
	RunID             string         `db:"run_id" json:"run_id"`
	EventID           string         `db:"event_id" json:"event_id"`
	EmployeeID        string         `db:"employee_id" json:"employee_id"`
	ProposedStart     time.Time      `db:"proposed_start" json:"proposed_start"`
	Origin            ProposalOrigin `db:"origin" json:"origin"`
	Status            ProposalStatus `db:"status" json:"status"`
	Conflicts         types.JSONText `db:"conflicts" json:"conflicts"`
	DecisionConflicts types.JSONText `db:"decision_conflicts" json:"decision_conflicts,omitempty"`
	DecidedAt         *time.Time     `db:"decided_at" json:"decided_at,omitempty"`
	DecidedBy         *string        `db:"decided_by" json:"decided_by,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// ConflictRecords decodes the stored conflict annotations.
func (p *ScheduleProposal) ConflictRecords() []ConflictRecord {
	if len(p.Conflicts) == 0 {
		return nil
	}
	var records []ConflictRecord
	if err := json.Unmarshal(p.Conflicts, &records); err != nil {
		return nil
	}
	return records
}

// EncodeConflicts renders conflict records for storage. An empty set encodes
// as an empty JSON array so a cleared group never reads as stale.
func EncodeConflicts(records []ConflictRecord) types.JSONText {
	if records == nil {
		records = []ConflictRecord{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return types.JSONText("[]")
	}
	return types.JSONText(raw)
}

// ProposalDetail enriches a proposal with event fields for the review surface.
type ProposalDetail struct {
	ScheduleProposal
	EventName     string        `db:"event_name" json:"event_name"`
	EventCategory EventCategory `db:"event_category" json:"event_category"`
	EventDueAt    time.Time     `db:"event_due_at" json:"event_due_at"`
	EmployeeName  *string       `db:"employee_name" json:"employee_name,omitempty"`
}
