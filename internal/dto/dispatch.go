package dto

import (
	"time"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
)

// StartRunRequest asks the engine for a new dispatch run.
type StartRunRequest struct {
	Trigger string `json:"trigger" validate:"required,oneof=MANUAL SCHEDULED"`
}

// EditProposalRequest changes the employee and/or start time of a proposal.
// Either field may be omitted to keep the current value; EditedBy identifies
// the reviewer for the audit trail.
type EditProposalRequest struct {
	EmployeeID    string     `json:"employee_id" validate:"omitempty"`
	ProposedStart *time.Time `json:"proposed_start" validate:"omitempty"`
	EditedBy      string     `json:"edited_by" validate:"required"`
}

// DecisionRequest approves or rejects a proposal.
type DecisionRequest struct {
	DecidedBy string `json:"decided_by" validate:"required"`
}

// RunResponse summarises a dispatch run for the review surface.
type RunResponse struct {
	Run       models.DispatchRun `json:"run"`
	Proposals int                `json:"proposals,omitempty"`
}

// ProposalListResponse is the cached review-surface listing payload.
type ProposalListResponse struct {
	RunID     string                  `json:"run_id"`
	Proposals []models.ProposalDetail `json:"proposals"`
}
