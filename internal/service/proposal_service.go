package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/gilang-arya/crew-dispatch-api/internal/dto"
	"github.com/gilang-arya/crew-dispatch-api/internal/gateway"
	"github.com/gilang-arya/crew-dispatch-api/internal/models"
	appErrors "github.com/gilang-arya/crew-dispatch-api/pkg/errors"
	"github.com/gilang-arya/crew-dispatch-api/pkg/jobs"
)

// JobTypeResubmit identifies queued gateway retries for approved proposals.
const JobTypeResubmit = "proposal.resubmit"

type proposalStore interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleProposal, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ScheduleProposal, error)
	ListByRun(ctx context.Context, runID string) ([]models.ProposalDetail, error)
	ApplyEdit(ctx context.Context, exec sqlx.ExtContext, id, employeeID string, proposedStart time.Time) error
	RecordDecision(ctx context.Context, exec sqlx.ExtContext, id string, status models.ProposalStatus, decidedBy string, snapshot types.JSONText) error
	MarkCommitted(ctx context.Context, exec sqlx.ExtContext, id string) error
	ListApproved(ctx context.Context) ([]models.ScheduleProposal, error)
}

type proposalEventStore interface {
	FindByID(ctx context.Context, id string) (*models.WorkEvent, error)
	MarkAssigned(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type assignmentWriter interface {
	CreateWithTx(ctx context.Context, exec sqlx.ExtContext, assignment *models.CommittedAssignment) error
}

type groupRecomputer interface {
	RecomputeGroups(ctx context.Context, exec sqlx.ExtContext, runID string, keys ...GroupKey) error
}

type bookingSubmitter interface {
	Submit(ctx context.Context, submission gateway.Submission) error
}

type decisionMetrics interface {
	ObserveDecision(status models.ProposalStatus)
}

// ProposalService owns the review lifecycle: listing a run's proposals,
// applying human edits, recording approve/reject decisions, and committing
// approved proposals through the booking gateway.
type ProposalService struct {
	proposals   proposalStore
	events      proposalEventStore
	assignments assignmentWriter
	conflicts   groupRecomputer
	rules       assignmentValidator
	submitter   bookingSubmitter
	metrics     decisionMetrics
	cache       *CacheService
	tx          txProvider
	validate    *validator.Validate
	retryQueue  *jobs.Queue
	logger      *zap.Logger
}

// NewProposalService wires the review lifecycle service.
func NewProposalService(
	proposals proposalStore,
	events proposalEventStore,
	assignments assignmentWriter,
	conflicts groupRecomputer,
	rules assignmentValidator,
	submitter bookingSubmitter,
	metrics decisionMetrics,
	cache *CacheService,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
) *ProposalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProposalService{
		proposals:   proposals,
		events:      events,
		assignments: assignments,
		conflicts:   conflicts,
		rules:       rules,
		submitter:   submitter,
		metrics:     metrics,
		cache:       cache,
		tx:          tx,
		validate:    validate,
		logger:      logger,
	}
}

// SetRetryQueue attaches the background queue used to retry failed gateway
// submissions. Wired after construction because the queue handler needs the
// service.
func (s *ProposalService) SetRetryQueue(queue *jobs.Queue) {
	s.retryQueue = queue
}

// HandleRetryJob is the queue handler for resubmission jobs.
func (s *ProposalService) HandleRetryJob(ctx context.Context, job jobs.Job) error {
	proposalID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("resubmit job %s carries unexpected payload %T", job.ID, job.Payload)
	}
	_, err := s.Commit(ctx, proposalID)
	return err
}

// List returns the run's proposals for the review surface, served from cache
// when available.
func (s *ProposalService) List(ctx context.Context, runID string) (*dto.ProposalListResponse, error) {
	key := ProposalListKey(runID)
	if s.cache != nil {
		var cached dto.ProposalListResponse
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	proposals, err := s.proposals.ListByRun(ctx, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list proposals")
	}
	response := &dto.ProposalListResponse{RunID: runID, Proposals: proposals}
	if s.cache != nil {
		s.cache.Set(ctx, key, response)
	}
	return response, nil
}

// Find returns one proposal.
func (s *ProposalService) Find(ctx context.Context, id string) (*models.ScheduleProposal, error) {
	proposal, err := s.proposals.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}
	return proposal, nil
}

// Edit revalidates and applies a human change of employee and/or start time.
// A change that breaks any hard constraint is rejected whole; the stored
// proposal keeps its prior state. Conflict groups the proposal left and
// joined are both recomputed inside the same transaction.
func (s *ProposalService) Edit(ctx context.Context, id string, req dto.EditProposalRequest) (*models.ScheduleProposal, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid edit request")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin edit transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	proposal, err := s.proposals.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}
	if !proposal.Status.Editable() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("proposal in status %s cannot be edited", proposal.Status))
	}

	employeeID := proposal.EmployeeID
	if req.EmployeeID != "" {
		employeeID = req.EmployeeID
	}
	start := proposal.ProposedStart
	if req.ProposedStart != nil {
		start = *req.ProposedStart
	}

	event, err := s.events.FindByID(ctx, proposal.EventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	result, err := s.rules.Validate(ctx, employeeID, event, start, proposal.ID)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		ruleErr := &models.RuleViolationError{
			Message:    "edit violates hard constraints",
			Violations: result.Violations,
		}
		return nil, appErrors.Wrap(ruleErr, appErrors.ErrRuleViolation.Code, appErrors.ErrRuleViolation.Status, ruleErr.Message)
	}

	if err := s.proposals.ApplyEdit(ctx, tx, proposal.ID, employeeID, start); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply edit")
	}

	keys := []GroupKey{
		{EmployeeID: proposal.EmployeeID, Date: proposal.ProposedStart},
		{EmployeeID: employeeID, Date: start},
	}
	if err := s.conflicts.RecomputeGroups(ctx, tx, proposal.RunID, keys...); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit edit")
	}
	committed = true

	s.cache.InvalidateRun(ctx, proposal.RunID)
	s.logger.Info("proposal edited",
		zap.String("proposal_id", proposal.ID),
		zap.String("edited_by", req.EditedBy),
		zap.String("employee_id", employeeID),
		zap.Time("proposed_start", start),
	)
	return s.Find(ctx, proposal.ID)
}

// Approve records an approval together with the conflict set visible at
// decision time. Conflicts warn, they never block.
func (s *ProposalService) Approve(ctx context.Context, id string, req dto.DecisionRequest) (*models.ScheduleProposal, error) {
	return s.decide(ctx, id, req, models.ProposalStatusApproved)
}

// Reject records a rejection. The proposal leaves the conflict pool, so its
// former group is recomputed in the same transaction.
func (s *ProposalService) Reject(ctx context.Context, id string, req dto.DecisionRequest) (*models.ScheduleProposal, error) {
	return s.decide(ctx, id, req, models.ProposalStatusRejected)
}

func (s *ProposalService) decide(ctx context.Context, id string, req dto.DecisionRequest, status models.ProposalStatus) (*models.ScheduleProposal, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision request")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin decision transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	proposal, err := s.proposals.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}
	if !proposal.Status.Editable() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("proposal in status %s cannot be decided", proposal.Status))
	}

	// The stored conflicts become the decision snapshot: what the reviewer saw
	// when they decided.
	if err := s.proposals.RecordDecision(ctx, tx, proposal.ID, status, req.DecidedBy, proposal.Conflicts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	if status == models.ProposalStatusRejected {
		key := GroupKey{EmployeeID: proposal.EmployeeID, Date: proposal.ProposedStart}
		if err := s.conflicts.RecomputeGroups(ctx, tx, proposal.RunID, key); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit decision")
	}
	committed = true

	s.cache.InvalidateRun(ctx, proposal.RunID)
	if s.metrics != nil {
		s.metrics.ObserveDecision(status)
	}
	s.logger.Info("proposal decided",
		zap.String("proposal_id", proposal.ID),
		zap.String("status", string(status)),
		zap.String("decided_by", req.DecidedBy),
	)
	return s.Find(ctx, proposal.ID)
}

// Commit pushes an approved proposal to the booking gateway and, only after
// the gateway accepts it, finalises it locally in one transaction: proposal
// to COMMITTED, event flagged assigned, assignment mirrored. A gateway
// failure leaves the proposal APPROVED and schedules a retry.
func (s *ProposalService) Commit(ctx context.Context, id string) (*models.ScheduleProposal, error) {
	proposal, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("proposal in status %s cannot be committed", proposal.Status))
	}

	event, err := s.events.FindByID(ctx, proposal.EventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	submission := gateway.Submission{
		ProposalID: proposal.ID,
		EventID:    proposal.EventID,
		EmployeeID: proposal.EmployeeID,
		Category:   string(event.Category),
		StartAt:    proposal.ProposedStart,
	}
	if err := s.submitter.Submit(ctx, submission); err != nil {
		s.scheduleRetry(proposal.ID)
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin commit transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.proposals.MarkCommitted(ctx, tx, proposal.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "proposal is no longer approved")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark proposal committed")
	}
	if err := s.events.MarkAssigned(ctx, tx, proposal.EventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "event already assigned")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark event assigned")
	}
	assignment := &models.CommittedAssignment{
		ID:         uuid.NewString(),
		EventID:    proposal.EventID,
		EmployeeID: proposal.EmployeeID,
		Category:   event.Category,
		StartAt:    proposal.ProposedStart,
	}
	if err := s.assignments.CreateWithTx(ctx, tx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mirror committed assignment")
	}

	// Committed proposals leave the open pool; heal the group they left.
	key := GroupKey{EmployeeID: proposal.EmployeeID, Date: proposal.ProposedStart}
	if err := s.conflicts.RecomputeGroups(ctx, tx, proposal.RunID, key); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit proposal")
	}
	committed = true

	s.cache.InvalidateRun(ctx, proposal.RunID)
	if s.metrics != nil {
		s.metrics.ObserveDecision(models.ProposalStatusCommitted)
	}
	s.logger.Info("proposal committed",
		zap.String("proposal_id", proposal.ID),
		zap.String("event_id", proposal.EventID),
		zap.String("employee_id", proposal.EmployeeID),
	)
	return s.Find(ctx, proposal.ID)
}

// ResubmitApproved retries every approved-but-uncommitted proposal against
// the gateway. Individual failures are logged and skipped so one sticky
// booking never blocks the sweep.
func (s *ProposalService) ResubmitApproved(ctx context.Context) error {
	approved, err := s.proposals.ListApproved(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approved proposals")
	}
	for _, proposal := range approved {
		if _, err := s.Commit(ctx, proposal.ID); err != nil {
			s.logger.Warn("resubmission failed",
				zap.String("proposal_id", proposal.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *ProposalService) scheduleRetry(proposalID string) {
	if s.retryQueue == nil {
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeResubmit,
		Payload: proposalID,
	}
	if err := s.retryQueue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue resubmission",
			zap.String("proposal_id", proposalID),
			zap.Error(err),
		)
	}
}
