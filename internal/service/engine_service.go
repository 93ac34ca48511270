package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
	"github.com/gilang-arya/crew-dispatch-api/internal/repository"
	appErrors "github.com/gilang-arya/crew-dispatch-api/pkg/errors"
)

type runLedger interface {
	Claim(ctx context.Context, trigger models.RunTrigger) (*models.DispatchRun, error)
	Complete(ctx context.Context, id string, processed, assigned, failed int) error
	Fail(ctx context.Context, id string, processed, assigned, failed int, cause string) error
	FindByID(ctx context.Context, id string) (*models.DispatchRun, error)
	List(ctx context.Context, limit int) ([]models.DispatchRun, error)
}

type unassignedEventReader interface {
	ListUnassigned(ctx context.Context) ([]models.WorkEvent, error)
}

type proposalCreator interface {
	Create(ctx context.Context, proposal *models.ScheduleProposal) error
}

type candidateProvider interface {
	Candidates(ctx context.Context, event *models.WorkEvent, earliestStart time.Time) ([]models.Employee, error)
}

type assignmentValidator interface {
	Validate(ctx context.Context, employeeID string, event *models.WorkEvent, proposedStart time.Time, excludeProposalID string) (models.ValidationResult, error)
}

type runConflictDetector interface {
	DetectRun(ctx context.Context, runID string) error
}

type runMetrics interface {
	ObserveRun(status models.RunStatus, duration time.Duration)
}

// EngineService drives a full dispatch run: claim the running slot, walk the
// unassigned events in deadline order, propose the first legal candidate per
// event, then annotate conflicts. Events that exhaust their candidate budget
// stay unassigned and are retried on the next run.
type EngineService struct {
	runs           runLedger
	events         unassignedEventReader
	proposals      proposalCreator
	candidates     candidateProvider
	rules          assignmentValidator
	conflicts      runConflictDetector
	metrics        runMetrics
	minAdvanceDays int
	maxCandidates  int
	logger         *zap.Logger
}

// NewEngineService wires the scheduling engine.
func NewEngineService(
	runs runLedger,
	events unassignedEventReader,
	proposals proposalCreator,
	candidates candidateProvider,
	rules assignmentValidator,
	conflicts runConflictDetector,
	metrics runMetrics,
	minAdvanceDays, maxCandidates int,
	logger *zap.Logger,
) *EngineService {
	if minAdvanceDays < 0 {
		minAdvanceDays = 0
	}
	if maxCandidates <= 0 {
		maxCandidates = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngineService{
		runs:           runs,
		events:         events,
		proposals:      proposals,
		candidates:     candidates,
		rules:          rules,
		conflicts:      conflicts,
		metrics:        metrics,
		minAdvanceDays: minAdvanceDays,
		maxCandidates:  maxCandidates,
		logger:         logger,
	}
}

// Run executes one dispatch run. At most one run is active at a time; a
// concurrent invocation returns ErrBusy without queuing.
func (s *EngineService) Run(ctx context.Context, trigger models.RunTrigger) (*models.DispatchRun, error) {
	run, err := s.runs.Claim(ctx, trigger)
	if err != nil {
		if errors.Is(err, repository.ErrRunActive) {
			return nil, appErrors.Clone(appErrors.ErrBusy, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open dispatch run")
	}

	s.logger.Info("dispatch run started",
		zap.String("run_id", run.ID),
		zap.String("trigger", string(run.Trigger)),
	)

	processed, assigned, failed, runErr := s.process(ctx, run)
	run.Processed = processed
	run.Assigned = assigned
	run.Failed = failed

	if runErr != nil {
		run.Status = models.RunStatusFailed
		if failErr := s.runs.Fail(ctx, run.ID, processed, assigned, failed, runErr.Error()); failErr != nil {
			s.logger.Error("failed to close dispatch run",
				zap.String("run_id", run.ID),
				zap.Error(failErr),
			)
		}
		s.observe(run)
		return run, appErrors.Wrap(runErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "dispatch run failed")
	}

	if err := s.runs.Complete(ctx, run.ID, processed, assigned, failed); err != nil {
		return run, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close dispatch run")
	}
	run.Status = models.RunStatusCompleted

	s.logger.Info("dispatch run completed",
		zap.String("run_id", run.ID),
		zap.Int("processed", processed),
		zap.Int("assigned", assigned),
		zap.Int("failed", failed),
	)
	s.observe(run)
	return run, nil
}

func (s *EngineService) process(ctx context.Context, run *models.DispatchRun) (processed, assigned, failed int, err error) {
	events, err := s.events.ListUnassigned(ctx)
	if err != nil {
		return 0, 0, 0, err
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].DueAt.Equal(events[j].DueAt) {
			return events[i].DueAt.Before(events[j].DueAt)
		}
		if events[i].Category.Priority() != events[j].Category.Priority() {
			return events[i].Category.Priority() < events[j].Category.Priority()
		}
		return events[i].ID < events[j].ID
	})

	now := time.Now().UTC()
	for i := range events {
		event := events[i]
		processed++

		ok, perr := s.proposeEvent(ctx, run, &event, now)
		if perr != nil {
			return processed, assigned, failed, perr
		}
		if ok {
			assigned++
		} else {
			failed++
		}
	}

	if err := s.conflicts.DetectRun(ctx, run.ID); err != nil {
		return processed, assigned, failed, err
	}
	return processed, assigned, failed, nil
}

func (s *EngineService) proposeEvent(ctx context.Context, run *models.DispatchRun, event *models.WorkEvent, now time.Time) (bool, error) {
	start := s.earliestLegalStart(event, now)
	candidates, err := s.candidates.Candidates(ctx, event, start)
	if err != nil {
		return false, err
	}
	if len(candidates) > s.maxCandidates {
		candidates = candidates[:s.maxCandidates]
	}

	for _, candidate := range candidates {
		result, err := s.rules.Validate(ctx, candidate.ID, event, start, "")
		if err != nil {
			return false, err
		}
		if !result.Valid {
			continue
		}
		proposal := &models.ScheduleProposal{
			RunID:         run.ID,
			EventID:       event.ID,
			EmployeeID:    candidate.ID,
			ProposedStart: start,
			Origin:        models.OriginEngine,
			Status:        models.ProposalStatusProposed,
		}
		if err := s.proposals.Create(ctx, proposal); err != nil {
			return false, err
		}
		return true, nil
	}

	s.logger.Warn("no legal candidate for event",
		zap.String("run_id", run.ID),
		zap.String("event_id", event.ID),
		zap.String("category", string(event.Category)),
		zap.Int("candidates_tried", len(candidates)),
	)
	return false, nil
}

// earliestLegalStart keeps the event's own clock time but pushes the date out
// to the advance-notice floor when the event starts too soon.
func (s *EngineService) earliestLegalStart(event *models.WorkEvent, now time.Time) time.Time {
	floor := models.DateOnly(now).AddDate(0, 0, s.minAdvanceDays)
	start := event.EarliestStart
	if models.DateOnly(start).Before(floor) {
		start = time.Date(floor.Year(), floor.Month(), floor.Day(),
			start.Hour(), start.Minute(), start.Second(), 0, start.Location())
	}
	return start
}

func (s *EngineService) observe(run *models.DispatchRun) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveRun(run.Status, time.Since(run.StartedAt))
}

// FindRun returns a single run from the ledger.
func (s *EngineService) FindRun(ctx context.Context, id string) (*models.DispatchRun, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run")
	}
	return run, nil
}

// ListRuns returns the most recent runs.
func (s *EngineService) ListRuns(ctx context.Context, limit int) ([]models.DispatchRun, error) {
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list runs")
	}
	return runs, nil
}
