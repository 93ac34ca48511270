package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
	"github.com/gilang-arya/crew-dispatch-api/internal/repository"
	appErrors "github.com/gilang-arya/crew-dispatch-api/pkg/errors"
)

type stubRunLedger struct {
	claimErr  error
	completed bool
	failed    bool
	processed int
	assigned  int
	failCount int
	cause     string
}

func (s *stubRunLedger) Claim(ctx context.Context, trigger models.RunTrigger) (*models.DispatchRun, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	return &models.DispatchRun{
		ID:        "run-1",
		Trigger:   trigger,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}, nil
}

func (s *stubRunLedger) Complete(ctx context.Context, id string, processed, assigned, failed int) error {
	s.completed = true
	s.processed, s.assigned, s.failCount = processed, assigned, failed
	return nil
}

func (s *stubRunLedger) Fail(ctx context.Context, id string, processed, assigned, failed int, cause string) error {
	s.failed = true
	s.processed, s.assigned, s.failCount = processed, assigned, failed
	s.cause = cause
	return nil
}

func (s *stubRunLedger) FindByID(ctx context.Context, id string) (*models.DispatchRun, error) {
	return &models.DispatchRun{ID: id}, nil
}

func (s *stubRunLedger) List(ctx context.Context, limit int) ([]models.DispatchRun, error) {
	return nil, nil
}

type stubEventSource struct {
	events []models.WorkEvent
	err    error
}

func (s *stubEventSource) ListUnassigned(ctx context.Context) ([]models.WorkEvent, error) {
	return s.events, s.err
}

type stubProposalCreator struct {
	created []models.ScheduleProposal
	err     error
}

func (s *stubProposalCreator) Create(ctx context.Context, proposal *models.ScheduleProposal) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, *proposal)
	return nil
}

type stubCandidateProvider struct {
	candidates []models.Employee
}

func (s *stubCandidateProvider) Candidates(ctx context.Context, event *models.WorkEvent, earliestStart time.Time) ([]models.Employee, error) {
	return s.candidates, nil
}

type stubValidator struct {
	legal func(employeeID string, event *models.WorkEvent) bool
	err   error
}

func (s *stubValidator) Validate(ctx context.Context, employeeID string, event *models.WorkEvent, proposedStart time.Time, excludeProposalID string) (models.ValidationResult, error) {
	if s.err != nil {
		return models.ValidationResult{}, s.err
	}
	result := models.NewValidationResult()
	if s.legal != nil && !s.legal(employeeID, event) {
		result.Add(models.ViolationAvailability, "unavailable")
	}
	return result, nil
}

type stubDetector struct {
	detected []string
}

func (s *stubDetector) DetectRun(ctx context.Context, runID string) error {
	s.detected = append(s.detected, runID)
	return nil
}

func futureEvents(n int, category models.EventCategory) []models.WorkEvent {
	base := time.Now().UTC().AddDate(0, 0, 7)
	events := make([]models.WorkEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, models.WorkEvent{
			ID:            fmt.Sprintf("evt-%02d", i+1),
			Name:          fmt.Sprintf("Event %d", i+1),
			Category:      category,
			EarliestStart: base.Add(time.Duration(i) * time.Hour),
			DueAt:         base.AddDate(0, 0, 1),
		})
	}
	return events
}

func TestEngineRunProposesAndCounts(t *testing.T) {
	ledger := &stubRunLedger{}
	events := &stubEventSource{events: futureEvents(10, models.CategoryFlexible)}
	creator := &stubProposalCreator{}
	candidates := &stubCandidateProvider{candidates: []models.Employee{{ID: "emp-1"}, {ID: "emp-2"}}}
	// Events 8 through 10 have no legal candidate at all.
	rules := &stubValidator{legal: func(employeeID string, event *models.WorkEvent) bool {
		switch event.ID {
		case "evt-08", "evt-09", "evt-10":
			return false
		}
		return employeeID == "emp-2"
	}}
	detector := &stubDetector{}

	svc := NewEngineService(ledger, events, creator, candidates, rules, detector, nil, 1, 5, nil)
	run, err := svc.Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 10, run.Processed)
	assert.Equal(t, 7, run.Assigned)
	assert.Equal(t, 3, run.Failed)
	assert.True(t, ledger.completed)
	assert.Equal(t, []string{"run-1"}, detector.detected)

	require.Len(t, creator.created, 7)
	for _, proposal := range creator.created {
		assert.Equal(t, "emp-2", proposal.EmployeeID)
		assert.Equal(t, models.OriginEngine, proposal.Origin)
		assert.Equal(t, models.ProposalStatusProposed, proposal.Status)
	}
}

func TestEngineRunBusy(t *testing.T) {
	ledger := &stubRunLedger{claimErr: repository.ErrRunActive}
	svc := NewEngineService(ledger, &stubEventSource{}, &stubProposalCreator{}, &stubCandidateProvider{}, &stubValidator{}, &stubDetector{}, nil, 1, 5, nil)

	_, err := svc.Run(context.Background(), models.TriggerManual)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBusy.Code, appErrors.FromError(err).Code)
	assert.False(t, ledger.completed)
	assert.False(t, ledger.failed)
}

func TestEngineRunNoCandidates(t *testing.T) {
	ledger := &stubRunLedger{}
	events := &stubEventSource{events: futureEvents(2, models.CategoryFlexible)}
	svc := NewEngineService(ledger, events, &stubProposalCreator{}, &stubCandidateProvider{}, &stubValidator{}, &stubDetector{}, nil, 1, 5, nil)

	run, err := svc.Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Processed)
	assert.Equal(t, 0, run.Assigned)
	assert.Equal(t, 2, run.Failed)
}

func TestEngineRunInfrastructureFailure(t *testing.T) {
	ledger := &stubRunLedger{}
	events := &stubEventSource{events: futureEvents(3, models.CategoryFlexible)}
	candidates := &stubCandidateProvider{candidates: []models.Employee{{ID: "emp-1"}}}
	rules := &stubValidator{err: errors.New("database gone")}

	svc := NewEngineService(ledger, events, &stubProposalCreator{}, candidates, rules, &stubDetector{}, nil, 1, 5, nil)
	run, err := svc.Run(context.Background(), models.TriggerManual)
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.True(t, ledger.failed)
	assert.Equal(t, 1, ledger.processed)
	assert.Contains(t, ledger.cause, "database gone")
}

func TestEngineRunRespectsCandidateBudget(t *testing.T) {
	ledger := &stubRunLedger{}
	events := &stubEventSource{events: futureEvents(1, models.CategoryFlexible)}
	pool := make([]models.Employee, 0, 10)
	for i := 0; i < 10; i++ {
		pool = append(pool, models.Employee{ID: fmt.Sprintf("emp-%02d", i+1)})
	}
	// Only the sixth candidate is legal, one past the budget of five.
	rules := &stubValidator{legal: func(employeeID string, event *models.WorkEvent) bool {
		return employeeID == "emp-06"
	}}

	svc := NewEngineService(ledger, events, &stubProposalCreator{}, &stubCandidateProvider{candidates: pool}, rules, &stubDetector{}, nil, 1, 5, nil)
	run, err := svc.Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0, run.Assigned)
	assert.Equal(t, 1, run.Failed)
}

func TestEngineRunAdvanceNoticeFloor(t *testing.T) {
	ledger := &stubRunLedger{}
	// An event whose window opened in the past keeps its clock time but moves
	// to the advance-notice floor.
	past := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	events := &stubEventSource{events: []models.WorkEvent{{
		ID:            "evt-1",
		Category:      models.CategoryFlexible,
		EarliestStart: past,
		DueAt:         time.Now().UTC().AddDate(0, 0, 30),
	}}}
	creator := &stubProposalCreator{}
	candidates := &stubCandidateProvider{candidates: []models.Employee{{ID: "emp-1"}}}

	svc := NewEngineService(ledger, events, creator, candidates, &stubValidator{}, &stubDetector{}, nil, 2, 5, nil)
	_, err := svc.Run(context.Background(), models.TriggerManual)
	require.NoError(t, err)

	require.Len(t, creator.created, 1)
	proposed := creator.created[0].ProposedStart
	floor := models.DateOnly(time.Now().UTC()).AddDate(0, 0, 2)
	assert.Equal(t, floor.Year(), proposed.Year())
	assert.Equal(t, floor.YearDay(), proposed.YearDay())
	assert.Equal(t, 9, proposed.Hour())
	assert.Equal(t, 30, proposed.Minute())
}
