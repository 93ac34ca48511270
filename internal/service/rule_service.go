package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
	appErrors "github.com/gilang-arya/crew-dispatch-api/pkg/errors"
)

type ruleEmployeeReader interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
}

type availabilityReader interface {
	ListWindows(ctx context.Context, employeeID string) ([]models.AvailabilityWindow, error)
	ListTimeOffCovering(ctx context.Context, employeeID string, date time.Time) ([]models.TimeOffInterval, error)
}

type committedScheduleReader interface {
	ListNear(ctx context.Context, employeeID string, start time.Time, proximity time.Duration) ([]models.CommittedAssignment, error)
	CountSameDayCategory(ctx context.Context, employeeID string, date time.Time, category models.EventCategory) (int, error)
}

type openProposalCounter interface {
	CountOpenSameDayCategory(ctx context.Context, employeeID string, date time.Time, category models.EventCategory, excludeID string) (int, error)
}

// RuleService is the constraint validator: it decides whether an
// (employee, event, start) triple is legal. Every check runs on every call
// so the caller sees the complete violation list, and any violation blocks
// persistence.
type RuleService struct {
	employees        ruleEmployeeReader
	availability     availabilityReader
	committed        committedScheduleReader
	proposals        openProposalCounter
	overlapProximity time.Duration
	logger           *zap.Logger
}

// NewRuleService wires the validator.
func NewRuleService(
	employees ruleEmployeeReader,
	availability availabilityReader,
	committed committedScheduleReader,
	proposals openProposalCounter,
	overlapProximity time.Duration,
	logger *zap.Logger,
) *RuleService {
	if overlapProximity <= 0 {
		overlapProximity = 2 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleService{
		employees:        employees,
		availability:     availability,
		committed:        committed,
		proposals:        proposals,
		overlapProximity: overlapProximity,
		logger:           logger,
	}
}

// Validate runs the five hard checks in their fixed order. excludeProposalID
// keeps an edited proposal from colliding with its own prior state; the
// engine passes an empty string.
func (s *RuleService) Validate(ctx context.Context, employeeID string, event *models.WorkEvent, proposedStart time.Time, excludeProposalID string) (models.ValidationResult, error) {
	result := models.NewValidationResult()

	employee, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}

	if err := s.checkTimeOff(ctx, employeeID, proposedStart, &result); err != nil {
		return result, err
	}
	if err := s.checkAvailability(ctx, employeeID, proposedStart, &result); err != nil {
		return result, err
	}
	if err := s.checkSameDayDuty(ctx, employeeID, event, proposedStart, excludeProposalID, &result); err != nil {
		return result, err
	}
	if err := s.checkScheduleOverlap(ctx, employeeID, proposedStart, &result); err != nil {
		return result, err
	}
	s.checkRoleEligibility(employee, event, &result)

	if !result.Valid {
		s.logger.Debug("hard constraints violated",
			zap.String("employee_id", employeeID),
			zap.String("event_id", event.ID),
			zap.Int("violations", len(result.Violations)),
		)
	}
	return result, nil
}

func (s *RuleService) checkTimeOff(ctx context.Context, employeeID string, proposedStart time.Time, result *models.ValidationResult) error {
	intervals, err := s.availability.ListTimeOffCovering(ctx, employeeID, proposedStart)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time off")
	}
	if len(intervals) > 0 {
		result.Add(models.ViolationTimeOff, fmt.Sprintf("employee is on time off on %s", models.DateKey(proposedStart)))
	}
	return nil
}

func (s *RuleService) checkAvailability(ctx context.Context, employeeID string, proposedStart time.Time, result *models.ValidationResult) error {
	windows, err := s.availability.ListWindows(ctx, employeeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability windows")
	}
	for _, window := range windows {
		if window.Covers(proposedStart) {
			return nil
		}
	}
	result.Add(models.ViolationAvailability, fmt.Sprintf("no active availability window covers %s %s",
		models.DayName(proposedStart.Weekday()), proposedStart.Format("15:04")))
	return nil
}

func (s *RuleService) checkSameDayDuty(ctx context.Context, employeeID string, event *models.WorkEvent, proposedStart time.Time, excludeProposalID string, result *models.ValidationResult) error {
	if !event.Category.SameDayExclusive() {
		return nil
	}
	committed, err := s.committed.CountSameDayCategory(ctx, employeeID, proposedStart, event.Category)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count committed same-day duties")
	}
	open, err := s.proposals.CountOpenSameDayCategory(ctx, employeeID, proposedStart, event.Category, excludeProposalID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count open same-day duties")
	}
	if committed+open > 0 {
		result.Add(models.ViolationSameDayDuty, fmt.Sprintf("employee already holds a %s duty on %s", event.Category, models.DateKey(proposedStart)))
	}
	return nil
}

func (s *RuleService) checkScheduleOverlap(ctx context.Context, employeeID string, proposedStart time.Time, result *models.ValidationResult) error {
	nearby, err := s.committed.ListNear(ctx, employeeID, proposedStart, s.overlapProximity)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed schedule")
	}
	if len(nearby) > 0 {
		result.Add(models.ViolationScheduleOverlap, fmt.Sprintf("committed booking within %s of proposed start", s.overlapProximity))
	}
	return nil
}

func (s *RuleService) checkRoleEligibility(employee *models.Employee, event *models.WorkEvent, result *models.ValidationResult) {
	if !event.Category.Permits(employee.Classification) {
		result.Add(models.ViolationRoleEligibility, fmt.Sprintf("classification %s is not eligible for %s events", employee.Classification, event.Category))
	}
}
