package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
	appErrors "github.com/gilang-arya/crew-dispatch-api/pkg/errors"
)

type rosterReader interface {
	ListActive(ctx context.Context) ([]models.Employee, error)
}

type rotationReader interface {
	FindByDateAndRole(ctx context.Context, date time.Time, role models.RotationRole) (*models.RotationEntry, error)
}

type workloadReader interface {
	CountBetween(ctx context.Context, employeeID string, from, to time.Time) (int, error)
}

type proposalLoadReader interface {
	CountOpenBetween(ctx context.Context, employeeID string, from, to time.Time) (int, error)
}

// CandidateService orders eligible employees for an event. Categories with a
// rotation role consult the rotation directory first; everything falls
// through to the general pool ordered by lowest weekly workload, tie-broken
// by id.
type CandidateService struct {
	roster    rosterReader
	rotation  rotationReader
	workload  workloadReader
	proposals proposalLoadReader
	logger    *zap.Logger
}

// NewCandidateService wires the selector.
func NewCandidateService(
	roster rosterReader,
	rotation rotationReader,
	workload workloadReader,
	proposals proposalLoadReader,
	logger *zap.Logger,
) *CandidateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CandidateService{
		roster:    roster,
		rotation:  rotation,
		workload:  workload,
		proposals: proposals,
		logger:    logger,
	}
}

// Candidates returns the ordered candidate list for the event.
func (s *CandidateService) Candidates(ctx context.Context, event *models.WorkEvent, earliestStart time.Time) ([]models.Employee, error) {
	employees, err := s.roster.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	pool := make([]models.Employee, 0, len(employees))
	byID := make(map[string]models.Employee, len(employees))
	for _, employee := range employees {
		byID[employee.ID] = employee
		if event.Category.Permits(employee.Classification) {
			pool = append(pool, employee)
		}
	}

	weekStart := startOfWeek(earliestStart)
	weekEnd := weekStart.AddDate(0, 0, 7)
	loads := make(map[string]int, len(pool))
	for _, employee := range pool {
		committed, err := s.workload.CountBetween(ctx, employee.ID, weekStart, weekEnd)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count committed workload")
		}
		open, err := s.proposals.CountOpenBetween(ctx, employee.ID, weekStart, weekEnd)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count proposed workload")
		}
		loads[employee.ID] = committed + open
	}

	sort.Slice(pool, func(i, j int) bool {
		if loads[pool[i].ID] == loads[pool[j].ID] {
			return pool[i].ID < pool[j].ID
		}
		return loads[pool[i].ID] < loads[pool[j].ID]
	})

	role := event.Category.RotationRole()
	if role == "" {
		return pool, nil
	}

	entry, err := s.rotation.FindByDateAndRole(ctx, earliestStart, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rotation entry")
	}
	if entry == nil {
		return pool, nil
	}
	onRotation, ok := byID[entry.EmployeeID]
	if !ok {
		// Rotation points at an inactive or unknown employee; fall through
		// to the general pool.
		s.logger.Warn("rotation entry skipped",
			zap.String("employee_id", entry.EmployeeID),
			zap.String("role", string(role)),
			zap.String("date", models.DateKey(earliestStart)),
		)
		return pool, nil
	}

	ordered := make([]models.Employee, 0, len(pool)+1)
	ordered = append(ordered, onRotation)
	for _, employee := range pool {
		if employee.ID != onRotation.ID {
			ordered = append(ordered, employee)
		}
	}
	return ordered, nil
}

func startOfWeek(ts time.Time) time.Time {
	day := models.DateOnly(ts)
	offset := (int(day.Weekday()) + 6) % 7 // Monday-based week
	return day.AddDate(0, 0, -offset)
}
