package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
	appErrors "github.com/gilang-arya/crew-dispatch-api/pkg/errors"
)

type conflictProposalStore interface {
	ListOpenByRun(ctx context.Context, runID string) ([]models.ScheduleProposal, error)
	ListOpenGroup(ctx context.Context, exec sqlx.ExtContext, runID, employeeID string, date time.Time) ([]models.ScheduleProposal, error)
	UpdateConflicts(ctx context.Context, exec sqlx.ExtContext, id string, conflicts types.JSONText) error
}

type conflictEventReader interface {
	FindByID(ctx context.Context, id string) (*models.WorkEvent, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// GroupKey identifies one soft-conflict group: the open proposals holding
// the same employee on the same calendar date within a run.
type GroupKey struct {
	EmployeeID string
	Date       time.Time
}

// ConflictService annotates open proposals with advisory double-booking
// records. Conflicts never block saving or approval; annotations for a group
// are always replaced as a set so neither side goes stale.
type ConflictService struct {
	proposals conflictProposalStore
	events    conflictEventReader
	tx        txProvider
	logger    *zap.Logger
}

// NewConflictService wires the detector.
func NewConflictService(proposals conflictProposalStore, events conflictEventReader, tx txProvider, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{proposals: proposals, events: events, tx: tx, logger: logger}
}

// DetectRun recomputes conflict annotations for every open proposal in the
// run in one transaction.
func (s *ConflictService) DetectRun(ctx context.Context, runID string) error {
	open, err := s.proposals.ListOpenByRun(ctx, runID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open proposals")
	}

	groups := make(map[string][]models.ScheduleProposal)
	for _, proposal := range open {
		key := proposal.EmployeeID + "|" + models.DateKey(proposal.ProposedStart)
		groups[key] = append(groups[key], proposal)
	}

	names := newEventNameCache(s.events)
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin conflict transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, members := range groups {
		if err = s.annotateGroup(ctx, tx, members, names); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit conflict annotations")
	}
	return nil
}

// RecomputeGroups rebuilds the annotations of the given groups using the
// supplied executor, so edit transactions can fold the recompute into their
// own atomic unit. A proposal that left a group is healed by recomputing the
// group it left alongside the one it joined.
func (s *ConflictService) RecomputeGroups(ctx context.Context, exec sqlx.ExtContext, runID string, keys ...GroupKey) error {
	names := newEventNameCache(s.events)
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		dedupe := key.EmployeeID + "|" + models.DateKey(key.Date)
		if seen[dedupe] {
			continue
		}
		seen[dedupe] = true

		members, err := s.proposals.ListOpenGroup(ctx, exec, runID, key.EmployeeID, key.Date)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conflict group")
		}
		if err := s.annotateGroup(ctx, exec, members, names); err != nil {
			return err
		}
	}
	return nil
}

func (s *ConflictService) annotateGroup(ctx context.Context, exec sqlx.ExtContext, members []models.ScheduleProposal, names *eventNameCache) error {
	for _, member := range members {
		records := make([]models.ConflictRecord, 0, len(members)-1)
		for _, other := range members {
			if other.ID == member.ID {
				continue
			}
			name, err := names.lookup(ctx, other.EventID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conflicting event")
			}
			date := models.DateKey(other.ProposedStart)
			records = append(records, models.ConflictRecord{
				OtherProposalID: other.ID,
				EmployeeID:      other.EmployeeID,
				Date:            date,
				Detail:          fmt.Sprintf("also proposed for %q on %s", name, date),
			})
		}
		if err := s.proposals.UpdateConflicts(ctx, exec, member.ID, models.EncodeConflicts(records)); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store conflict annotations")
		}
	}
	return nil
}

type eventNameCache struct {
	events conflictEventReader
	known  map[string]string
}

func newEventNameCache(events conflictEventReader) *eventNameCache {
	return &eventNameCache{events: events, known: make(map[string]string)}
}

func (c *eventNameCache) lookup(ctx context.Context, eventID string) (string, error) {
	if name, ok := c.known[eventID]; ok {
		return name, nil
	}
	event, err := c.events.FindByID(ctx, eventID)
	if err != nil {
		return "", err
	}
	c.known[eventID] = event.Name
	return event.Name, nil
}
