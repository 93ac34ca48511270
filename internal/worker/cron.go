package worker

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
	appErrors "github.com/gilang-arya/crew-dispatch-api/pkg/errors"
)

type engineRunner interface {
	Run(ctx context.Context, trigger models.RunTrigger) (*models.DispatchRun, error)
}

type resubmitter interface {
	ResubmitApproved(ctx context.Context) error
}

// Scheduler fires periodic work: scheduled dispatch runs and the sweep that
// retries approved-but-unsubmitted proposals.
type Scheduler struct {
	cron   *cron.Cron
	engine engineRunner
	sweep  resubmitter
	logger *zap.Logger
}

// NewScheduler builds an idle scheduler; jobs are registered before Start.
func NewScheduler(engine engineRunner, sweep resubmitter, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(),
		engine: engine,
		sweep:  sweep,
		logger: logger,
	}
}

// RegisterRun schedules automatic dispatch runs on the given cron expression.
// An overlapping run reports busy and is skipped, not queued.
func (s *Scheduler) RegisterRun(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		run, err := s.engine.Run(ctx, models.TriggerScheduled)
		if err != nil {
			if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrBusy.Code {
				s.logger.Info("scheduled run skipped, another run is active")
				return
			}
			s.logger.Error("scheduled run failed", zap.Error(err))
			return
		}
		s.logger.Info("scheduled run finished",
			zap.String("run_id", run.ID),
			zap.Int("processed", run.Processed),
			zap.Int("assigned", run.Assigned),
			zap.Int("failed", run.Failed),
		)
	})
	return err
}

// RegisterResubmitSweep schedules the gateway retry sweep.
func (s *Scheduler) RegisterResubmitSweep(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.sweep.ResubmitApproved(context.Background()); err != nil {
			s.logger.Error("resubmission sweep failed", zap.Error(err))
		}
	})
	return err
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop halts scheduling and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
