package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Checkpointer is the job run on every tick.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// Scheduler runs pool checkpoints on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	target Checkpointer
	logger *slog.Logger
	ctx    context.Context
}

// New registers target under schedule. The schedule uses the standard five
// field syntax and accepts descriptors such as "@every 1m".
func New(ctx context.Context, schedule string, target Checkpointer, log *slog.Logger) (*Scheduler, error) {
	if target == nil {
		return nil, fmt.Errorf("scheduler: checkpoint target required")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		target: target,
		logger: log,
		ctx:    ctx,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunNow); err != nil {
		return nil, fmt.Errorf("register checkpoint: %w", err)
	}
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("checkpoint scheduler started")
}

// Stop stops the scheduler and waits for a running checkpoint to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("checkpoint scheduler stopped")
}

// RunNow executes one checkpoint immediately.
func (s *Scheduler) RunNow() {
	if err := s.target.Checkpoint(s.ctx); err != nil {
		s.logger.Error("checkpoint failed", slog.Any("error", err))
		return
	}
	s.logger.Debug("checkpoint complete")
}
