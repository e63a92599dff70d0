package scheduler

import (
	"context"
	"fmt"

	"caixa-imoveis/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs batches on a cron expression until stopped
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler firing runner on the cron expression expr, evaluated in Brazil's time zone.
// A firing that comes while the previous batch is still running is skipped.
func NewScheduler(runner *Runner, expr string, logger *zap.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())

	c := cron.New(
		cron.WithLocation(models.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(logger)))),
	)

	s := &Scheduler{
		cron:   c,
		runner: runner,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := c.AddFunc(expr, s.run); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule %q: %w", expr, err)
	}
	return s, nil
}

// Start starts the cron loop in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop cancels a running batch between regions and waits for it to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	if s.ctx.Err() != nil {
		return
	}
	s.runner.RunOnce(s.ctx)
}
