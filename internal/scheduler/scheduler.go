// Package scheduler triggers the daily deduction job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/decembrrr/internal/config"
	"github.com/Dan9191/decembrrr/internal/models"
)

const jobTimeout = 4 * time.Minute

// DeductionRunner runs the deduction for the current day.
type DeductionRunner interface {
	RunDailyDeductionToday(ctx context.Context) (*models.DeductionRun, error)
}

// Scheduler owns the cron instance of the deduction job.
type Scheduler struct {
	cron   *cron.Cron
	runner DeductionRunner
	log    *logrus.Logger
	spec   string
}

// NewScheduler registers the deduction job at cfg.DeductionCron, evaluated in
// the default timezone.
func NewScheduler(cfg *config.Config, runner DeductionRunner, log *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location()),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))),
		),
		runner: runner,
		log:    log,
		spec:   cfg.DeductionCron,
	}
	if _, err := s.cron.AddFunc(cfg.DeductionCron, s.runOnce); err != nil {
		return nil, fmt.Errorf("failed to schedule daily deduction %q: %w", cfg.DeductionCron, err)
	}
	return s, nil
}

// Start runs the cron in its own goroutine.
func (s *Scheduler) Start() {
	s.log.Infof("Daily deduction scheduled at %q", s.spec)
	s.cron.Start()
}

// Stop stops the cron. The returned context is done once a running job ends.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	run, err := s.runner.RunDailyDeductionToday(ctx)
	if err != nil {
		s.log.Errorf("Scheduled daily deduction failed: %v", err)
		return
	}
	s.log.WithFields(logrus.Fields{
		"date":      run.Date,
		"processed": run.Processed,
	}).Info("Scheduled daily deduction finished")
}
