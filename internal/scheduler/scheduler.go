package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

const (
	defaultInterval = 30 * time.Minute
	refreshTimeout  = 30 * time.Second
)

// Refresher reloads every station catalog.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// Pruner drops expired sessions.
type Pruner interface {
	Prune() int
}

// Scheduler periodically reloads the station catalogs and prunes idle sessions.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	pruner    Pruner
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler. pruner may be nil.
func New(refresher Refresher, pruner Pruner, interval time.Duration, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		refresher: refresher,
		pruner:    pruner,
		interval:  interval,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start schedules the refresh job, runs it once immediately and starts the
// underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = defaultInterval
	}

	if _, err := s.scheduler.Every(interval).StartImmediately().SingletonMode().Do(s.refresh); err != nil {
		return err
	}
	if s.pruner != nil {
		if _, err := s.scheduler.Every(interval).WaitForSchedule().SingletonMode().Do(s.prune); err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) refresh() {
	s.logger.Info("running station catalog refresh")

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if err := s.refresher.RefreshAll(ctx); err != nil {
		s.logger.Error("station catalog refresh failed", "error", err)
		return
	}
	s.logger.Info("station catalog refresh completed")
}

func (s *Scheduler) prune() {
	if n := s.pruner.Prune(); n > 0 {
		s.logger.Info("pruned idle sessions", "count", n)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
