package daemon

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/nightlybuilder/internal/config"
	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
)

// Scheduler wraps gocron with the single periodic run job of the daemon.
type Scheduler struct {
	scheduler gocron.Scheduler

	mu  sync.Mutex
	job gocron.Job
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for a running job.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// Schedule replaces the run job with one following cfg. Runs never overlap:
// a tick that fires while the previous run is still going is skipped.
func (s *Scheduler) Schedule(cfg config.DaemonConfig, task func()) error {
	def, err := jobDefinition(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job != nil {
		if err := s.scheduler.RemoveJob(s.job.ID()); err != nil {
			slog.Warn("Failed to remove previous schedule", logfields.ScheduleID(s.job.ID().String()), logfields.Error(err))
		}
		s.job = nil
	}

	job, err := s.scheduler.NewJob(def,
		gocron.NewTask(task),
		gocron.WithName(string(cfg.Workflow)+"-run"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to schedule run").
			WithContext("schedule", Describe(cfg)).Build()
	}
	s.job = job
	slog.Info("Scheduled run",
		logfields.ScheduleID(job.ID().String()),
		logfields.Workflow(string(cfg.Workflow)),
		slog.String("schedule", Describe(cfg)))
	return nil
}

// RunNow starts the scheduled job immediately.
func (s *Scheduler) RunNow() error {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return errors.DaemonError("no run scheduled").Build()
	}
	return job.RunNow()
}

// NextRun reports when the job fires next.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return time.Time{}, false
	}
	next, err := job.NextRun()
	if err != nil || next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

func jobDefinition(cfg config.DaemonConfig) (gocron.JobDefinition, error) {
	if cfg.Schedule != "" {
		return gocron.CronJob(cfg.Schedule, false), nil
	}
	every, err := time.ParseDuration(cfg.Interval)
	if err != nil || every <= 0 {
		return nil, errors.ValidationError("invalid daemon interval").
			WithContext("interval", cfg.Interval).Build()
	}
	return gocron.DurationJob(every), nil
}

// Describe renders the schedule of cfg for logs and the status endpoint.
func Describe(cfg config.DaemonConfig) string {
	if cfg.Schedule != "" {
		return "cron " + cfg.Schedule
	}
	return "every " + cfg.Interval
}
