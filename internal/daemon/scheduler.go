package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler wraps gocron for running periodic backups.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// ScheduleBackup registers a periodic backup task and returns the job ID.
func (s *Scheduler) ScheduleBackup(interval time.Duration, task func()) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName("periodic-backup"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic backup job: %w", err)
	}
	return job.ID().String(), nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
