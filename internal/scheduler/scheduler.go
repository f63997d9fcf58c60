// Package scheduler runs periodic maintenance: tearing down idle session
// providers and enqueueing cleanup tasks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule checks a cron expression or descriptor such as "@every 5m".
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// Job is one periodic unit of work.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context)
}

// Scheduler runs jobs on their cron schedules.
type Scheduler struct {
	logger *zap.Logger

	cron       *cron.Cron
	jobs       []Job
	entries    map[string]cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		logger:  logger.Named("scheduler"),
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers a job. Jobs must be added before Start.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}
	if err := ValidateSchedule(job.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s' for %s: %w", job.Schedule, job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot add %s: scheduler is running", job.Name)
	}
	for _, j := range s.jobs {
		if j.Name == job.Name {
			return fmt.Errorf("job %s already registered", job.Name)
		}
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start schedules every registered job. Jobs receive a context that is
// cancelled by Stop or when ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	var jobCtx context.Context
	jobCtx, s.cancelFunc = context.WithCancel(ctx)

	for _, job := range s.jobs {
		job := job
		entryID, err := s.cron.AddFunc(job.Schedule, func() {
			s.run(jobCtx, job)
		})
		if err != nil {
			s.cancelFunc()
			return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
		s.entries[job.Name] = entryID
	}

	s.cron.Start()
	s.isRunning = true

	for _, job := range s.jobs {
		s.logger.Info("job scheduled",
			zap.String("job", job.Name),
			zap.String("schedule", job.Schedule),
			zap.Timep("next_run", s.nextRunLocked(job.Name)))
	}

	// Monitor for context cancellation
	go func() {
		<-jobCtx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	job.Run(ctx)
	s.logger.Debug("job finished",
		zap.String("job", job.Name),
		zap.Duration("duration", time.Since(start)))
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.cancelFunc()

	// Stop accepting new jobs and wait for running jobs to complete
	ctx := s.cron.Stop()
	<-ctx.Done()

	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}

	s.isRunning = false
	s.cancelFunc = nil

	s.logger.Info("scheduler stopped")
}

// IsRunning returns whether the scheduler is active
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the named job runs next, or nil if it is not scheduled.
func (s *Scheduler) NextRun(name string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextRunLocked(name)
}

func (s *Scheduler) nextRunLocked(name string) *time.Time {
	if !s.isRunning {
		return nil
	}
	id, ok := s.entries[name]
	if !ok {
		return nil
	}
	next := s.cron.Entry(id).Next
	if next.IsZero() {
		return nil
	}
	return &next
}
