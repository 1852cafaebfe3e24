// Package scheduler runs the engine's periodic jobs: leaderboard cache
// warming, presence pruning and abandoned session cleanup. All jobs run
// on fixed intervals; there is no cron grammar to parse.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

var (
	// ErrNilJob is returned when registering a nil job.
	ErrNilJob = errors.New("scheduler: nil job")
	// ErrNilSchedule is returned when registering a nil schedule.
	ErrNilSchedule = errors.New("scheduler: nil schedule")
	// ErrJobAlreadyExists is returned when a job name is registered twice.
	ErrJobAlreadyExists = errors.New("scheduler: job already registered")
	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("scheduler: already running")
)

// Job is a unit of periodic background work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context carries the per-run timeout
	// and is cancelled when the scheduler stops.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule decides when a job runs next.
type Schedule interface {
	// Next returns the first run time strictly after t.
	Next(t time.Time) time.Time

	// String returns a human-readable representation of the schedule.
	String() string
}

// SchedulerConfig contains configuration for the Scheduler.
type SchedulerConfig struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Timezone for schedule calculations (default: UTC).
	Timezone *time.Location

	// MaxConcurrentJobs caps how many jobs run at the same time.
	MaxConcurrentJobs int

	// JobTimeout bounds a single run. Zero means no bound beyond the
	// scheduler's lifetime.
	JobTimeout time.Duration
}

// DefaultSchedulerConfig returns sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:            slog.Default(),
		Timezone:          time.UTC,
		MaxConcurrentJobs: 5,
		JobTimeout:        time.Minute,
	}
}

type registration struct {
	job      Job
	schedule Schedule
}

// Scheduler runs registered jobs on their schedules.
type Scheduler struct {
	logger     *slog.Logger
	timezone   *time.Location
	jobTimeout time.Duration
	slots      chan struct{}

	mu      sync.Mutex
	jobs    map[string]registration
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler with the given configuration.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = 5
	}

	return &Scheduler{
		logger:     config.Logger,
		timezone:   config.Timezone,
		jobTimeout: config.JobTimeout,
		slots:      make(chan struct{}, config.MaxConcurrentJobs),
		jobs:       make(map[string]registration),
	}
}

// Register adds a job. Registration after Start is rejected.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	s.jobs[name] = registration{job: job, schedule: schedule}

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"description", job.Description(),
	)
	return nil
}

// Start launches one loop per registered job. The loops stop when the
// given context is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	for name, reg := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, name, reg)
	}

	s.logger.Info("scheduler started", "jobs_count", len(s.jobs))
	return nil
}

// Stop cancels all job loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, name string, reg registration) {
	defer s.wg.Done()

	timer := time.NewTimer(s.untilNext(reg.schedule))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.execute(ctx, name, reg.job)
			timer.Reset(s.untilNext(reg.schedule))
		}
	}
}

func (s *Scheduler) untilNext(schedule Schedule) time.Duration {
	now := time.Now().In(s.timezone)
	d := time.Until(schedule.Next(now))
	if d < 0 {
		d = 0
	}
	return d
}

// execute runs one job holding a concurrency slot. A panicking job is
// logged and treated as a failed run; the loop keeps going.
func (s *Scheduler) execute(ctx context.Context, name string, job Job) {
	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		return
	}

	runCtx := ctx
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	err := s.run(runCtx, job)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("job failed",
			"job", name,
			"duration", duration.String(),
			"error", err,
		)
		return
	}
	s.logger.Info("job completed",
		"job", name,
		"duration", duration.String(),
	)
}

func (s *Scheduler) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return job.Run(ctx)
}
