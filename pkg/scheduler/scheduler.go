package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrymomot/subcycle/pkg/metrics"
)

// Job is a unit of periodic work.
type Job func(ctx context.Context) error

// Scheduler runs registered jobs in-process when their schedule is due.
// A failing job is logged and keeps its schedule; a job still running when
// its next occurrence comes due is skipped for that occurrence.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]*entry
	interval time.Duration
	logger   *slog.Logger
	locker   Locker
	lockTTL  time.Duration
	location *time.Location
	now      func() time.Time
	running  bool
	wg       sync.WaitGroup
}

type entry struct {
	name     string
	schedule Schedule
	job      Job
	next     time.Time
	busy     bool
}

// New creates a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:     make(map[string]*entry),
		interval: 30 * time.Second,
		logger:   slog.Default(),
		lockTTL:  10 * time.Minute,
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a named job. The first run is the schedule's next
// occurrence after registration.
func (s *Scheduler) Register(name string, schedule Schedule, job Job) error {
	if name == "" || schedule == nil || job == nil {
		return ErrInvalidJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, name)
	}
	e := &entry{
		name:     name,
		schedule: schedule,
		job:      job,
		next:     schedule.Next(s.clock()),
	}
	s.jobs[name] = e

	s.logger.Info("registered job",
		slog.String("job", name),
		slog.String("schedule", schedule.String()),
		slog.Time("next_run", e.next))
	return nil
}

// Jobs returns registered job names, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NextRun reports when the named job runs next.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return e.next, true
}

// Start checks for due jobs every check interval until ctx is cancelled,
// then waits for in-flight jobs and returns ctx.Err().
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if len(s.jobs) == 0 {
		s.mu.Unlock()
		return ErrNoJobs
	}
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.wg.Wait()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// RunNow executes the named job synchronously, bypassing its schedule and
// the locker. It is meant for operator-triggered runs.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, e)
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock()

	s.mu.Lock()
	for _, e := range s.jobs {
		if now.Before(e.next) {
			continue
		}
		occurrence := e.next
		e.next = e.schedule.Next(now)
		if e.busy {
			s.logger.Warn("job still running, occurrence skipped",
				slog.String("job", e.name),
				slog.Time("occurrence", occurrence))
			continue
		}
		e.busy = true
		s.wg.Add(1)
		go func(e *entry, occurrence time.Time) {
			defer s.wg.Done()
			defer s.release(e)
			s.runOccurrence(ctx, e, occurrence)
		}(e, occurrence)
	}
	s.mu.Unlock()
}

func (s *Scheduler) release(e *entry) {
	s.mu.Lock()
	e.busy = false
	s.mu.Unlock()
}

func (s *Scheduler) runOccurrence(ctx context.Context, e *entry, occurrence time.Time) {
	if s.locker != nil {
		key := "scheduler:" + e.name + ":" + strconv.FormatInt(occurrence.Unix(), 10)
		_, ok, err := s.locker.Acquire(ctx, key, s.lockTTL)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to acquire job lease",
				slog.String("job", e.name),
				slog.String("error", err.Error()))
			return
		}
		if !ok {
			s.logger.DebugContext(ctx, "job occurrence taken by another replica", slog.String("job", e.name))
			return
		}
	}
	if err := s.execute(ctx, e); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.ErrorContext(ctx, "job failed",
			slog.String("job", e.name),
			slog.String("error", err.Error()))
	}
}

func (s *Scheduler) execute(ctx context.Context, e *entry) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", e.name, r)
		}
		metrics.JobRunsTotal.WithLabelValues(e.name, metrics.Outcome(err)).Inc()
		s.logger.InfoContext(ctx, "job finished",
			slog.String("job", e.name),
			slog.Duration("duration", time.Since(start)),
			slog.Bool("ok", err == nil))
	}()
	return e.job(ctx)
}

func (s *Scheduler) clock() time.Time {
	return s.now().In(s.location)
}
