package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Locker grants exclusive leases across replicas. *redis.Locker satisfies it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCheckInterval sets how often due jobs are checked. Default 30s.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLocker makes every job occurrence run on at most one replica. The
// lease is kept for ttl so late replicas skip the same occurrence.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithLocation evaluates schedules in loc. Default time.UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}
