package lifecycle

import (
	"context"
	"errors"

	"github.com/dmitrymomot/subcycle/pkg/scheduler"
)

const (
	JobExpiration = "subscription-expiration"
	JobReminders  = "trial-reminders"
)

// Schedules of the lifecycle jobs.
type Schedules struct {
	Expiration scheduler.Schedule
	Reminders  scheduler.Schedule
}

// DefaultSchedules runs expiration at 02:00 and reminders at 08:00.
func DefaultSchedules() Schedules {
	return Schedules{
		Expiration: scheduler.DailyAt(2, 0),
		Reminders:  scheduler.DailyAt(8, 0),
	}
}

// Register adds both scans to sch. A scan with item failures still counts
// as a successful run; only query failures fail the job.
func (s *Scanner) Register(sch *scheduler.Scheduler, schedules Schedules) error {
	return errors.Join(
		sch.Register(JobExpiration, schedules.Expiration, func(ctx context.Context) error {
			_, err := s.RunExpiration(ctx)
			return err
		}),
		sch.Register(JobReminders, schedules.Reminders, func(ctx context.Context) error {
			_, err := s.RunReminders(ctx)
			return err
		}),
	)
}
