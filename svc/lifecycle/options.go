package lifecycle

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/subcycle/svc/subscription"
)

type Option func(*Scanner)

func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDispatcher receives the reminder events. Use the same dispatcher as
// the subscription manager.
func WithDispatcher(d subscription.Dispatcher) Option {
	return func(s *Scanner) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithDeduper suppresses repeated reminders for the same subscription and
// offset within a day.
func WithDeduper(d Deduper) Option {
	return func(s *Scanner) { s.deduper = d }
}

func WithGraceDays(days int) Option {
	return func(s *Scanner) {
		if days > 0 {
			s.graceDays = days
		}
	}
}

func WithPastDueDays(days int) Option {
	return func(s *Scanner) {
		if days > 0 {
			s.pastDueDays = days
		}
	}
}

// WithReminderOffsets replaces the default 7, 3 and 1 day reminders.
func WithReminderOffsets(days ...int) Option {
	return func(s *Scanner) {
		if len(days) > 0 {
			s.offsets = days
		}
	}
}

func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}
