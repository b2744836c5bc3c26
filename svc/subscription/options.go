package subscription

import (
	"log/slog"
	"time"
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithTrialDays sets the trial length. Non-positive values are ignored.
func WithTrialDays(days int) Option {
	return func(m *Manager) {
		if days > 0 {
			m.trialDays = days
		}
	}
}

// WithDispatcher sets the receiver of committed changes.
func WithDispatcher(d Dispatcher) Option {
	return func(m *Manager) {
		if d != nil {
			m.dispatcher = d
		}
	}
}

// WithRenewalWindow sets how long before the period end a payment renews
// the period. Payments earlier than that only confirm the current period.
func WithRenewalWindow(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.renewalWindow = d
		}
	}
}
