package notify

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

// Notifier tells the organization owner about lifecycle changes. Delivery
// is best effort: callers log returned errors and move on.
type Notifier interface {
	NotifyTrialStarted(ctx context.Context, sub *subscription.Subscription) error
	NotifyTrialExpiring(ctx context.Context, sub *subscription.Subscription, daysLeft int) error
	NotifyTrialExpired(ctx context.Context, sub *subscription.Subscription) error
	NotifySubscriptionActivated(ctx context.Context, sub *subscription.Subscription) error
	NotifySubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) error
	NotifySubscriptionSuspended(ctx context.Context, sub *subscription.Subscription) error
	NotifyPaymentFailed(ctx context.Context, sub *subscription.Subscription, reason string) error
}

// Multi delivers through every notifier in order. Failures are logged and
// do not stop the remaining notifiers.
type Multi struct {
	notifiers []Notifier
	log       *slog.Logger
}

func NewMulti(log *slog.Logger, notifiers ...Notifier) *Multi {
	if log == nil {
		log = slog.Default()
	}
	return &Multi{notifiers: notifiers, log: log.With(logger.Component("notify"))}
}

func (m *Multi) each(ctx context.Context, kind string, sub *subscription.Subscription, fn func(Notifier) error) error {
	for i, n := range m.notifiers {
		if err := fn(n); err != nil {
			m.log.ErrorContext(ctx, "notification delivery failed",
				logger.Event(kind),
				logger.SubscriptionID(sub.ID),
				slog.Int("notifier_index", i),
				logger.Error(err),
			)
		}
	}
	return nil
}

func (m *Multi) NotifyTrialStarted(ctx context.Context, sub *subscription.Subscription) error {
	return m.each(ctx, "trial_started", sub, func(n Notifier) error { return n.NotifyTrialStarted(ctx, sub) })
}

func (m *Multi) NotifyTrialExpiring(ctx context.Context, sub *subscription.Subscription, daysLeft int) error {
	return m.each(ctx, "trial_expiring", sub, func(n Notifier) error { return n.NotifyTrialExpiring(ctx, sub, daysLeft) })
}

func (m *Multi) NotifyTrialExpired(ctx context.Context, sub *subscription.Subscription) error {
	return m.each(ctx, "trial_expired", sub, func(n Notifier) error { return n.NotifyTrialExpired(ctx, sub) })
}

func (m *Multi) NotifySubscriptionActivated(ctx context.Context, sub *subscription.Subscription) error {
	return m.each(ctx, "activated", sub, func(n Notifier) error { return n.NotifySubscriptionActivated(ctx, sub) })
}

func (m *Multi) NotifySubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) error {
	return m.each(ctx, "canceled", sub, func(n Notifier) error { return n.NotifySubscriptionCanceled(ctx, sub) })
}

func (m *Multi) NotifySubscriptionSuspended(ctx context.Context, sub *subscription.Subscription) error {
	return m.each(ctx, "suspended", sub, func(n Notifier) error { return n.NotifySubscriptionSuspended(ctx, sub) })
}

func (m *Multi) NotifyPaymentFailed(ctx context.Context, sub *subscription.Subscription, reason string) error {
	return m.each(ctx, "payment_failed", sub, func(n Notifier) error { return n.NotifyPaymentFailed(ctx, sub, reason) })
}

// Nop drops every notification.
type Nop struct{}

func (Nop) NotifyTrialStarted(context.Context, *subscription.Subscription) error       { return nil }
func (Nop) NotifyTrialExpiring(context.Context, *subscription.Subscription, int) error { return nil }
func (Nop) NotifyTrialExpired(context.Context, *subscription.Subscription) error       { return nil }
func (Nop) NotifySubscriptionActivated(context.Context, *subscription.Subscription) error {
	return nil
}
func (Nop) NotifySubscriptionCanceled(context.Context, *subscription.Subscription) error {
	return nil
}
func (Nop) NotifySubscriptionSuspended(context.Context, *subscription.Subscription) error {
	return nil
}
func (Nop) NotifyPaymentFailed(context.Context, *subscription.Subscription, string) error {
	return nil
}
