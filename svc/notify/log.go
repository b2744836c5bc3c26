package notify

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log.With(logger.Component("notify"))}
}

func (n *LogNotifier) record(ctx context.Context, kind string, sub *subscription.Subscription, attrs ...any) error {
	attrs = append([]any{
		logger.Event(kind),
		logger.OrganizationID(sub.OrganizationID),
		logger.SubscriptionID(sub.ID),
		logger.Status(sub.Status),
		logger.Plan(sub.PlanCode),
	}, attrs...)
	n.log.InfoContext(ctx, "notification", attrs...)
	return nil
}

func (n *LogNotifier) NotifyTrialStarted(ctx context.Context, sub *subscription.Subscription) error {
	return n.record(ctx, "trial_started", sub, slog.String("to", sub.OwnerEmail))
}

func (n *LogNotifier) NotifyTrialExpiring(ctx context.Context, sub *subscription.Subscription, daysLeft int) error {
	return n.record(ctx, "trial_expiring", sub, slog.Int("days_left", daysLeft))
}

func (n *LogNotifier) NotifyTrialExpired(ctx context.Context, sub *subscription.Subscription) error {
	return n.record(ctx, "trial_expired", sub)
}

func (n *LogNotifier) NotifySubscriptionActivated(ctx context.Context, sub *subscription.Subscription) error {
	return n.record(ctx, "activated", sub)
}

func (n *LogNotifier) NotifySubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) error {
	return n.record(ctx, "canceled", sub, slog.String("reason", sub.CancelReason))
}

func (n *LogNotifier) NotifySubscriptionSuspended(ctx context.Context, sub *subscription.Subscription) error {
	return n.record(ctx, "suspended", sub)
}

func (n *LogNotifier) NotifyPaymentFailed(ctx context.Context, sub *subscription.Subscription, reason string) error {
	return n.record(ctx, "payment_failed", sub, slog.String("reason", reason))
}
