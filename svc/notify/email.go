package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/subcycle/pkg/email"
	"github.com/dmitrymomot/subcycle/pkg/email/templates"
	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/svc/plan"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

var ErrNoRecipient = errors.New("subscription has no owner email")

const dateLayout = "02/01/2006"

// Plans resolves display names for plan codes.
type Plans interface {
	GetByCode(code string) (plan.Plan, error)
}

// EmailConfig is the branding of outgoing emails.
type EmailConfig struct {
	ProductName  string `env:"PRODUCT_NAME" envDefault:"Subcycle"`
	AppURL       string `env:"APP_URL" envDefault:"http://localhost:3000"`
	SupportEmail string `env:"SUPPORT_EMAIL"`
	TrialDays    int    `env:"TRIAL_DAYS" envDefault:"21"`
	GraceDays    int    `env:"GRACE_DAYS" envDefault:"7"`
}

// EmailNotifier renders notifications as HTML and hands them to an
// email.EmailSender.
type EmailNotifier struct {
	sender   email.EmailSender
	cfg      EmailConfig
	plans    Plans
	log      *slog.Logger
	location *time.Location
}

type EmailOption func(*EmailNotifier)

func WithEmailLogger(l *slog.Logger) EmailOption {
	return func(n *EmailNotifier) {
		if l != nil {
			n.log = l
		}
	}
}

// WithLocation renders dates in loc instead of UTC.
func WithLocation(loc *time.Location) EmailOption {
	return func(n *EmailNotifier) {
		if loc != nil {
			n.location = loc
		}
	}
}

// WithPlans shows plan names instead of codes.
func WithPlans(p Plans) EmailOption {
	return func(n *EmailNotifier) { n.plans = p }
}

// NewEmailNotifier panics if sender is nil.
func NewEmailNotifier(sender email.EmailSender, cfg EmailConfig, opts ...EmailOption) *EmailNotifier {
	if sender == nil {
		panic("notify: email sender is required")
	}

	n := &EmailNotifier{
		sender:   sender,
		cfg:      cfg,
		log:      slog.Default(),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.log = n.log.With(logger.Component("notify"))
	return n
}

type emailData struct {
	ProductName  string
	SupportEmail string
	PricingURL   string
	DashboardURL string
	BillingURL   string
	PlanName     string
	TrialEndsAt  string
	PeriodEnd    string
	TrialDays    int
	GraceDays    int
	DaysLeft     int
	Reason       string
}

func (n *EmailNotifier) data(sub *subscription.Subscription) emailData {
	base := strings.TrimRight(n.cfg.AppURL, "/")
	d := emailData{
		ProductName:  n.cfg.ProductName,
		SupportEmail: n.cfg.SupportEmail,
		PricingURL:   base + "/pricing",
		DashboardURL: base + "/dashboard",
		BillingURL:   base + "/account/billing",
		PlanName:     sub.PlanCode,
		TrialDays:    n.cfg.TrialDays,
		GraceDays:    n.cfg.GraceDays,
	}
	if n.plans != nil {
		if p, err := n.plans.GetByCode(sub.PlanCode); err == nil {
			d.PlanName = p.Name
		}
	}
	if sub.TrialEndsAt != nil {
		d.TrialEndsAt = sub.TrialEndsAt.In(n.location).Format(dateLayout)
	}
	if sub.CurrentPeriodEnd != nil && sub.EndedAt == nil {
		d.PeriodEnd = sub.CurrentPeriodEnd.In(n.location).Format(dateLayout)
	}
	return d
}

func (n *EmailNotifier) send(ctx context.Context, sub *subscription.Subscription, name, subject string, d emailData) error {
	if sub.OwnerEmail == "" {
		return ErrNoRecipient
	}

	body, err := templates.Render(ctx, layout(d, pages[name](d)))
	if err != nil {
		return fmt.Errorf("render %s email: %w", name, err)
	}

	if err := n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   sub.OwnerEmail,
		Subject:  subject,
		BodyHTML: body,
		Tag:      name,
	}); err != nil {
		return err
	}
	n.log.DebugContext(ctx, "email sent",
		logger.Event(name),
		logger.SubscriptionID(sub.ID),
	)
	return nil
}

func (n *EmailNotifier) NotifyTrialStarted(ctx context.Context, sub *subscription.Subscription) error {
	subject := fmt.Sprintf("¡Bienvenido a %s! Tu prueba ha comenzado", n.cfg.ProductName)
	return n.send(ctx, sub, "trial_started", subject, n.data(sub))
}

func (n *EmailNotifier) NotifyTrialExpiring(ctx context.Context, sub *subscription.Subscription, daysLeft int) error {
	d := n.data(sub)
	d.DaysLeft = daysLeft
	subject := fmt.Sprintf("Tu prueba expira en %d días", daysLeft)
	if daysLeft == 1 {
		subject = "Tu prueba expira mañana"
	}
	return n.send(ctx, sub, "trial_expiring", subject, d)
}

func (n *EmailNotifier) NotifyTrialExpired(ctx context.Context, sub *subscription.Subscription) error {
	return n.send(ctx, sub, "trial_expired", "Tu período de prueba ha finalizado", n.data(sub))
}

func (n *EmailNotifier) NotifySubscriptionActivated(ctx context.Context, sub *subscription.Subscription) error {
	return n.send(ctx, sub, "activated", "¡Tu suscripción está activa!", n.data(sub))
}

func (n *EmailNotifier) NotifySubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) error {
	d := n.data(sub)
	d.Reason = sub.CancelReason
	return n.send(ctx, sub, "canceled", "Tu suscripción ha sido cancelada", d)
}

func (n *EmailNotifier) NotifySubscriptionSuspended(ctx context.Context, sub *subscription.Subscription) error {
	return n.send(ctx, sub, "suspended", "Tu cuenta ha sido suspendida", n.data(sub))
}

func (n *EmailNotifier) NotifyPaymentFailed(ctx context.Context, sub *subscription.Subscription, reason string) error {
	d := n.data(sub)
	d.Reason = reason
	return n.send(ctx, sub, "payment_failed", "Problema con tu pago", d)
}
