package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/pkg/metrics"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

// EventType is a normalized payment provider event type.
type EventType string

const (
	EventSubscriptionActivated EventType = "SUBSCRIPTION_ACTIVATED"
	EventSubscriptionCancelled EventType = "SUBSCRIPTION_CANCELLED"
	EventPaymentCompleted      EventType = "PAYMENT_COMPLETED"
	EventPaymentDenied         EventType = "PAYMENT_DENIED"
)

// PaymentEvent is a verified provider notification.
type PaymentEvent struct {
	Type                   EventType       `json:"type"`
	ProviderSubscriptionID string          `json:"provider_subscription_id"`
	ProviderPaymentID      string          `json:"provider_payment_id,omitempty"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency,omitempty"`
	Reason                 string          `json:"reason,omitempty"`
}

// Outcome of handling one event.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Result describes what Handle did. Invoice is set for payment events.
type Result struct {
	Outcome      Outcome                    `json:"outcome"`
	Subscription *subscription.Subscription `json:"subscription,omitempty"`
	Invoice      *Invoice                   `json:"invoice,omitempty"`
}

// Subscriptions are the manager operations driven by payment events.
type Subscriptions interface {
	GetByProviderSubscriptionID(ctx context.Context, providerID string) (*subscription.Subscription, error)
	CancelByProvider(ctx context.Context, id uuid.UUID, reason string) (*subscription.Subscription, error)
	MarkPastDue(ctx context.Context, id uuid.UUID, reason string) (*subscription.Subscription, error)
	RecordPayment(ctx context.Context, id uuid.UUID, p subscription.PaymentParams) (*subscription.Subscription, error)
}

// Processor dispatches payment events to the lifecycle manager.
type Processor struct {
	subs     Subscriptions
	invoices InvoiceStore
	now      func() time.Time
	log      *slog.Logger
}

type ProcessorOption func(*Processor)

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// NewProcessor panics if subs or invoices is nil.
func NewProcessor(subs Subscriptions, invoices InvoiceStore, opts ...ProcessorOption) *Processor {
	if subs == nil || invoices == nil {
		panic("billing: subscriptions and invoice store are required")
	}
	p := &Processor{
		subs:     subs,
		invoices: invoices,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(logger.Component("billing"))
	return p
}

// Handle applies ev. Events for unknown provider subscriptions and
// unhandled types are ignored without error.
func (p *Processor) Handle(ctx context.Context, ev PaymentEvent) (res Result, err error) {
	defer func() {
		outcome := string(res.Outcome)
		if err != nil {
			outcome = "error"
		}
		metrics.PaymentEventsTotal.WithLabelValues(string(ev.Type), outcome).Inc()
	}()

	ev.Type = EventType(strings.ToUpper(strings.TrimSpace(string(ev.Type))))
	if strings.TrimSpace(ev.ProviderSubscriptionID) == "" {
		return Result{}, fmt.Errorf("%w: provider subscription id is required", ErrInvalidEvent)
	}
	if ev.Type == EventPaymentCompleted && strings.TrimSpace(ev.ProviderPaymentID) == "" {
		return Result{}, fmt.Errorf("%w: provider payment id is required for %s", ErrInvalidEvent, ev.Type)
	}

	log := p.log.With(slog.String("event_type", string(ev.Type)), slog.String("provider_subscription_id", ev.ProviderSubscriptionID))

	switch ev.Type {
	case EventSubscriptionActivated, EventSubscriptionCancelled, EventPaymentCompleted, EventPaymentDenied:
	default:
		log.InfoContext(ctx, "unhandled payment event type")
		return Result{Outcome: OutcomeIgnored}, nil
	}

	sub, err := p.subs.GetByProviderSubscriptionID(ctx, ev.ProviderSubscriptionID)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		log.WarnContext(ctx, "payment event for unknown subscription")
		return Result{Outcome: OutcomeIgnored}, nil
	}
	if err != nil {
		return Result{}, err
	}
	log = log.With(logger.OrganizationID(sub.OrganizationID), logger.SubscriptionID(sub.ID))

	switch ev.Type {
	case EventSubscriptionActivated:
		log.InfoContext(ctx, "provider confirmed activation")
		return Result{Outcome: OutcomeIgnored, Subscription: sub}, nil

	case EventSubscriptionCancelled:
		updated, err := p.subs.CancelByProvider(ctx, sub.ID, ev.Reason)
		if err != nil {
			return Result{}, err
		}
		log.InfoContext(ctx, "subscription canceled by provider")
		return Result{Outcome: OutcomeProcessed, Subscription: updated}, nil

	case EventPaymentCompleted:
		return p.paymentCompleted(ctx, log, sub, ev)

	default:
		return p.paymentDenied(ctx, log, sub, ev)
	}
}

func (p *Processor) paymentCompleted(ctx context.Context, log *slog.Logger, sub *subscription.Subscription, ev PaymentEvent) (Result, error) {
	if existing, err := p.invoices.GetByProviderPaymentID(ctx, ev.ProviderPaymentID); err == nil {
		log.InfoContext(ctx, "payment already recorded", slog.String("invoice", existing.Number))
		return Result{Outcome: OutcomeDuplicate, Subscription: sub, Invoice: &existing}, nil
	} else if !errors.Is(err, ErrInvoiceNotFound) {
		return Result{}, err
	}

	updated, err := p.subs.RecordPayment(ctx, sub.ID, subscription.PaymentParams{
		ProviderPaymentID: ev.ProviderPaymentID,
		Amount:            ev.Amount,
		Currency:          ev.Currency,
	})
	if err != nil {
		return Result{}, err
	}

	now := p.now().UTC()
	inv := p.newInvoice(updated, ev, now)
	inv.Status = InvoicePaid
	inv.PaidAt = &now
	inv.PeriodStart = updated.CurrentPeriodStart
	inv.PeriodEnd = updated.CurrentPeriodEnd
	if err := p.invoices.Create(ctx, inv); err != nil {
		if errors.Is(err, ErrDuplicateInvoice) {
			return Result{Outcome: OutcomeDuplicate, Subscription: updated}, nil
		}
		return Result{}, fmt.Errorf("payment applied but invoice not stored: %w", err)
	}

	log.InfoContext(ctx, "payment recorded",
		slog.String("invoice", inv.Number),
		slog.String("amount", inv.Amount.StringFixed(2)),
		logger.Status(updated.Status),
	)
	return Result{Outcome: OutcomeProcessed, Subscription: updated, Invoice: &inv}, nil
}

func (p *Processor) paymentDenied(ctx context.Context, log *slog.Logger, sub *subscription.Subscription, ev PaymentEvent) (Result, error) {
	reason := ev.Reason
	if reason == "" {
		reason = "payment denied"
	}
	updated, err := p.subs.MarkPastDue(ctx, sub.ID, reason)
	if err != nil {
		return Result{}, err
	}

	inv := p.newInvoice(updated, ev, p.now().UTC())
	inv.Status = InvoiceFailed
	inv.FailureReason = reason
	if err := p.invoices.Create(ctx, inv); err != nil {
		if errors.Is(err, ErrDuplicateInvoice) {
			return Result{Outcome: OutcomeDuplicate, Subscription: updated}, nil
		}
		return Result{}, fmt.Errorf("payment failure applied but invoice not stored: %w", err)
	}

	log.WarnContext(ctx, "payment denied", slog.String("reason", reason), logger.Status(updated.Status))
	return Result{Outcome: OutcomeProcessed, Subscription: updated, Invoice: &inv}, nil
}

func (p *Processor) newInvoice(sub *subscription.Subscription, ev PaymentEvent, now time.Time) Invoice {
	id := uuid.Must(uuid.NewV7())
	amount, cur := ev.Amount, strings.ToUpper(ev.Currency)
	if amount.IsZero() {
		amount = sub.Amount
	}
	if cur == "" {
		cur = sub.Currency
	}
	return Invoice{
		ID:                id,
		SubscriptionID:    sub.ID,
		Number:            InvoiceNumber(id, now),
		Amount:            amount,
		Currency:          cur,
		ProviderPaymentID: ev.ProviderPaymentID,
		CreatedAt:         now,
	}
}

// History returns the invoices of a subscription, newest first.
func (p *Processor) History(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]Invoice, error) {
	return p.invoices.History(ctx, subscriptionID, limit)
}
