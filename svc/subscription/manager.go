package subscription

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
	"github.com/dmitrymomot/subcycle/pkg/statemachine"
	"github.com/dmitrymomot/subcycle/svc/events"
	"github.com/dmitrymomot/subcycle/svc/plan"
)

const (
	DefaultTrialDays     = 21
	DefaultRenewalWindow = 72 * time.Hour
)

// Plans is the catalog lookup the manager depends on.
type Plans interface {
	GetByCode(code string) (plan.Plan, error)
	GetByTier(tier plan.Tier) (plan.Plan, error)
}

// Manager is the only writer of subscription records. Every operation is a
// single Store.Update followed by a post-commit Dispatch.
type Manager struct {
	store         Store
	plans         Plans
	machine       machine
	dispatcher    Dispatcher
	log           *slog.Logger
	now           func() time.Time
	trialDays     int
	renewalWindow time.Duration
}

type machine interface {
	Fire(ctx context.Context, from Status, op Operation, data any) (Status, error)
}

// NewManager panics if store or plans is nil.
func NewManager(store Store, plans Plans, opts ...Option) *Manager {
	if store == nil {
		panic("subscription: Store is required")
	}
	if plans == nil {
		panic("subscription: Plans is required")
	}
	m := &Manager{
		store:         store,
		plans:         plans,
		machine:       newMachine(),
		dispatcher:    nopDispatcher{},
		log:           slog.Default(),
		now:           time.Now,
		trialDays:     DefaultTrialDays,
		renewalWindow: DefaultRenewalWindow,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("subscription"))
	return m
}

func (m *Manager) clock() time.Time {
	return m.now().UTC().Truncate(time.Microsecond)
}

// Get returns the organization's subscription.
func (m *Manager) Get(ctx context.Context, orgID uuid.UUID) (*Subscription, error) {
	return m.store.GetByOrganization(ctx, orgID)
}

func (m *Manager) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return m.store.GetByID(ctx, id)
}

func (m *Manager) GetByProviderSubscriptionID(ctx context.Context, providerID string) (*Subscription, error) {
	return m.store.GetByProviderSubscriptionID(ctx, providerID)
}

// StartTrialParams are the inputs of StartTrial.
type StartTrialParams struct {
	OrganizationID uuid.UUID
	OwnerEmail     string
}

// StartTrial creates the organization's record on the STARTER plan with a
// trial window. An organization gets exactly one trial.
func (m *Manager) StartTrial(ctx context.Context, p StartTrialParams) (*Subscription, error) {
	if p.OrganizationID == uuid.Nil {
		return nil, ErrInvalidOrganization
	}
	existing, err := m.store.GetByOrganization(ctx, p.OrganizationID)
	switch {
	case err == nil && existing.TrialUsed:
		return nil, ErrTrialAlreadyUsed
	case err == nil:
		return nil, ErrSubscriptionAlreadyExists
	case !errors.Is(err, ErrSubscriptionNotFound):
		return nil, err
	}

	starter, err := m.plans.GetByTier(plan.TierStarter)
	if err != nil {
		return nil, err
	}
	status, err := m.machine.Fire(ctx, StatusNone, OpStartTrial, nil)
	if err != nil {
		return nil, errors.Join(ErrInvalidTransition, err)
	}

	now := m.clock()
	sub := &Subscription{
		ID:              uuid.New(),
		OrganizationID:  p.OrganizationID,
		PlanCode:        starter.Code,
		Status:          status,
		BillingPeriod:   BillingMonthly,
		TrialStartedAt:  timePtr(now),
		TrialEndsAt:     timePtr(now.AddDate(0, 0, m.trialDays)),
		TrialUsed:       true,
		Amount:          decimal.Zero,
		Currency:        starter.Currency,
		OwnerEmail:      strings.TrimSpace(p.OwnerEmail),
		StatusChangedAt: now,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.store.Create(ctx, sub); err != nil {
		metrics.TransitionErrorsTotal.WithLabelValues(string(OpStartTrial)).Inc()
		return nil, err
	}

	m.committed(ctx, OpStartTrial, StatusNone, sub, events.TrialStarted{
		PlanCode:    sub.PlanCode,
		TrialEndsAt: *sub.TrialEndsAt,
		OwnerEmail:  sub.OwnerEmail,
	})
	return sub.Clone(), nil
}

// ActivateParams are the inputs of Activate, supplied by the payment flow
// once the first payment is captured.
type ActivateParams struct {
	OrganizationID         uuid.UUID
	PlanCode               string
	BillingPeriod          BillingPeriod
	ProviderSubscriptionID string
	ProviderPayerID        string
	ProviderAgreementID    string
}

// Activate moves a trialing, lapsed or suspended subscription to a paid plan
// and opens its first billing period.
func (m *Manager) Activate(ctx context.Context, p ActivateParams) (*Subscription, error) {
	if !p.BillingPeriod.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBillingPeriod, p.BillingPeriod)
	}
	target, err := m.plans.GetByCode(p.PlanCode)
	if err != nil {
		return nil, err
	}
	id, err := m.idForOrganization(ctx, p.OrganizationID)
	if err != nil {
		return nil, err
	}
	return m.transition(ctx, id, OpActivate, target, nil, func(s *Subscription, now time.Time) events.Payload {
		price := target.MonthlyPrice
		if p.BillingPeriod == BillingAnnual {
			price = target.AnnualPrice
		}
		end := p.BillingPeriod.Advance(now)

		s.PlanCode = target.Code
		s.BillingPeriod = p.BillingPeriod
		s.CurrentPeriodStart = timePtr(now)
		s.CurrentPeriodEnd = timePtr(end)
		s.NextBillingAt = timePtr(end)
		s.Amount = price
		s.Currency = target.Currency
		if p.ProviderSubscriptionID != "" {
			s.ProviderSubscriptionID = p.ProviderSubscriptionID
		}
		if p.ProviderPayerID != "" {
			s.ProviderPayerID = p.ProviderPayerID
		}
		if p.ProviderAgreementID != "" {
			s.ProviderAgreementID = p.ProviderAgreementID
		}
		return events.SubscriptionActivated{
			PlanCode:      s.PlanCode,
			BillingPeriod: string(s.BillingPeriod),
			Amount:        s.Amount,
			Currency:      s.Currency,
			PeriodEnd:     end,
		}
	})
}

// UpgradeParams are the inputs of UpgradePlan.
type UpgradeParams struct {
	OrganizationID uuid.UUID
	PlanCode       string
	BillingPeriod  BillingPeriod
}

// UpgradePlan replaces the plan of an active subscription with one of the
// same or a higher tier. Downgrades fail with ErrDowngradeNotAllowed.
func (m *Manager) UpgradePlan(ctx context.Context, p UpgradeParams) (*Subscription, error) {
	if !p.BillingPeriod.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBillingPeriod, p.BillingPeriod)
	}
	target, err := m.plans.GetByCode(p.PlanCode)
	if err != nil {
		return nil, err
	}
	id, err := m.idForOrganization(ctx, p.OrganizationID)
	if err != nil {
		return nil, err
	}
	return m.transition(ctx, id, OpUpgradePlan, target, nil, func(s *Subscription, _ time.Time) events.Payload {
		from := s.PlanCode
		s.PlanCode = target.Code
		s.BillingPeriod = p.BillingPeriod
		s.Currency = target.Currency
		s.Amount = target.MonthlyPrice
		if p.BillingPeriod == BillingAnnual {
			s.Amount = target.AnnualPrice
		}
		return events.PlanChanged{FromPlan: from, ToPlan: s.PlanCode, BillingPeriod: string(s.BillingPeriod)}
	})
}

// CancelParams are the inputs of Cancel.
type CancelParams struct {
	OrganizationID uuid.UUID
	Immediate      bool
	Reason         string
}

// Cancel stops the subscription. An immediate cancel ends access now; an
// end-of-period cancel leaves EndedAt unset until the expiration scan ends
// the record once the paid period is over.
func (m *Manager) Cancel(ctx context.Context, p CancelParams) (*Subscription, error) {
	id, err := m.idForOrganization(ctx, p.OrganizationID)
	if err != nil {
		return nil, err
	}
	return m.transition(ctx, id, OpCancel, plan.Plan{}, nil, func(s *Subscription, now time.Time) events.Payload {
		s.CanceledAt = timePtr(now)
		s.CancelReason = strings.TrimSpace(p.Reason)
		s.NextBillingAt = nil
		if p.Immediate {
			s.EndedAt = timePtr(now)
		}
		return events.SubscriptionCanceled{Reason: s.CancelReason, Immediate: p.Immediate}
	})
}

// CancelByProvider records a cancellation reported by the payment provider.
// Repeated notifications for an already canceled or ended record are no-ops.
func (m *Manager) CancelByProvider(ctx context.Context, id uuid.UUID, reason string) (*Subscription, error) {
	if reason == "" {
		reason = "provider"
	}
	skip := func(s *Subscription) bool { return s.Status.Terminal() }
	return m.transition(ctx, id, OpCancelByProvider, plan.Plan{}, skip, func(s *Subscription, now time.Time) events.Payload {
		s.CanceledAt = timePtr(now)
		s.CancelReason = reason
		s.NextBillingAt = nil
		return events.SubscriptionCanceled{Reason: reason, ByProvider: true}
	})
}

// ExpireTrial moves a trialing subscription into the grace period. Any other
// status is left untouched and no event is emitted.
func (m *Manager) ExpireTrial(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	skip := func(s *Subscription) bool { return s.Status != StatusTrialing }
	return m.transition(ctx, id, OpExpireTrial, plan.Plan{}, skip, func(s *Subscription, _ time.Time) events.Payload {
		var end time.Time
		if s.TrialEndsAt != nil {
			end = *s.TrialEndsAt
		}
		return events.TrialExpired{TrialEndsAt: end}
	})
}

// Suspend blocks access for a subscription in the grace period or past due
// whose status changed before changedBefore. A zero changedBefore suspends
// regardless of age. Anything else is left untouched.
func (m *Manager) Suspend(ctx context.Context, id uuid.UUID, changedBefore time.Time) (*Subscription, error) {
	skip := func(s *Subscription) bool {
		if s.Status != StatusGracePeriod && s.Status != StatusPastDue {
			return true
		}
		return !changedBefore.IsZero() && !s.StatusChangedAt.Before(changedBefore)
	}
	return m.transition(ctx, id, OpSuspend, plan.Plan{}, skip, func(s *Subscription, _ time.Time) events.Payload {
		return events.SubscriptionSuspended{PreviousStatus: string(s.Status)}
	})
}

// MarkPastDue records a failed payment on an active subscription. A record
// already past due is left untouched.
func (m *Manager) MarkPastDue(ctx context.Context, id uuid.UUID, reason string) (*Subscription, error) {
	skip := func(s *Subscription) bool { return s.Status == StatusPastDue }
	return m.transition(ctx, id, OpMarkPastDue, plan.Plan{}, skip, func(s *Subscription, _ time.Time) events.Payload {
		return events.PaymentFailed{ProviderSubscriptionID: s.ProviderSubscriptionID, Reason: reason}
	})
}

// PaymentParams describe a captured payment.
type PaymentParams struct {
	ProviderPaymentID string
	Amount            decimal.Decimal
	Currency          string
}

// RecordPayment applies a captured payment. A past-due subscription returns
// to ACTIVE with a fresh period. An active one rolls its period forward when
// the payment falls within the renewal window of the period end; earlier
// payments confirm the current period only.
func (m *Manager) RecordPayment(ctx context.Context, id uuid.UUID, p PaymentParams) (*Subscription, error) {
	return m.transition(ctx, id, OpRecordPayment, plan.Plan{}, nil, func(s *Subscription, now time.Time) events.Payload {
		due := s.CurrentPeriodEnd == nil || !now.Before(s.CurrentPeriodEnd.Add(-m.renewalWindow))
		if s.Status == StatusPastDue || due {
			start := now
			if s.Status == StatusActive && s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.After(now) {
				start = *s.CurrentPeriodEnd
			}
			end := s.BillingPeriod.Advance(start)
			s.CurrentPeriodStart = timePtr(start)
			s.CurrentPeriodEnd = timePtr(end)
			s.NextBillingAt = timePtr(end)
		}
		amount, currency := p.Amount, p.Currency
		if amount.IsZero() {
			amount = s.Amount
		}
		if currency == "" {
			currency = s.Currency
		}
		var periodEnd time.Time
		if s.CurrentPeriodEnd != nil {
			periodEnd = *s.CurrentPeriodEnd
		}
		return events.PaymentSucceeded{
			ProviderPaymentID: p.ProviderPaymentID,
			Amount:            amount,
			Currency:          currency,
			PeriodEnd:         periodEnd,
		}
	})
}

// End closes a canceled subscription whose access window is over. EndedAt
// keeps an immediate cancel's timestamp, otherwise it becomes the period
// end, or now when there was no paid period.
func (m *Manager) End(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	skip := func(s *Subscription) bool { return s.Status == StatusEnded }
	return m.transition(ctx, id, OpEnd, plan.Plan{}, skip, func(s *Subscription, now time.Time) events.Payload {
		if s.EndedAt == nil {
			ended := now
			if s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.Before(now) {
				ended = *s.CurrentPeriodEnd
			}
			s.EndedAt = timePtr(ended)
		}
		return events.SubscriptionEnded{EndedAt: *s.EndedAt}
	})
}

// CountByStatus reports how many records are in each status.
func (m *Manager) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	return m.store.CountByStatus(ctx)
}

func (m *Manager) idForOrganization(ctx context.Context, orgID uuid.UUID) (uuid.UUID, error) {
	if orgID == uuid.Nil {
		return uuid.Nil, ErrInvalidOrganization
	}
	sub, err := m.store.GetByOrganization(ctx, orgID)
	if err != nil {
		return uuid.Nil, err
	}
	return sub.ID, nil
}

// transition runs one locked read-modify-write. skip turns the operation
// into a no-op for the loaded record; mutate applies the side effects and
// returns the event payload.
func (m *Manager) transition(
	ctx context.Context,
	id uuid.UUID,
	op Operation,
	target plan.Plan,
	skip func(*Subscription) bool,
	mutate func(s *Subscription, now time.Time) events.Payload,
) (*Subscription, error) {
	var (
		from    Status
		payload events.Payload
	)
	sub, err := m.store.Update(ctx, id, func(s *Subscription) error {
		from = s.Status
		if skip != nil && skip(s) {
			return ErrNoChange
		}
		now := m.clock()
		to, err := m.machine.Fire(ctx, s.Status, op, guardInput{sub: s, target: target, plans: m.plans, now: now})
		if err != nil {
			return m.fireError(op, s.Status, err)
		}
		payload = mutate(s, now)
		if to != s.Status {
			s.StatusChangedAt = now
		}
		s.Status = to
		s.UpdatedAt = now
		return nil
	})
	if errors.Is(err, ErrNoChange) {
		m.log.DebugContext(ctx, "transition skipped",
			logger.SubscriptionID(id),
			logger.Event(op),
			logger.Status(from),
		)
		return sub, nil
	}
	if err != nil {
		metrics.TransitionErrorsTotal.WithLabelValues(string(op)).Inc()
		return nil, err
	}

	m.committed(ctx, op, from, sub, payload)
	return sub, nil
}

func (m *Manager) fireError(op Operation, from Status, err error) error {
	if statemachine.IsTransitionRejectedError(err) {
		switch op {
		case OpUpgradePlan:
			return ErrDowngradeNotAllowed
		case OpEnd:
			return ErrNoChange
		}
	}
	return errors.Join(ErrInvalidTransition, fmt.Errorf("%s from %s: %w", op, from, err))
}

func (m *Manager) committed(ctx context.Context, op Operation, from Status, sub *Subscription, payload events.Payload) {
	metrics.TransitionsTotal.WithLabelValues(string(op), string(sub.Status)).Inc()
	m.log.InfoContext(ctx, "subscription transition",
		logger.OrganizationID(sub.OrganizationID),
		logger.SubscriptionID(sub.ID),
		logger.Event(op),
		logger.Transition(from, sub.Status),
		logger.Plan(sub.PlanCode),
	)
	m.dispatcher.Dispatch(ctx, Change{
		Subscription: *sub.Clone(),
		From:         from,
		Operation:    op,
		Event:        events.New(sub.OrganizationID, sub.ID, sub.UpdatedAt, payload),
		Sync:         true,
	})
}
