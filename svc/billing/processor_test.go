package billing_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/svc/billing"
	"github.com/dmitrymomot/subcycle/svc/plan"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	manager   *subscription.Manager
	invoices  *billing.MemoryInvoiceStore
	processor *billing.Processor
	clock     *clock
	logs      *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := plan.NewCatalog(context.Background(), plan.DefaultPlans())
	require.NoError(t, err)

	f := &fixture{
		invoices: billing.NewMemoryInvoiceStore(),
		clock:    &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		logs:     &bytes.Buffer{},
	}
	f.manager = subscription.NewManager(subscription.NewMemoryStore(), catalog, subscription.WithClock(f.clock.Now))
	f.processor = billing.NewProcessor(f.manager, f.invoices,
		billing.WithClock(f.clock.Now),
		billing.WithLogger(logger.New(logger.WithOutput(f.logs))),
	)
	return f
}

// active starts a trial and activates it with the given provider id.
func (f *fixture) active(t *testing.T, providerID string) *subscription.Subscription {
	t.Helper()
	ctx := context.Background()
	orgID := uuid.New()
	_, err := f.manager.StartTrial(ctx, subscription.StartTrialParams{OrganizationID: orgID, OwnerEmail: "owner@example.com"})
	require.NoError(t, err)
	sub, err := f.manager.Activate(ctx, subscription.ActivateParams{
		OrganizationID:         orgID,
		PlanCode:               "PROFESSIONAL",
		BillingPeriod:          subscription.BillingMonthly,
		ProviderSubscriptionID: providerID,
	})
	require.NoError(t, err)
	return sub
}

func TestProcessor_PaymentCompleted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	sub := f.active(t, "I-100")
	f.clock.Advance(29 * 24 * time.Hour)

	ev := billing.PaymentEvent{
		Type:                   billing.EventPaymentCompleted,
		ProviderSubscriptionID: "I-100",
		ProviderPaymentID:      "SALE-1",
	}
	res, err := f.processor.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, billing.OutcomeProcessed, res.Outcome)
	require.NotNil(t, res.Invoice)
	assert.Equal(t, billing.InvoicePaid, res.Invoice.Status)
	assert.True(t, sub.Amount.Equal(res.Invoice.Amount))
	assert.Equal(t, sub.Currency, res.Invoice.Currency)
	require.NotNil(t, res.Invoice.PaidAt)
	assert.True(t, res.Invoice.PaidAt.Equal(f.clock.Now()))

	require.NotNil(t, res.Subscription.CurrentPeriodEnd)
	assert.True(t, res.Subscription.CurrentPeriodEnd.After(*sub.CurrentPeriodEnd), "period renewed")
	assert.Equal(t, res.Subscription.CurrentPeriodEnd, res.Invoice.PeriodEnd)

	t.Run("replay is idempotent", func(t *testing.T) {
		again, err := f.processor.Handle(ctx, ev)
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeDuplicate, again.Outcome)
		require.NotNil(t, again.Invoice)
		assert.Equal(t, res.Invoice.Number, again.Invoice.Number)

		current, err := f.manager.GetByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, res.Subscription.CurrentPeriodEnd, current.CurrentPeriodEnd)

		history, err := f.processor.History(ctx, sub.ID, 0)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})
}

func TestProcessor_PaymentDeniedThenRecovered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	sub := f.active(t, "I-200")
	f.clock.Advance(30 * 24 * time.Hour)

	res, err := f.processor.Handle(ctx, billing.PaymentEvent{
		Type:                   billing.EventPaymentDenied,
		ProviderSubscriptionID: "I-200",
		ProviderPaymentID:      "SALE-D1",
		Reason:                 "insufficient funds",
	})
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPastDue, res.Subscription.Status)
	require.NotNil(t, res.Invoice)
	assert.Equal(t, billing.InvoiceFailed, res.Invoice.Status)
	assert.Equal(t, "insufficient funds", res.Invoice.FailureReason)
	assert.Nil(t, res.Invoice.PaidAt)

	f.clock.Advance(time.Hour)
	res, err = f.processor.Handle(ctx, billing.PaymentEvent{
		Type:                   billing.EventPaymentCompleted,
		ProviderSubscriptionID: "I-200",
		ProviderPaymentID:      "SALE-2",
		Amount:                 decimal.RequireFromString("99000"),
		Currency:               "cop",
	})
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, res.Subscription.Status)
	assert.True(t, res.Subscription.CurrentPeriodStart.Equal(f.clock.Now()))
	assert.True(t, decimal.RequireFromString("99000").Equal(res.Invoice.Amount))
	assert.Equal(t, "COP", res.Invoice.Currency)

	history, err := f.processor.History(ctx, sub.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, billing.InvoicePaid, history[0].Status)
	assert.Equal(t, billing.InvoiceFailed, history[1].Status)
}

func TestProcessor_SubscriptionCancelled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	f.active(t, "I-300")

	res, err := f.processor.Handle(ctx, billing.PaymentEvent{
		Type:                   billing.EventSubscriptionCancelled,
		ProviderSubscriptionID: "I-300",
		Reason:                 "customer request",
	})
	require.NoError(t, err)
	assert.Equal(t, billing.OutcomeProcessed, res.Outcome)
	assert.Equal(t, subscription.StatusCanceled, res.Subscription.Status)
	assert.Nil(t, res.Invoice)
}

func TestProcessor_Ignored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	sub := f.active(t, "I-400")

	t.Run("activation is logged only", func(t *testing.T) {
		res, err := f.processor.Handle(ctx, billing.PaymentEvent{
			Type:                   billing.EventSubscriptionActivated,
			ProviderSubscriptionID: "I-400",
		})
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeIgnored, res.Outcome)
		assert.Equal(t, subscription.StatusActive, res.Subscription.Status)
		assert.Contains(t, f.logs.String(), "provider confirmed activation")
	})

	t.Run("unknown provider subscription", func(t *testing.T) {
		res, err := f.processor.Handle(ctx, billing.PaymentEvent{
			Type:                   billing.EventPaymentCompleted,
			ProviderSubscriptionID: "I-404",
			ProviderPaymentID:      "SALE-404",
		})
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeIgnored, res.Outcome)
	})

	t.Run("unhandled type", func(t *testing.T) {
		res, err := f.processor.Handle(ctx, billing.PaymentEvent{
			Type:                   "PAYMENT.SALE.REFUNDED",
			ProviderSubscriptionID: "I-400",
		})
		require.NoError(t, err)
		assert.Equal(t, billing.OutcomeIgnored, res.Outcome)
	})

	history, err := f.processor.History(ctx, sub.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestProcessor_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)

	_, err := f.processor.Handle(ctx, billing.PaymentEvent{Type: billing.EventPaymentCompleted})
	assert.ErrorIs(t, err, billing.ErrInvalidEvent)

	_, err = f.processor.Handle(ctx, billing.PaymentEvent{
		Type:                   billing.EventPaymentCompleted,
		ProviderSubscriptionID: "I-500",
		ProviderPaymentID:      "  ",
	})
	assert.ErrorIs(t, err, billing.ErrInvalidEvent)

	orgID := uuid.New()
	_, err = f.manager.StartTrial(ctx, subscription.StartTrialParams{OrganizationID: orgID})
	require.NoError(t, err)
	sub, err := f.manager.Activate(ctx, subscription.ActivateParams{
		OrganizationID:         orgID,
		PlanCode:               "STARTER",
		BillingPeriod:          subscription.BillingAnnual,
		ProviderSubscriptionID: "I-500",
	})
	require.NoError(t, err)
	_, err = f.manager.Cancel(ctx, subscription.CancelParams{OrganizationID: orgID, Immediate: true})
	require.NoError(t, err)

	_, err = f.processor.Handle(ctx, billing.PaymentEvent{
		Type:                   billing.EventPaymentDenied,
		ProviderSubscriptionID: "I-500",
		ProviderPaymentID:      "SALE-D5",
	})
	assert.ErrorIs(t, err, subscription.ErrInvalidTransition)

	history, err := f.processor.History(ctx, sub.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestNewProcessor_PanicsWithoutDependencies(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { billing.NewProcessor(nil, billing.NewMemoryInvoiceStore()) })
}
