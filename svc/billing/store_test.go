package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subcycle/internal/testinfra"
	"github.com/dmitrymomot/subcycle/svc/billing"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

func invoice(subID uuid.UUID, paymentID string, at time.Time) billing.Invoice {
	id := uuid.Must(uuid.NewV7())
	return billing.Invoice{
		ID:                id,
		SubscriptionID:    subID,
		Number:            billing.InvoiceNumber(id, at),
		Amount:            decimal.RequireFromString("149900.00"),
		Currency:          "COP",
		Status:            billing.InvoicePaid,
		PaidAt:            &at,
		ProviderPaymentID: paymentID,
		CreatedAt:         at,
	}
}

func runStoreSuite(t *testing.T, store billing.InvoiceStore, newSubscription func(t *testing.T) uuid.UUID) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("history is newest first", func(t *testing.T) {
		subID := newSubscription(t)
		other := newSubscription(t)
		for i := range 3 {
			require.NoError(t, store.Create(ctx, invoice(subID, uuid.NewString(), base.AddDate(0, i, 0))))
		}
		require.NoError(t, store.Create(ctx, invoice(other, uuid.NewString(), base)))

		all, err := store.History(ctx, subID, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.True(t, all[0].CreatedAt.Equal(base.AddDate(0, 2, 0)))
		assert.True(t, all[2].CreatedAt.Equal(base))
		assert.True(t, decimal.RequireFromString("149900").Equal(all[0].Amount))
		assert.Equal(t, billing.InvoicePaid, all[0].Status)

		limited, err := store.History(ctx, subID, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("empty history", func(t *testing.T) {
		all, err := store.History(ctx, newSubscription(t), 0)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("provider payment id is unique", func(t *testing.T) {
		subID := newSubscription(t)
		paymentID := "SALE-" + uuid.NewString()
		first := invoice(subID, paymentID, base)
		require.NoError(t, store.Create(ctx, first))
		assert.ErrorIs(t, store.Create(ctx, invoice(subID, paymentID, base)), billing.ErrDuplicateInvoice)

		got, err := store.GetByProviderPaymentID(ctx, paymentID)
		require.NoError(t, err)
		assert.Equal(t, first.Number, got.Number)

		_, err = store.GetByProviderPaymentID(ctx, "missing")
		assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
	})

	t.Run("invoices without payment id do not collide", func(t *testing.T) {
		subID := newSubscription(t)
		require.NoError(t, store.Create(ctx, invoice(subID, "", base)))
		require.NoError(t, store.Create(ctx, invoice(subID, "", base.Add(time.Second))))

		_, err := store.GetByProviderPaymentID(ctx, "")
		assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
	})

	t.Run("invalid invoice is rejected", func(t *testing.T) {
		inv := invoice(newSubscription(t), "", base)
		inv.Currency = "XX"
		assert.ErrorIs(t, store.Create(ctx, inv), billing.ErrInvalidInvoice)
	})
}

func TestMemoryInvoiceStore(t *testing.T) {
	t.Parallel()
	runStoreSuite(t, billing.NewMemoryInvoiceStore(), func(*testing.T) uuid.UUID { return uuid.New() })
}

func TestPGInvoiceStore(t *testing.T) {
	t.Parallel()
	pool := testinfra.Postgres(t)
	store := subscription.NewPGStore(pool)

	runStoreSuite(t, billing.NewPGInvoiceStore(pool), func(t *testing.T) uuid.UUID {
		t.Helper()
		now := time.Now().UTC().Truncate(time.Microsecond)
		sub := &subscription.Subscription{
			ID:              uuid.New(),
			OrganizationID:  uuid.New(),
			PlanCode:        "STARTER",
			Status:          subscription.StatusTrialing,
			BillingPeriod:   subscription.BillingMonthly,
			TrialUsed:       true,
			Amount:          decimal.Zero,
			Currency:        "COP",
			StatusChangedAt: now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		require.NoError(t, store.Create(context.Background(), sub))
		return sub.ID
	})
}
