package usage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subcycle/svc/plan"
	"github.com/dmitrymomot/subcycle/svc/subscription"
	"github.com/dmitrymomot/subcycle/svc/usage"
)

type failingLedger struct{ usage.Ledger }

func (failingLedger) Append(context.Context, usage.Record) error {
	return errors.New("disk full")
}

func setup(t *testing.T) (*subscription.Manager, *plan.Catalog, uuid.UUID) {
	t.Helper()
	catalog, err := plan.NewCatalog(context.Background(), plan.DefaultPlans())
	require.NoError(t, err)
	manager := subscription.NewManager(subscription.NewMemoryStore(), catalog)

	orgID := uuid.New()
	_, err = manager.StartTrial(context.Background(), subscription.StartTrialParams{OrganizationID: orgID})
	require.NoError(t, err)
	return manager, catalog, orgID
}

func TestRecorder_RecordUsage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("within limit", func(t *testing.T) {
		t.Parallel()
		manager, catalog, orgID := setup(t)
		ledger := usage.NewMemoryLedger()
		rec := usage.NewRecorder(ledger, manager, catalog, usage.WithClock(func() time.Time { return now }))

		r, err := rec.RecordUsage(ctx, orgID, plan.FeatureContacts, 450)
		require.NoError(t, err)
		require.NotNil(t, r.Limit)
		assert.EqualValues(t, 500, *r.Limit)
		assert.Equal(t, "90.00", r.Percentage.StringFixed(2))
		assert.False(t, r.LimitExceeded)
		assert.Equal(t, now, r.RecordedAt)

		n, err := rec.CurrentUsage(ctx, r.SubscriptionID, plan.FeatureContacts)
		require.NoError(t, err)
		assert.EqualValues(t, 450, n)
	})

	t.Run("exceeded is strict", func(t *testing.T) {
		t.Parallel()
		manager, catalog, orgID := setup(t)
		rec := usage.NewRecorder(usage.NewMemoryLedger(), manager, catalog)

		atLimit, err := rec.RecordUsage(ctx, orgID, plan.FeatureUsers, 2)
		require.NoError(t, err)
		assert.False(t, atLimit.LimitExceeded)

		over, err := rec.RecordUsage(ctx, orgID, plan.FeatureUsers, 3)
		require.NoError(t, err)
		assert.True(t, over.LimitExceeded)
		assert.True(t, decimal.NewFromInt(150).Equal(over.Percentage))

		recs, err := rec.ExceededSince(ctx, time.Time{})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, over.ID, recs[0].ID)

		history, err := rec.History(ctx, over.SubscriptionID, 10)
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})

	t.Run("unknown feature is unlimited", func(t *testing.T) {
		t.Parallel()
		manager, catalog, orgID := setup(t)
		rec := usage.NewRecorder(usage.NewMemoryLedger(), manager, catalog)

		r, err := rec.RecordUsage(ctx, orgID, plan.Feature("WIDGETS"), 1_000_000)
		require.NoError(t, err)
		assert.Nil(t, r.Limit)
		assert.False(t, r.LimitExceeded)
		assert.True(t, r.Percentage.IsZero())
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()
		manager, catalog, orgID := setup(t)
		rec := usage.NewRecorder(usage.NewMemoryLedger(), manager, catalog)

		_, err := rec.RecordUsage(ctx, orgID, plan.FeatureContacts, -1)
		assert.ErrorIs(t, err, usage.ErrInvalidCount)
		_, err = rec.RecordUsage(ctx, orgID, "", 1)
		assert.ErrorIs(t, err, usage.ErrInvalidFeature)
	})

	t.Run("unknown organization", func(t *testing.T) {
		t.Parallel()
		manager, catalog, _ := setup(t)
		rec := usage.NewRecorder(usage.NewMemoryLedger(), manager, catalog)

		_, err := rec.RecordUsage(ctx, uuid.New(), plan.FeatureContacts, 1)
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("ledger failure is returned", func(t *testing.T) {
		t.Parallel()
		manager, catalog, orgID := setup(t)
		rec := usage.NewRecorder(failingLedger{usage.NewMemoryLedger()}, manager, catalog)

		_, err := rec.RecordUsage(ctx, orgID, plan.FeatureContacts, 1)
		assert.EqualError(t, err, "disk full")
	})
}
