package usage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subcycle/internal/testinfra"
	"github.com/dmitrymomot/subcycle/svc/plan"
	"github.com/dmitrymomot/subcycle/svc/subscription"
	"github.com/dmitrymomot/subcycle/svc/usage"
)

func record(subID uuid.UUID, feature plan.Feature, count int64, limit *int64, at time.Time) usage.Record {
	r := usage.Record{
		ID:             uuid.Must(uuid.NewV7()),
		SubscriptionID: subID,
		Feature:        feature,
		Count:          count,
		Limit:          limit,
		RecordedAt:     at,
	}
	if limit != nil {
		r.Percentage = plan.UsagePercentage(count, *limit)
		r.LimitExceeded = count > *limit
	}
	return r
}

func runLedgerSuite(t *testing.T, ledger usage.Ledger, newSubscription func(t *testing.T) uuid.UUID) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("absent usage is zero", func(t *testing.T) {
		subID := newSubscription(t)
		_, ok, err := ledger.Latest(ctx, subID, plan.FeatureContacts)
		require.NoError(t, err)
		assert.False(t, ok)

		n, err := usage.CurrentUsage(ctx, ledger, subID, plan.FeatureContacts)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("latest record wins", func(t *testing.T) {
		subID := newSubscription(t)
		limit := plan.Limited(500)
		require.NoError(t, ledger.Append(ctx, record(subID, plan.FeatureContacts, 120, limit, base)))
		require.NoError(t, ledger.Append(ctx, record(subID, plan.FeatureContacts, 451, limit, base.Add(time.Hour))))
		require.NoError(t, ledger.Append(ctx, record(subID, plan.FeatureDeals, 7, plan.Limited(100), base.Add(2*time.Hour))))

		latest, ok, err := ledger.Latest(ctx, subID, plan.FeatureContacts)
		require.NoError(t, err)
		require.True(t, ok)
		assert.EqualValues(t, 451, latest.Count)
		require.NotNil(t, latest.Limit)
		assert.EqualValues(t, 500, *latest.Limit)
		assert.True(t, decimal.RequireFromString("90.20").Equal(latest.Percentage), latest.Percentage.String())
		assert.False(t, latest.LimitExceeded)

		n, err := usage.CurrentUsage(ctx, ledger, subID, plan.FeatureDeals)
		require.NoError(t, err)
		assert.EqualValues(t, 7, n)
	})

	t.Run("history is newest first", func(t *testing.T) {
		subID := newSubscription(t)
		for i := range 3 {
			require.NoError(t, ledger.Append(ctx, record(subID, plan.FeatureUsers, int64(i+1), nil, base.Add(time.Duration(i)*time.Minute))))
		}
		require.NoError(t, ledger.Append(ctx, record(subID, plan.FeaturePipelines, 1, plan.Limited(1), base.Add(time.Hour))))

		all, err := ledger.History(ctx, subID, "", 0)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, plan.FeaturePipelines, all[0].Feature)
		assert.Nil(t, all[1].Limit)

		users, err := ledger.History(ctx, subID, plan.FeatureUsers, 2)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.EqualValues(t, 3, users[0].Count)
		assert.EqualValues(t, 2, users[1].Count)
	})

	t.Run("exceeded since", func(t *testing.T) {
		subID := newSubscription(t)
		since := base.AddDate(1, 0, 0)
		limit := plan.Limited(100)
		require.NoError(t, ledger.Append(ctx, record(subID, plan.FeatureDeals, 150, limit, since.Add(-time.Minute))))
		require.NoError(t, ledger.Append(ctx, record(subID, plan.FeatureDeals, 101, limit, since.Add(time.Minute))))
		require.NoError(t, ledger.Append(ctx, record(subID, plan.FeatureDeals, 100, limit, since.Add(2*time.Minute))))

		recs, err := ledger.ExceededSince(ctx, since)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.EqualValues(t, 101, recs[0].Count)
		assert.True(t, recs[0].LimitExceeded)
	})
}

func TestMemoryLedger(t *testing.T) {
	t.Parallel()
	runLedgerSuite(t, usage.NewMemoryLedger(), func(*testing.T) uuid.UUID { return uuid.New() })
}

func TestPGLedger(t *testing.T) {
	t.Parallel()
	pool := testinfra.Postgres(t)
	store := subscription.NewPGStore(pool)

	runLedgerSuite(t, usage.NewPGLedger(pool), func(t *testing.T) uuid.UUID {
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
