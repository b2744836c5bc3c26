package limits_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subcycle/svc/limits"
	"github.com/dmitrymomot/subcycle/svc/plan"
	"github.com/dmitrymomot/subcycle/svc/subscription"
	"github.com/dmitrymomot/subcycle/svc/usage"
)

type env struct {
	service  *limits.Service
	manager  *subscription.Manager
	recorder *usage.Recorder
	orgID    uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	catalog, err := plan.NewCatalog(ctx, plan.DefaultPlans())
	require.NoError(t, err)

	manager := subscription.NewManager(subscription.NewMemoryStore(), catalog)
	recorder := usage.NewRecorder(usage.NewMemoryLedger(), manager, catalog)

	orgID := uuid.New()
	_, err = manager.StartTrial(ctx, subscription.StartTrialParams{OrganizationID: orgID})
	require.NoError(t, err)

	return &env{
		service:  limits.NewService(manager, catalog, recorder),
		manager:  manager,
		recorder: recorder,
		orgID:    orgID,
	}
}

func TestService_Validate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("explicit count", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		d, err := e.service.Validate(ctx, limits.ValidateRequest{
			OrganizationID: e.orgID,
			Feature:        plan.FeatureContacts,
			CurrentCount:   ptr(450),
		})
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, "90.20", d.PercentageDisplay())
	})

	t.Run("count from ledger", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		_, err := e.recorder.RecordUsage(ctx, e.orgID, plan.FeatureDeals, 110)
		require.NoError(t, err)

		d, err := e.service.Validate(ctx, limits.ValidateRequest{OrganizationID: e.orgID, Feature: plan.FeatureDeals})
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.EqualValues(t, 110, d.CurrentUsage)
		assert.Equal(t, "PROFESSIONAL", d.RecommendedPlan)
	})

	t.Run("negative counts rejected", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		_, err := e.service.Validate(ctx, limits.ValidateRequest{OrganizationID: e.orgID, Feature: plan.FeatureDeals, CurrentCount: ptr(-1)})
		assert.ErrorIs(t, err, limits.ErrInvalidCount)
		_, err = e.service.Validate(ctx, limits.ValidateRequest{OrganizationID: e.orgID, Feature: plan.FeatureDeals, IncrementBy: ptr(-2)})
		assert.ErrorIs(t, err, limits.ErrInvalidCount)
	})

	t.Run("unknown organization", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		_, err := e.service.Validate(ctx, limits.ValidateRequest{OrganizationID: uuid.New(), Feature: plan.FeatureDeals})
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("enterprise has no recommendation", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		_, err := e.manager.Activate(ctx, subscription.ActivateParams{
			OrganizationID: e.orgID,
			PlanCode:       "ENTERPRISE",
			BillingPeriod:  subscription.BillingAnnual,
		})
		require.NoError(t, err)
		d, err := e.service.Validate(ctx, limits.ValidateRequest{OrganizationID: e.orgID, Feature: plan.FeatureContacts, CurrentCount: ptr(1 << 40)})
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Empty(t, d.RecommendedPlan)
	})
}

func TestService_Enforce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("limit exceeded", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		_, err := e.service.Enforce(ctx, limits.ValidateRequest{
			OrganizationID: e.orgID,
			Feature:        plan.FeatureContacts,
			CurrentCount:   ptr(550),
		})
		require.Error(t, err)
		assert.True(t, limits.IsLimitExceeded(err))

		var lerr *limits.LimitExceededError
		require.True(t, errors.As(err, &lerr))
		assert.Equal(t, plan.FeatureContacts, lerr.Feature)
		assert.EqualValues(t, 550, lerr.Current)
		assert.EqualValues(t, 500, lerr.Max)
	})

	t.Run("inactive subscription", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		_, err := e.manager.Cancel(ctx, subscription.CancelParams{OrganizationID: e.orgID, Immediate: true})
		require.NoError(t, err)

		_, err = e.service.Enforce(ctx, limits.ValidateRequest{OrganizationID: e.orgID, Feature: plan.FeatureUsers, CurrentCount: ptr(0)})
		assert.ErrorIs(t, err, limits.ErrSubscriptionInactive)
		assert.False(t, limits.IsLimitExceeded(err))
	})

	t.Run("warning is not an error", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		d, err := e.service.Enforce(ctx, limits.ValidateRequest{OrganizationID: e.orgID, Feature: plan.FeatureContacts, CurrentCount: ptr(520)})
		require.NoError(t, err)
		assert.True(t, d.Warning)
	})
}

func TestService_Overview(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.recorder.RecordUsage(ctx, e.orgID, plan.FeatureContacts, 549)
	require.NoError(t, err)
	_, err = e.recorder.RecordUsage(ctx, e.orgID, plan.FeatureUsers, 2)
	require.NoError(t, err)
	_, err = e.recorder.RecordUsage(ctx, e.orgID, plan.FeatureUsers, 3)
	require.NoError(t, err)

	o, err := e.service.Overview(ctx, e.orgID)
	require.NoError(t, err)
	assert.Equal(t, "STARTER", o.PlanCode)
	assert.Equal(t, string(subscription.StatusTrialing), o.Status)
	assert.False(t, o.ReadOnly)
	require.Len(t, o.Features, len(plan.Features))

	byFeature := make(map[plan.Feature]limits.FeatureUsage)
	for _, f := range o.Features {
		byFeature[f.Feature] = f
	}

	contacts := byFeature[plan.FeatureContacts]
	assert.EqualValues(t, 549, contacts.Current)
	assert.True(t, contacts.CanCreate)
	require.NotNil(t, contacts.Remaining)
	assert.Zero(t, *contacts.Remaining)
	assert.Equal(t, "109.80", contacts.Percentage.StringFixed(2))

	users := byFeature[plan.FeatureUsers]
	assert.EqualValues(t, 3, users.Current)
	assert.False(t, users.CanCreate)

	pipelines := byFeature[plan.FeaturePipelines]
	assert.Zero(t, pipelines.Current)
	assert.True(t, pipelines.CanCreate)
	require.NotNil(t, pipelines.Remaining)
	assert.EqualValues(t, 1, *pipelines.Remaining)
}

func TestService_ReadOnlyOverview(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()
	catalog, err := plan.NewCatalog(ctx, plan.DefaultPlans())
	require.NoError(t, err)

	clock := now
	manager := subscription.NewManager(subscription.NewMemoryStore(), catalog,
		subscription.WithClock(func() time.Time { return clock }))
	orgID := uuid.New()
	sub, err := manager.StartTrial(ctx, subscription.StartTrialParams{OrganizationID: orgID})
	require.NoError(t, err)

	clock = now.AddDate(0, 0, 22)
	_, err = manager.ExpireTrial(ctx, sub.ID)
	require.NoError(t, err)

	service := limits.NewService(manager, catalog, usage.NewRecorder(usage.NewMemoryLedger(), manager, catalog))
	o, err := service.Overview(ctx, orgID)
	require.NoError(t, err)
	assert.True(t, o.ReadOnly)
	assert.Equal(t, string(subscription.StatusGracePeriod), o.Status)
}
