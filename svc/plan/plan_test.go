package plan_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subcycle/svc/plan"
)

func newCatalog(t *testing.T) *plan.Catalog {
	t.Helper()
	c, err := plan.NewCatalog(context.Background(), plan.DefaultPlans())
	require.NoError(t, err)
	return c
}

func TestCatalog_Lookups(t *testing.T) {
	t.Parallel()
	c := newCatalog(t)

	t.Run("by code is case insensitive", func(t *testing.T) {
		t.Parallel()
		p, err := c.GetByCode("professional")
		require.NoError(t, err)
		assert.Equal(t, plan.TierProfessional, p.Tier)
		assert.True(t, p.MonthlyPrice.Equal(decimal.NewFromInt(49000)))
	})

	t.Run("by tier", func(t *testing.T) {
		t.Parallel()
		p, err := c.GetByTier(plan.TierStarter)
		require.NoError(t, err)
		assert.Equal(t, "STARTER", p.Code)
		assert.True(t, p.IsFree())
	})

	t.Run("missing plan", func(t *testing.T) {
		t.Parallel()
		_, err := c.GetByCode("GOLD")
		assert.ErrorIs(t, err, plan.ErrPlanNotFound)
		_, err = c.GetByTier(plan.Tier(9))
		assert.ErrorIs(t, err, plan.ErrPlanNotFound)
	})

	t.Run("next tier", func(t *testing.T) {
		t.Parallel()
		next, ok := c.Next(plan.TierStarter)
		require.True(t, ok)
		assert.Equal(t, "PROFESSIONAL", next.Code)

		_, ok = c.Next(plan.TierEnterprise)
		assert.False(t, ok)
	})

	t.Run("list is ordered", func(t *testing.T) {
		t.Parallel()
		var codes []string
		for _, p := range c.List() {
			codes = append(codes, p.Code)
		}
		assert.Equal(t, []string{"STARTER", "PROFESSIONAL", "ENTERPRISE"}, codes)
	})
}

func TestNewCatalog_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		plans plan.StaticSource
		want  error
	}{
		{"empty", plan.StaticSource{}, plan.ErrNoPlans},
		{"missing code", plan.StaticSource{{Tier: plan.TierStarter}}, plan.ErrInvalidPlan},
		{"bad tier", plan.StaticSource{{Code: "X", Tier: 7}}, plan.ErrInvalidPlan},
		{"negative limit", plan.StaticSource{{Code: "X", Tier: 1, MaxUsers: plan.Limited(-1)}}, plan.ErrInvalidPlan},
		{"duplicate code", plan.StaticSource{{Code: "X", Tier: 1}, {Code: "x", Tier: 2}}, plan.ErrDuplicatePlanCode},
		{"duplicate tier", plan.StaticSource{{Code: "X", Tier: 1}, {Code: "Y", Tier: 1}}, plan.ErrDuplicatePlanTier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := plan.NewCatalog(context.Background(), tt.plans)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("source error", func(t *testing.T) {
		t.Parallel()
		_, err := plan.NewCatalog(context.Background(), failingSource{})
		assert.ErrorIs(t, err, plan.ErrFailedToLoadPlans)
	})

	t.Run("nil source panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { _, _ = plan.NewCatalog(context.Background(), nil) })
	})
}

type failingSource struct{}

func (failingSource) Load(context.Context) ([]plan.Plan, error) { return nil, errors.New("boom") }

func TestPlan_Limit(t *testing.T) {
	t.Parallel()

	p, err := newCatalog(t).GetByCode("STARTER")
	require.NoError(t, err)

	require.NotNil(t, p.Limit(plan.FeatureContacts))
	assert.EqualValues(t, 500, *p.Limit(plan.FeatureContacts))
	assert.Nil(t, p.Limit(plan.Feature("WIDGETS")))
	assert.Equal(t, plan.FeatureDeals, plan.ParseFeature(" deals "))
}

func TestSoftLimitAndPercentage(t *testing.T) {
	t.Parallel()

	assert.EqualValues(t, 550, plan.SoftLimit(500))
	assert.EqualValues(t, 1, plan.SoftLimit(1))
	assert.EqualValues(t, 11, plan.SoftLimit(10))
	assert.EqualValues(t, 3, plan.SoftLimit(3))

	assert.Equal(t, "90.20", plan.UsagePercentage(451, 500).StringFixed(2))
	assert.Equal(t, "33.33", plan.UsagePercentage(1, 3).StringFixed(2))
	assert.Equal(t, "66.67", plan.UsagePercentage(2, 3).StringFixed(2))
	assert.True(t, plan.UsagePercentage(5, 0).IsZero())
}

func TestYAMLSource(t *testing.T) {
	t.Parallel()

	doc := []byte(`
plans:
  - code: basic
    name: Basic
    tier: 1
    monthly_price: 0
    annual_price: 0
    max_contacts: 100
    active: true
  - code: PRO
    name: Pro
    tier: 2
    monthly_price: "59000.50"
    annual_price: 590000
    currency: USD
    active: true
`)
	c, err := plan.NewCatalog(context.Background(), plan.YAMLSource{Data: doc})
	require.NoError(t, err)

	basic, err := c.GetByCode("BASIC")
	require.NoError(t, err)
	assert.Equal(t, plan.DefaultCurrency, basic.Currency)
	assert.EqualValues(t, 100, *basic.MaxContacts)
	assert.Nil(t, basic.MaxUsers)

	pro, err := c.GetByTier(plan.TierProfessional)
	require.NoError(t, err)
	assert.Equal(t, "59000.5", pro.MonthlyPrice.String())
	assert.Equal(t, "USD", pro.Currency)

	_, err = plan.YAMLSource{Data: []byte("plans:\n  - code: X\n    colour: red\n")}.Load(context.Background())
	assert.Error(t, err)
}
