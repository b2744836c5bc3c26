package plan_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subcycle/internal/testinfra"
	"github.com/dmitrymomot/subcycle/svc/plan"
)

func TestPGSource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := plan.NewPGSource(testinfra.Postgres(t))

	seed, err := plan.DefaultPlans().Load(ctx)
	require.NoError(t, err)
	require.NoError(t, src.Seed(ctx, seed))

	c, err := plan.NewCatalog(ctx, src)
	require.NoError(t, err)
	assert.Len(t, c.List(), len(seed))

	starter, err := c.GetByCode("STARTER")
	require.NoError(t, err)
	assert.Equal(t, plan.TierStarter, starter.Tier)
	assert.EqualValues(t, 500, *starter.MaxContacts)
	assert.True(t, starter.MonthlyPrice.IsZero())

	t.Run("seed upserts by code", func(t *testing.T) {
		changed := make([]plan.Plan, len(seed))
		copy(changed, seed)
		changed[0].Name = "Starter 2"
		changed[0].MonthlyPrice = decimal.RequireFromString("1000.50")
		require.NoError(t, src.Seed(ctx, changed))

		plans, err := src.Load(ctx)
		require.NoError(t, err)
		require.Len(t, plans, len(seed))
		for _, p := range plans {
			if p.Code == "STARTER" {
				assert.Equal(t, "Starter 2", p.Name)
				assert.Equal(t, "1000.5", p.MonthlyPrice.String())
			}
		}
	})
}
