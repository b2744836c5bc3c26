package plan

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a plan does not name one.
const DefaultCurrency = "COP"

// StaticSource serves a fixed list of plans.
type StaticSource []Plan

func (s StaticSource) Load(context.Context) ([]Plan, error) {
	return slices.Clone(s), nil
}

// DefaultPlans is the built-in three-tier catalog.
func DefaultPlans() StaticSource {
	return StaticSource{
		{
			Code:         "STARTER",
			Name:         "Starter",
			Tier:         TierStarter,
			Description:  "Trial plan for new organizations",
			MonthlyPrice: decimal.Zero,
			AnnualPrice:  decimal.Zero,
			Currency:     DefaultCurrency,
			MaxContacts:  Limited(500),
			MaxUsers:     Limited(2),
			MaxPipelines: Limited(1),
			MaxDeals:     Limited(100),
			MaxStorageGB: Limited(1),
			Active:       true,
			SortOrder:    1,
		},
		{
			Code:         "PROFESSIONAL",
			Name:         "Professional",
			Tier:         TierProfessional,
			Description:  "For growing sales teams",
			MonthlyPrice: decimal.NewFromInt(49000),
			AnnualPrice:  decimal.NewFromInt(490000),
			Currency:     DefaultCurrency,
			MaxContacts:  Limited(5000),
			MaxUsers:     Limited(10),
			MaxPipelines: Limited(5),
			MaxDeals:     Limited(1000),
			MaxStorageGB: Limited(10),
			Active:       true,
			Featured:     true,
			SortOrder:    2,
		},
		{
			Code:         "ENTERPRISE",
			Name:         "Enterprise",
			Tier:         TierEnterprise,
			Description:  "Unlimited usage",
			MonthlyPrice: decimal.NewFromInt(199000),
			AnnualPrice:  decimal.NewFromInt(1990000),
			Currency:     DefaultCurrency,
			Active:       true,
			SortOrder:    3,
		},
	}
}
