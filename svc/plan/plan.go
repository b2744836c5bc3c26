package plan

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tier orders plans from cheapest to most capable.
type Tier int

const (
	TierStarter      Tier = 1
	TierProfessional Tier = 2
	TierEnterprise   Tier = 3
)

func (t Tier) String() string {
	switch t {
	case TierStarter:
		return "STARTER"
	case TierProfessional:
		return "PROFESSIONAL"
	case TierEnterprise:
		return "ENTERPRISE"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t >= TierStarter && t <= TierEnterprise
}

// Feature is a metered resource code.
type Feature string

const (
	FeatureContacts  Feature = "CONTACTS"
	FeatureUsers     Feature = "USERS"
	FeaturePipelines Feature = "PIPELINES"
	FeatureDeals     Feature = "DEALS"
	FeatureStorageGB Feature = "STORAGE_GB"
)

// Features lists the metered features in display order.
var Features = []Feature{FeatureContacts, FeatureUsers, FeaturePipelines, FeatureDeals, FeatureStorageGB}

// ParseFeature normalizes a feature code. Unknown codes are returned as-is
// and treated as unlimited by Plan.Limit.
func ParseFeature(s string) Feature {
	return Feature(strings.ToUpper(strings.TrimSpace(s)))
}

// Plan is an immutable catalog entry. A nil limit means unlimited.
type Plan struct {
	Code         string          `json:"code" yaml:"code"`
	Name         string          `json:"name" yaml:"name"`
	Tier         Tier            `json:"tier" yaml:"tier"`
	Description  string          `json:"description,omitempty" yaml:"description"`
	MonthlyPrice decimal.Decimal `json:"monthly_price" yaml:"monthly_price"`
	AnnualPrice  decimal.Decimal `json:"annual_price" yaml:"annual_price"`
	Currency     string          `json:"currency" yaml:"currency"`

	MaxContacts  *int64 `json:"max_contacts" yaml:"max_contacts"`
	MaxUsers     *int64 `json:"max_users" yaml:"max_users"`
	MaxPipelines *int64 `json:"max_pipelines" yaml:"max_pipelines"`
	MaxDeals     *int64 `json:"max_deals" yaml:"max_deals"`
	MaxStorageGB *int64 `json:"max_storage_gb" yaml:"max_storage_gb"`

	ProviderMonthlyPlanID string `json:"-" yaml:"provider_monthly_plan_id"`
	ProviderAnnualPlanID  string `json:"-" yaml:"provider_annual_plan_id"`

	Active    bool `json:"active" yaml:"active"`
	Featured  bool `json:"featured" yaml:"featured"`
	SortOrder int  `json:"sort_order" yaml:"sort_order"`
}

// Limit returns the configured limit for feature, or nil when the feature is
// unlimited or unknown.
func (p Plan) Limit(feature Feature) *int64 {
	switch feature {
	case FeatureContacts:
		return p.MaxContacts
	case FeatureUsers:
		return p.MaxUsers
	case FeaturePipelines:
		return p.MaxPipelines
	case FeatureDeals:
		return p.MaxDeals
	case FeatureStorageGB:
		return p.MaxStorageGB
	default:
		return nil
	}
}

// IsFree reports whether both prices are zero.
func (p Plan) IsFree() bool {
	return p.MonthlyPrice.IsZero() && p.AnnualPrice.IsZero()
}

// Limited is a convenience for building plan literals.
func Limited(n int64) *int64 { return &n }
