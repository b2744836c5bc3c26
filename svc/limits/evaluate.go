package limits

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/subcycle/svc/plan"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

// Reason explains a denial.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonSubscriptionInactive Reason = "SUBSCRIPTION_INACTIVE"
	ReasonLimitExceeded        Reason = "LIMIT_EXCEEDED"
)

// Input is everything Evaluate needs. IncrementBy defaults to 1 when nil.
// NextPlan is the code recommended on denial or warning, empty for the top
// tier.
type Input struct {
	Subscription *subscription.Subscription
	Plan         plan.Plan
	NextPlan     string
	Feature      plan.Feature
	CurrentCount int64
	IncrementBy  *int64
	Language     language.Tag
}

// Decision is the outcome of a limit evaluation.
type Decision struct {
	Allowed         bool            `json:"allowed"`
	Reason          Reason          `json:"reason,omitempty"`
	Feature         plan.Feature    `json:"feature"`
	CurrentUsage    int64           `json:"current_usage"`
	MaxLimit        *int64          `json:"max_limit"`
	Remaining       *int64          `json:"remaining"`
	Percentage      decimal.Decimal `json:"usage_percentage"`
	Warning         bool            `json:"warning"`
	Message         string          `json:"upgrade_message,omitempty"`
	RecommendedPlan string          `json:"recommended_plan,omitempty"`
}

// PercentageDisplay renders the percentage with two decimals.
func (d Decision) PercentageDisplay() string {
	return d.Percentage.StringFixed(2)
}

func (d Decision) outcome() string {
	switch {
	case d.Reason == ReasonSubscriptionInactive:
		return "inactive"
	case !d.Allowed:
		return "denied"
	case d.Warning:
		return "warning"
	default:
		return "allowed"
	}
}

// Evaluate decides whether CurrentCount may grow by IncrementBy under the
// plan. Usage up to floor(max × 1.10) is tolerated; usage above max but
// within that band is allowed with a warning.
func Evaluate(in Input) Decision {
	d := Decision{
		Feature:      in.Feature,
		CurrentUsage: in.CurrentCount,
		Percentage:   decimal.Zero,
	}

	if in.Subscription == nil || in.Subscription.IsReadOnly() || !in.Subscription.CanAccess() {
		d.Reason = ReasonSubscriptionInactive
		d.Message = inactiveMessage(in.Language)
		return d
	}

	limit := in.Plan.Limit(in.Feature)
	if limit == nil {
		d.Allowed = true
		return d
	}
	maxLimit := *limit
	d.MaxLimit = &maxLimit

	increment := int64(1)
	if in.IncrementBy != nil {
		increment = *in.IncrementBy
	}
	// Compared as headroom so that counts near MaxInt64 cannot wrap.
	if increment > plan.SoftLimit(maxLimit)-in.CurrentCount {
		d.Reason = ReasonLimitExceeded
		d.Remaining = new(int64)
		d.Percentage = plan.UsagePercentage(in.CurrentCount, maxLimit)
		d.Message = limitMessage(in.Language, in.Feature, in.Plan.Name)
		d.RecommendedPlan = in.NextPlan
		return d
	}

	projected := in.CurrentCount + increment
	remaining := maxLimit - projected
	if remaining < 0 {
		remaining = 0
	}
	d.Allowed = true
	d.Remaining = &remaining
	d.Percentage = plan.UsagePercentage(projected, maxLimit)
	if projected > maxLimit {
		d.Warning = true
		d.Message = limitMessage(in.Language, in.Feature, in.Plan.Name)
		d.RecommendedPlan = in.NextPlan
	}
	return d
}
