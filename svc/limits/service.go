package limits

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/pkg/metrics"
	"github.com/dmitrymomot/subcycle/svc/plan"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

type Subscriptions interface {
	Get(ctx context.Context, orgID uuid.UUID) (*subscription.Subscription, error)
}

type Plans interface {
	GetByCode(code string) (plan.Plan, error)
	Next(tier plan.Tier) (plan.Plan, bool)
}

// Usage resolves the current recorded count of a feature.
type Usage interface {
	CurrentUsage(ctx context.Context, subscriptionID uuid.UUID, feature plan.Feature) (int64, error)
}

// Service answers limit questions for an organization at request time.
type Service struct {
	subs  Subscriptions
	plans Plans
	usage Usage
	log   *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService panics if any dependency is nil.
func NewService(subs Subscriptions, plans Plans, usage Usage, opts ...Option) *Service {
	if subs == nil || plans == nil || usage == nil {
		panic("limits: subscriptions, plans and usage are required")
	}
	s := &Service{subs: subs, plans: plans, usage: usage, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("limits"))
	return s
}

// ValidateRequest asks whether a feature may grow. A nil CurrentCount is
// resolved from the usage ledger.
type ValidateRequest struct {
	OrganizationID uuid.UUID
	Feature        plan.Feature
	CurrentCount   *int64
	IncrementBy    *int64
	Language       language.Tag
}

func (s *Service) Validate(ctx context.Context, req ValidateRequest) (Decision, error) {
	if req.Feature == "" {
		return Decision{}, ErrInvalidFeature
	}
	if (req.CurrentCount != nil && *req.CurrentCount < 0) || (req.IncrementBy != nil && *req.IncrementBy < 0) {
		return Decision{}, ErrInvalidCount
	}

	sub, err := s.subs.Get(ctx, req.OrganizationID)
	if err != nil {
		return Decision{}, err
	}
	p, err := s.plans.GetByCode(sub.PlanCode)
	if err != nil {
		return Decision{}, err
	}

	var current int64
	if req.CurrentCount != nil {
		current = *req.CurrentCount
	} else if current, err = s.usage.CurrentUsage(ctx, sub.ID, req.Feature); err != nil {
		return Decision{}, err
	}

	in := Input{
		Subscription: sub,
		Plan:         p,
		Feature:      req.Feature,
		CurrentCount: current,
		IncrementBy:  req.IncrementBy,
		Language:     req.Language,
	}
	if next, ok := s.plans.Next(p.Tier); ok {
		in.NextPlan = next.Code
	}

	d := Evaluate(in)
	metrics.LimitDecisionsTotal.WithLabelValues(string(req.Feature), d.outcome()).Inc()
	if !d.Allowed || d.Warning {
		s.log.InfoContext(ctx, "feature limit decision",
			logger.OrganizationID(req.OrganizationID),
			logger.Feature(req.Feature),
			logger.Plan(p.Code),
			logger.Status(sub.Status),
			slog.String("outcome", d.outcome()),
			slog.Int64("current", current),
		)
	}
	return d, nil
}

// Enforce is Validate expressed as an error: ErrSubscriptionInactive when
// the subscription blocks writes, *LimitExceededError when the limit does.
func (s *Service) Enforce(ctx context.Context, req ValidateRequest) (Decision, error) {
	d, err := s.Validate(ctx, req)
	if err != nil {
		return d, err
	}
	switch d.Reason {
	case ReasonSubscriptionInactive:
		return d, ErrSubscriptionInactive
	case ReasonLimitExceeded:
		var maxLimit int64
		if d.MaxLimit != nil {
			maxLimit = *d.MaxLimit
		}
		return d, &LimitExceededError{
			Feature:  d.Feature,
			Current:  d.CurrentUsage,
			Max:      maxLimit,
			Decision: d,
		}
	}
	return d, nil
}

// FeatureUsage is one row of an organization's limits overview.
type FeatureUsage struct {
	Feature    plan.Feature    `json:"feature"`
	Max        *int64          `json:"max"`
	Current    int64           `json:"current"`
	Remaining  *int64          `json:"remaining"`
	Percentage decimal.Decimal `json:"usage_percentage"`
	CanCreate  bool            `json:"can_create"`
}

// Overview summarizes every feature of the organization's plan.
type Overview struct {
	PlanCode string         `json:"plan_code"`
	PlanName string         `json:"plan_name"`
	Status   string         `json:"status"`
	ReadOnly bool           `json:"read_only"`
	Features []FeatureUsage `json:"features"`
}

func (s *Service) Overview(ctx context.Context, orgID uuid.UUID) (Overview, error) {
	sub, err := s.subs.Get(ctx, orgID)
	if err != nil {
		return Overview{}, err
	}
	p, err := s.plans.GetByCode(sub.PlanCode)
	if err != nil {
		return Overview{}, err
	}

	out := Overview{
		PlanCode: p.Code,
		PlanName: p.Name,
		Status:   string(sub.Status),
		ReadOnly: sub.IsReadOnly(),
		Features: make([]FeatureUsage, 0, len(plan.Features)),
	}
	for _, f := range plan.Features {
		current, err := s.usage.CurrentUsage(ctx, sub.ID, f)
		if err != nil {
			return Overview{}, err
		}
		row := FeatureUsage{Feature: f, Current: current, Percentage: decimal.Zero, CanCreate: true}
		if l := p.Limit(f); l != nil {
			maxLimit := *l
			remaining := max(0, maxLimit-current)
			row.Max = &maxLimit
			row.Remaining = &remaining
			row.Percentage = plan.UsagePercentage(current, maxLimit)
			row.CanCreate = current < plan.SoftLimit(maxLimit)
		}
		out.Features = append(out.Features, row)
	}
	return out, nil
}
