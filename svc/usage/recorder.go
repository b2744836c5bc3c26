package usage

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/pkg/metrics"
	"github.com/dmitrymomot/subcycle/svc/plan"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

// Subscriptions resolves an organization's subscription.
type Subscriptions interface {
	Get(ctx context.Context, orgID uuid.UUID) (*subscription.Subscription, error)
}

// Plans resolves catalog entries by code.
type Plans interface {
	GetByCode(code string) (plan.Plan, error)
}

// Recorder appends usage snapshots against the organization's current plan.
type Recorder struct {
	ledger Ledger
	subs   Subscriptions
	plans  Plans
	now    func() time.Time
	log    *slog.Logger
}

type RecorderOption func(*Recorder)

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRecorder panics if any dependency is nil.
func NewRecorder(ledger Ledger, subs Subscriptions, plans Plans, opts ...RecorderOption) *Recorder {
	if ledger == nil || subs == nil || plans == nil {
		panic("usage: ledger, subscriptions and plans are required")
	}
	r := &Recorder{
		ledger: ledger,
		subs:   subs,
		plans:  plans,
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(logger.Component("usage"))
	return r
}

// RecordUsage appends the organization's current count for feature. The
// record is flagged as exceeded when count is strictly above the plan limit.
func (r *Recorder) RecordUsage(ctx context.Context, orgID uuid.UUID, feature plan.Feature, count int64) (Record, error) {
	if count < 0 {
		return Record{}, ErrInvalidCount
	}
	if feature == "" {
		return Record{}, ErrInvalidFeature
	}

	sub, err := r.subs.Get(ctx, orgID)
	if err != nil {
		return Record{}, err
	}
	p, err := r.plans.GetByCode(sub.PlanCode)
	if err != nil {
		return Record{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		ID:             id,
		SubscriptionID: sub.ID,
		Feature:        feature,
		Count:          count,
		RecordedAt:     r.now().UTC().Truncate(time.Microsecond),
	}
	if l := p.Limit(feature); l != nil {
		limit := *l
		rec.Limit = &limit
		rec.Percentage = plan.UsagePercentage(count, limit)
		rec.LimitExceeded = count > limit
	}

	if err := r.ledger.Append(ctx, rec); err != nil {
		r.log.ErrorContext(ctx, "failed to record usage",
			logger.OrganizationID(orgID),
			logger.Feature(feature),
			logger.Error(err),
		)
		return Record{}, err
	}
	metrics.UsageRecordsTotal.WithLabelValues(string(feature), strconv.FormatBool(rec.LimitExceeded)).Inc()

	if rec.LimitExceeded {
		r.log.WarnContext(ctx, "usage above plan limit",
			logger.OrganizationID(orgID),
			logger.Feature(feature),
			logger.Plan(p.Code),
			slog.Int64("count", count),
			slog.Int64("limit", *rec.Limit),
		)
	}
	return rec, nil
}

// CurrentUsage returns the latest recorded count, zero when none exists.
func (r *Recorder) CurrentUsage(ctx context.Context, subscriptionID uuid.UUID, feature plan.Feature) (int64, error) {
	return CurrentUsage(ctx, r.ledger, subscriptionID, feature)
}

// History returns the subscription's records across all features, newest first.
func (r *Recorder) History(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]Record, error) {
	return r.ledger.History(ctx, subscriptionID, "", limit)
}

func (r *Recorder) ExceededSince(ctx context.Context, since time.Time) ([]Record, error) {
	return r.ledger.ExceededSince(ctx, since)
}
