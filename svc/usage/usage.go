package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/subcycle/svc/plan"
)

// Record is an immutable snapshot of a feature's usage count.
type Record struct {
	ID             uuid.UUID       `json:"id"`
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	Feature        plan.Feature    `json:"feature"`
	Count          int64           `json:"count"`
	Limit          *int64          `json:"limit"`
	Percentage     decimal.Decimal `json:"percentage"`
	LimitExceeded  bool            `json:"limit_exceeded"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

// Ledger is an append-only log of usage records. The current usage of a
// (subscription, feature) pair is the count of its most recent record.
type Ledger interface {
	Append(ctx context.Context, r Record) error

	// Latest returns the most recent record, or false when none exists.
	Latest(ctx context.Context, subscriptionID uuid.UUID, feature plan.Feature) (Record, bool, error)

	// History returns records newest first. An empty feature matches all
	// features; limit <= 0 means no limit.
	History(ctx context.Context, subscriptionID uuid.UUID, feature plan.Feature, limit int) ([]Record, error)

	// ExceededSince returns records with LimitExceeded set at or after since,
	// newest first.
	ExceededSince(ctx context.Context, since time.Time) ([]Record, error)
}

// CurrentUsage resolves the current count from l, zero when nothing was
// recorded.
func CurrentUsage(ctx context.Context, l Ledger, subscriptionID uuid.UUID, feature plan.Feature) (int64, error) {
	rec, ok, err := l.Latest(ctx, subscriptionID, feature)
	if err != nil || !ok {
		return 0, err
	}
	return rec.Count, nil
}
