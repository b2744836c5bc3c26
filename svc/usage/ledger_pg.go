package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/subcycle/pkg/pg"
	"github.com/dmitrymomot/subcycle/svc/plan"
)

// PGLedger stores records in the usage_records table.
type PGLedger struct {
	pool *pgxpool.Pool
}

func NewPGLedger(pool *pgxpool.Pool) *PGLedger {
	if pool == nil {
		panic("usage: pgxpool is required")
	}
	return &PGLedger{pool: pool}
}

const recordColumns = `id, subscription_id, feature_code, usage_count, plan_limit,
	usage_percentage::text, limit_exceeded, recorded_at`

func scanRecord(row pgx.CollectableRow) (Record, error) {
	var (
		r       Record
		feature string
		pct     string
	)
	if err := row.Scan(&r.ID, &r.SubscriptionID, &feature, &r.Count, &r.Limit, &pct, &r.LimitExceeded, &r.RecordedAt); err != nil {
		return Record{}, err
	}
	r.Feature = plan.Feature(feature)
	p, err := decimal.NewFromString(pct)
	if err != nil {
		return Record{}, fmt.Errorf("parse usage percentage: %w", err)
	}
	r.Percentage = p
	return r, nil
}

func (l *PGLedger) Append(ctx context.Context, r Record) error {
	_, err := l.pool.Exec(ctx, `
INSERT INTO usage_records (id, subscription_id, feature_code, usage_count, plan_limit,
                           usage_percentage, limit_exceeded, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)`,
		r.ID, r.SubscriptionID, string(r.Feature), r.Count, r.Limit,
		r.Percentage.StringFixed(2), r.LimitExceeded, r.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("append usage record: %w", err)
	}
	return nil
}

func (l *PGLedger) Latest(ctx context.Context, subscriptionID uuid.UUID, feature plan.Feature) (Record, bool, error) {
	rows, err := l.pool.Query(ctx, `
SELECT `+recordColumns+` FROM usage_records
WHERE subscription_id = $1 AND feature_code = $2
ORDER BY recorded_at DESC, id DESC
LIMIT 1`, subscriptionID, string(feature))
	if err != nil {
		return Record{}, false, fmt.Errorf("query latest usage: %w", err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return r, true, nil
}

func (l *PGLedger) History(ctx context.Context, subscriptionID uuid.UUID, feature plan.Feature, limit int) ([]Record, error) {
	sql := `SELECT ` + recordColumns + ` FROM usage_records
WHERE subscription_id = $1 AND ($2 = '' OR feature_code = $2)
ORDER BY recorded_at DESC, id DESC`
	args := []any{subscriptionID, string(feature)}
	if limit > 0 {
		sql += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := l.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage history: %w", err)
	}
	return pgx.CollectRows(rows, scanRecord)
}

func (l *PGLedger) ExceededSince(ctx context.Context, since time.Time) ([]Record, error) {
	rows, err := l.pool.Query(ctx, `
SELECT `+recordColumns+` FROM usage_records
WHERE limit_exceeded AND recorded_at >= $1
ORDER BY recorded_at DESC, id DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("query exceeded usage: %w", err)
	}
	return pgx.CollectRows(rows, scanRecord)
}
