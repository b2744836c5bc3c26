package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/subcycle/pkg/pg"
)

// PGStore persists subscriptions in Postgres. Update locks the row with
// SELECT ... FOR UPDATE and writes with an optimistic version check.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("subscription: pgxpool is required")
	}
	return &PGStore{pool: pool}
}

const subscriptionColumns = `id, organization_id, plan_code, status, billing_period,
	trial_started_at, trial_ends_at, trial_used,
	provider_subscription_id, provider_payer_id, provider_agreement_id,
	current_period_start, current_period_end, next_billing_at, canceled_at, ended_at, cancel_reason,
	amount::text, currency, owner_email, status_changed_at, version, created_at, updated_at`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		s          Subscription
		providerID *string
		amount     string
	)
	err := row.Scan(
		&s.ID, &s.OrganizationID, &s.PlanCode, &s.Status, &s.BillingPeriod,
		&s.TrialStartedAt, &s.TrialEndsAt, &s.TrialUsed,
		&providerID, &s.ProviderPayerID, &s.ProviderAgreementID,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.NextBillingAt, &s.CanceledAt, &s.EndedAt, &s.CancelReason,
		&amount, &s.Currency, &s.OwnerEmail, &s.StatusChangedAt, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	if providerID != nil {
		s.ProviderSubscriptionID = *providerID
	}
	if s.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return &s, nil
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func (s *PGStore) Create(ctx context.Context, sub *Subscription) error {
	if sub.Version == 0 {
		sub.Version = 1
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO subscriptions (`+strings.ReplaceAll(subscriptionColumns, "amount::text", "amount")+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
        $18::numeric, $19, $20, $21, $22, $23, $24)`,
		sub.ID, sub.OrganizationID, sub.PlanCode, string(sub.Status), string(sub.BillingPeriod),
		sub.TrialStartedAt, sub.TrialEndsAt, sub.TrialUsed,
		nullableString(sub.ProviderSubscriptionID), sub.ProviderPayerID, sub.ProviderAgreementID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.NextBillingAt, sub.CanceledAt, sub.EndedAt, sub.CancelReason,
		sub.Amount.String(), sub.Currency, sub.OwnerEmail, sub.StatusChangedAt, sub.Version, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return errors.Join(ErrSubscriptionAlreadyExists, err)
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *PGStore) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return scanSubscription(s.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
}

func (s *PGStore) GetByOrganization(ctx context.Context, orgID uuid.UUID) (*Subscription, error) {
	return scanSubscription(s.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE organization_id = $1`, orgID))
}

func (s *PGStore) GetByProviderSubscriptionID(ctx context.Context, providerID string) (*Subscription, error) {
	if providerID == "" {
		return nil, ErrSubscriptionNotFound
	}
	return scanSubscription(s.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider_subscription_id = $1`, providerID))
}

func (s *PGStore) Update(ctx context.Context, id uuid.UUID, fn func(*Subscription) error) (*Subscription, error) {
	var result *Subscription
	err := pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := scanSubscription(tx.QueryRow(ctx,
			`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		result = current

		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.ID, next.OrganizationID = current.ID, current.OrganizationID
		next.Version = current.Version + 1

		tag, err := tx.Exec(ctx, `
UPDATE subscriptions SET
    plan_code = $3, status = $4, billing_period = $5,
    trial_started_at = $6, trial_ends_at = $7, trial_used = $8,
    provider_subscription_id = $9, provider_payer_id = $10, provider_agreement_id = $11,
    current_period_start = $12, current_period_end = $13, next_billing_at = $14,
    canceled_at = $15, ended_at = $16, cancel_reason = $17,
    amount = $18::numeric, currency = $19, owner_email = $20,
    status_changed_at = $21, updated_at = $22, version = $23
WHERE id = $1 AND version = $2`,
			id, current.Version,
			next.PlanCode, string(next.Status), string(next.BillingPeriod),
			next.TrialStartedAt, next.TrialEndsAt, next.TrialUsed,
			nullableString(next.ProviderSubscriptionID), next.ProviderPayerID, next.ProviderAgreementID,
			next.CurrentPeriodStart, next.CurrentPeriodEnd, next.NextBillingAt,
			next.CanceledAt, next.EndedAt, next.CancelReason,
			next.Amount.String(), next.Currency, next.OwnerEmail,
			next.StatusChangedAt, next.UpdatedAt, next.Version,
		)
		if err != nil {
			if pg.IsDuplicateKeyError(err) {
				return errors.Join(ErrSubscriptionAlreadyExists, err)
			}
			return fmt.Errorf("update subscription: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConcurrentUpdate
		}
		result = next
		return nil
	})
	return result, err
}

func (s *PGStore) Find(ctx context.Context, q Query) ([]*Subscription, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if !q.TrialEndsFrom.IsZero() {
		where = append(where, "trial_ends_at >= "+arg(q.TrialEndsFrom))
	}
	if !q.TrialEndsBefore.IsZero() {
		where = append(where, "trial_ends_at < "+arg(q.TrialEndsBefore))
	}
	if !q.StatusChangedBefore.IsZero() {
		where = append(where, "status_changed_at < "+arg(q.StatusChangedBefore))
	}
	if !q.EndDueBefore.IsZero() {
		where = append(where, "COALESCE(ended_at, current_period_end, canceled_at) < "+arg(q.EndDueBefore))
	}

	sql := `SELECT ` + subscriptionColumns + ` FROM subscriptions`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY created_at, id"
	if q.Limit > 0 {
		sql += " LIMIT " + arg(q.Limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *PGStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM subscriptions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count subscriptions: %w", err)
	}
	counts := make(map[Status]int64, len(Statuses))
	var (
		status string
		n      int64
	)
	_, err = pgx.ForEachRow(rows, []any{&status, &n}, func() error {
		counts[Status(status)] = n
		return nil
	})
	return counts, err
}
