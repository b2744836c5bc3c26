package plan

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PGSource loads plans from the plans table.
type PGSource struct {
	pool *pgxpool.Pool
}

func NewPGSource(pool *pgxpool.Pool) *PGSource {
	if pool == nil {
		panic("plan: pgxpool is required")
	}
	return &PGSource{pool: pool}
}

const selectPlans = `
SELECT code, name, tier, description, monthly_price::text, annual_price::text, currency,
       max_contacts, max_users, max_pipelines, max_deals, max_storage_gb,
       provider_monthly_plan_id, provider_annual_plan_id, active, featured, sort_order
FROM plans
ORDER BY sort_order, tier`

func (s *PGSource) Load(ctx context.Context) ([]Plan, error) {
	rows, err := s.pool.Query(ctx, selectPlans)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Plan, error) {
		var (
			p               Plan
			monthly, annual string
		)
		err := row.Scan(
			&p.Code, &p.Name, &p.Tier, &p.Description, &monthly, &annual, &p.Currency,
			&p.MaxContacts, &p.MaxUsers, &p.MaxPipelines, &p.MaxDeals, &p.MaxStorageGB,
			&p.ProviderMonthlyPlanID, &p.ProviderAnnualPlanID, &p.Active, &p.Featured, &p.SortOrder,
		)
		if err != nil {
			return Plan{}, err
		}
		if p.MonthlyPrice, err = decimal.NewFromString(monthly); err != nil {
			return Plan{}, err
		}
		if p.AnnualPrice, err = decimal.NewFromString(annual); err != nil {
			return Plan{}, err
		}
		return p, nil
	})
}

const upsertPlan = `
INSERT INTO plans (code, name, tier, description, monthly_price, annual_price, currency,
                   max_contacts, max_users, max_pipelines, max_deals, max_storage_gb,
                   provider_monthly_plan_id, provider_annual_plan_id, active, featured, sort_order)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (code) DO UPDATE SET
    name = EXCLUDED.name, tier = EXCLUDED.tier, description = EXCLUDED.description,
    monthly_price = EXCLUDED.monthly_price, annual_price = EXCLUDED.annual_price,
    currency = EXCLUDED.currency, max_contacts = EXCLUDED.max_contacts,
    max_users = EXCLUDED.max_users, max_pipelines = EXCLUDED.max_pipelines,
    max_deals = EXCLUDED.max_deals, max_storage_gb = EXCLUDED.max_storage_gb,
    provider_monthly_plan_id = EXCLUDED.provider_monthly_plan_id,
    provider_annual_plan_id = EXCLUDED.provider_annual_plan_id,
    active = EXCLUDED.active, featured = EXCLUDED.featured, sort_order = EXCLUDED.sort_order`

// Seed upserts plans by code in a single batch. It is used at startup to
// mirror a static or YAML catalog into the database.
func (s *PGSource) Seed(ctx context.Context, plans []Plan) error {
	batch := &pgx.Batch{}
	for _, p := range plans {
		batch.Queue(upsertPlan,
			p.Code, p.Name, int16(p.Tier), p.Description, p.MonthlyPrice.String(), p.AnnualPrice.String(), p.Currency,
			p.MaxContacts, p.MaxUsers, p.MaxPipelines, p.MaxDeals, p.MaxStorageGB,
			p.ProviderMonthlyPlanID, p.ProviderAnnualPlanID, p.Active, p.Featured, p.SortOrder,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	return nil
}
