package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/subcycle/pkg/pg"
)

// PGInvoiceStore stores invoices in the invoices table.
type PGInvoiceStore struct {
	pool *pgxpool.Pool
}

func NewPGInvoiceStore(pool *pgxpool.Pool) *PGInvoiceStore {
	if pool == nil {
		panic("billing: pgxpool is required")
	}
	return &PGInvoiceStore{pool: pool}
}

const invoiceColumns = `id, subscription_id, number, amount::text, currency, status,
	period_start, period_end, paid_at, provider_payment_id, failure_reason, created_at`

func scanInvoice(row pgx.CollectableRow) (Invoice, error) {
	var (
		inv    Invoice
		amount string
		status string
	)
	err := row.Scan(&inv.ID, &inv.SubscriptionID, &inv.Number, &amount, &inv.Currency, &status,
		&inv.PeriodStart, &inv.PeriodEnd, &inv.PaidAt, &inv.ProviderPaymentID, &inv.FailureReason, &inv.CreatedAt)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Amount, err = decimal.NewFromString(amount); err != nil {
		return Invoice{}, fmt.Errorf("parse invoice amount: %w", err)
	}
	inv.Status = InvoiceStatus(status)
	return inv, nil
}

func (s *PGInvoiceStore) Create(ctx context.Context, inv Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO invoices (id, subscription_id, number, amount, currency, status,
                      period_start, period_end, paid_at, provider_payment_id, failure_reason, created_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12)`,
		inv.ID, inv.SubscriptionID, inv.Number, inv.Amount.StringFixed(2), inv.Currency, string(inv.Status),
		inv.PeriodStart, inv.PeriodEnd, inv.PaidAt, inv.ProviderPaymentID, inv.FailureReason, inv.CreatedAt,
	)
	switch {
	case err == nil:
		return nil
	case pg.IsDuplicateKeyError(err):
		return ErrDuplicateInvoice
	default:
		return fmt.Errorf("create invoice: %w", err)
	}
}

func (s *PGInvoiceStore) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (Invoice, error) {
	if providerPaymentID == "" {
		return Invoice{}, ErrInvoiceNotFound
	}
	rows, err := s.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE provider_payment_id = $1`, providerPaymentID)
	if err != nil {
		return Invoice{}, fmt.Errorf("query invoice: %w", err)
	}
	inv, err := pgx.CollectExactlyOneRow(rows, scanInvoice)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func (s *PGInvoiceStore) History(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]Invoice, error) {
	sql := `SELECT ` + invoiceColumns + ` FROM invoices
WHERE subscription_id = $1
ORDER BY created_at DESC, number DESC`
	args := []any{subscriptionID}
	if limit > 0 {
		sql += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query invoice history: %w", err)
	}
	return pgx.CollectRows(rows, scanInvoice)
}
