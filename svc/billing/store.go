package billing

import (
	"context"

	"github.com/google/uuid"
)

// InvoiceStore persists invoices. Create fails with ErrDuplicateInvoice when
// the provider payment id is already recorded.
type InvoiceStore interface {
	Create(ctx context.Context, inv Invoice) error
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (Invoice, error)
	// History returns the invoices of a subscription, newest first.
	// A non-positive limit returns all of them.
	History(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]Invoice, error)
}
