package billing

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryInvoiceStore keeps invoices in process memory.
type MemoryInvoiceStore struct {
	mu        sync.RWMutex
	invoices  []Invoice
	byPayment map[string]int
}

func NewMemoryInvoiceStore() *MemoryInvoiceStore {
	return &MemoryInvoiceStore{byPayment: make(map[string]int)}
}

func (s *MemoryInvoiceStore) Create(_ context.Context, inv Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ProviderPaymentID != "" {
		if _, ok := s.byPayment[inv.ProviderPaymentID]; ok {
			return ErrDuplicateInvoice
		}
		s.byPayment[inv.ProviderPaymentID] = len(s.invoices)
	}
	s.invoices = append(s.invoices, inv)
	return nil
}

func (s *MemoryInvoiceStore) GetByProviderPaymentID(_ context.Context, providerPaymentID string) (Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byPayment[providerPaymentID]
	if !ok || providerPaymentID == "" {
		return Invoice{}, ErrInvoiceNotFound
	}
	return s.invoices[i], nil
}

func (s *MemoryInvoiceStore) History(_ context.Context, subscriptionID uuid.UUID, limit int) ([]Invoice, error) {
	s.mu.RLock()
	out := make([]Invoice, 0)
	for _, inv := range s.invoices {
		if inv.SubscriptionID == subscriptionID {
			out = append(out, inv)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Invoice) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.Number, a.Number)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
