package subscription

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory. Updates to one record are
// serialized by a per-record mutex.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[uuid.UUID]*memoryRecord
	byOrg      map[uuid.UUID]uuid.UUID
	byProvider map[string]uuid.UUID
}

type memoryRecord struct {
	lock sync.Mutex // held for the whole read-modify-write
	sub  *Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:    make(map[uuid.UUID]*memoryRecord),
		byOrg:      make(map[uuid.UUID]uuid.UUID),
		byProvider: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Create(_ context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byOrg[sub.OrganizationID]; exists {
		return ErrSubscriptionAlreadyExists
	}
	if _, exists := s.records[sub.ID]; exists {
		return ErrSubscriptionAlreadyExists
	}
	if sub.Version == 0 {
		sub.Version = 1
	}
	s.records[sub.ID] = &memoryRecord{sub: sub.Clone()}
	s.byOrg[sub.OrganizationID] = sub.ID
	if sub.ProviderSubscriptionID != "" {
		s.byProvider[sub.ProviderSubscriptionID] = sub.ID
	}
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return rec.sub.Clone(), nil
}

func (s *MemoryStore) GetByOrganization(ctx context.Context, orgID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	id, ok := s.byOrg[orgID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *MemoryStore) GetByProviderSubscriptionID(ctx context.Context, providerID string) (*Subscription, error) {
	s.mu.RLock()
	id, ok := s.byProvider[providerID]
	s.mu.RUnlock()
	if !ok || providerID == "" {
		return nil, ErrSubscriptionNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, fn func(*Subscription) error) (*Subscription, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSubscriptionNotFound
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	current := rec.sub.Clone()
	s.mu.RUnlock()

	next := current.Clone()
	if err := fn(next); err != nil {
		return current, err
	}
	next.ID = current.ID
	next.OrganizationID = current.OrganizationID
	next.Version = current.Version + 1

	s.mu.Lock()
	defer s.mu.Unlock()
	if next.ProviderSubscriptionID != current.ProviderSubscriptionID {
		if owner, taken := s.byProvider[next.ProviderSubscriptionID]; taken && owner != id {
			return current, fmt.Errorf("%w: provider subscription id %q is linked to another subscription",
				ErrSubscriptionAlreadyExists, next.ProviderSubscriptionID)
		}
		delete(s.byProvider, current.ProviderSubscriptionID)
		if next.ProviderSubscriptionID != "" {
			s.byProvider[next.ProviderSubscriptionID] = id
		}
	}
	rec.sub = next
	return next.Clone(), nil
}

func (s *MemoryStore) Find(_ context.Context, q Query) ([]*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Subscription
	for _, rec := range s.records {
		if q.Matches(rec.sub) {
			out = append(out, rec.sub.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *Subscription) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountByStatus(context.Context) (map[Status]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int64, len(Statuses))
	for _, rec := range s.records {
		counts[rec.sub.Status]++
	}
	return counts, nil
}
