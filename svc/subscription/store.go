package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists subscription records. Implementations must serialize
// Update calls for the same id and let different ids proceed in parallel.
type Store interface {
	// Create inserts a new record. It returns ErrSubscriptionAlreadyExists
	// when the organization already has one.
	Create(ctx context.Context, sub *Subscription) error

	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	GetByOrganization(ctx context.Context, orgID uuid.UUID) (*Subscription, error)
	GetByProviderSubscriptionID(ctx context.Context, providerID string) (*Subscription, error)

	// Update loads the record under an exclusive lock, lets fn mutate a
	// copy and persists it with an incremented Version. If fn returns an
	// error nothing is written and the unchanged record is returned with
	// that error.
	Update(ctx context.Context, id uuid.UUID, fn func(*Subscription) error) (*Subscription, error)

	// Find returns records matching q ordered by creation time.
	Find(ctx context.Context, q Query) ([]*Subscription, error)

	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

// Query filters subscriptions. Zero fields are ignored.
type Query struct {
	Statuses []Status

	TrialEndsFrom   time.Time // trial_ends_at >= TrialEndsFrom
	TrialEndsBefore time.Time // trial_ends_at < TrialEndsBefore

	StatusChangedBefore time.Time

	// EndDueBefore matches records whose EndDue time is before the value.
	EndDueBefore time.Time

	Limit int
}

// Matches evaluates q against s in memory.
func (q Query) Matches(s *Subscription) bool {
	if len(q.Statuses) > 0 {
		found := false
		for _, st := range q.Statuses {
			if s.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !q.TrialEndsFrom.IsZero() && (s.TrialEndsAt == nil || s.TrialEndsAt.Before(q.TrialEndsFrom)) {
		return false
	}
	if !q.TrialEndsBefore.IsZero() && (s.TrialEndsAt == nil || !s.TrialEndsAt.Before(q.TrialEndsBefore)) {
		return false
	}
	if !q.StatusChangedBefore.IsZero() && !s.StatusChangedAt.Before(q.StatusChangedBefore) {
		return false
	}
	if !q.EndDueBefore.IsZero() {
		due, ok := s.EndDue()
		if !ok || !due.Before(q.EndDueBefore) {
			return false
		}
	}
	return true
}
