package usage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subcycle/svc/plan"
)

type ledgerKey struct {
	subscriptionID uuid.UUID
	feature        plan.Feature
}

// MemoryLedger keeps records in process memory.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[ledgerKey][]Record
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[ledgerKey][]Record)}
}

func (l *MemoryLedger) Append(_ context.Context, r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := ledgerKey{r.SubscriptionID, r.Feature}
	l.records[k] = append(l.records[k], r)
	return nil
}

func (l *MemoryLedger) Latest(_ context.Context, subscriptionID uuid.UUID, feature plan.Feature) (Record, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		latest Record
		found  bool
	)
	for _, r := range l.records[ledgerKey{subscriptionID, feature}] {
		if !found || !r.RecordedAt.Before(latest.RecordedAt) {
			latest, found = r, true
		}
	}
	return latest, found, nil
}

func (l *MemoryLedger) History(_ context.Context, subscriptionID uuid.UUID, feature plan.Feature, limit int) ([]Record, error) {
	l.mu.RLock()
	var out []Record
	for k, recs := range l.records {
		if k.subscriptionID == subscriptionID && (feature == "" || k.feature == feature) {
			out = append(out, recs...)
		}
	}
	l.mu.RUnlock()
	return newestFirst(out, limit), nil
}

func (l *MemoryLedger) ExceededSince(_ context.Context, since time.Time) ([]Record, error) {
	l.mu.RLock()
	var out []Record
	for _, recs := range l.records {
		for _, r := range recs {
			if r.LimitExceeded && !r.RecordedAt.Before(since) {
				out = append(out, r)
			}
		}
	}
	l.mu.RUnlock()
	return newestFirst(out, 0), nil
}

func newestFirst(recs []Record, limit int) []Record {
	slices.SortStableFunc(recs, func(a, b Record) int {
		if c := b.RecordedAt.Compare(a.RecordedAt); c != 0 {
			return c
		}
		return slices.Compare(b.ID[:], a.ID[:])
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
