package lifecycle

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/subcycle/pkg/redis"
)

// Deduper remembers keys for a while. Mark reports true only for the first
// call within ttl.
type Deduper interface {
	Mark(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// NewRedisDeduper shares reminder state across replicas with SET NX.
func NewRedisDeduper(client goredis.UniversalClient, prefix string) Deduper {
	return redis.NewLocker(client, prefix)
}

// MemoryDeduper keeps keys in process memory.
type MemoryDeduper struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{keys: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDeduper) Mark(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.keys {
		if !now.Before(exp) {
			delete(d.keys, k)
		}
	}
	if _, ok := d.keys[key]; ok {
		return false, nil
	}
	d.keys[key] = now.Add(ttl)
	return true, nil
}
