package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token, so an
// expired lease taken over by another holder is never released by mistake.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived leases backed by SET NX PX.
type Locker struct {
	client redis.UniversalClient
	prefix string
}

// NewLocker returns a Locker writing keys under prefix.
func NewLocker(client redis.UniversalClient, prefix string) *Locker {
	if client == nil {
		panic("redis: nil client")
	}
	return &Locker{client: client, prefix: prefix}
}

// Acquire tries to take the lease for key. It returns ok=false without error
// when somebody else holds it. The returned release func is safe to call
// after the lease expired.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	token := uuid.NewString()
	ok, err = l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if n == 0 {
			return ErrLockNotHeld
		}
		return nil
	}, true, nil
}

// Mark sets key once for ttl and reports whether this call set it. It is the
// building block for "do this at most once per window" checks.
func (l *Locker) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
