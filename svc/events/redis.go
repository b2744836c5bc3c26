package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStreamPublisher appends events to a Redis stream with XADD. Each
// entry carries the kind, organization id and the JSON-encoded envelope.
type RedisStreamPublisher struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisStreamPublisher panics if client is nil. maxLen <= 0 leaves the
// stream untrimmed; otherwise it is trimmed approximately to maxLen entries.
func NewRedisStreamPublisher(client redis.UniversalClient, stream string, maxLen int64) *RedisStreamPublisher {
	if client == nil {
		panic("events: redis client is required")
	}
	if stream == "" {
		stream = "subcycle:events"
	}
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, e Envelope) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"kind":            string(e.Kind()),
			"organization_id": e.OrganizationID.String(),
			"envelope":        data,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// DecodeStreamMessage rebuilds the Envelope stored by Publish.
func DecodeStreamMessage(msg redis.XMessage) (Envelope, error) {
	var e Envelope
	raw, ok := msg.Values["envelope"].(string)
	if !ok {
		return e, fmt.Errorf("%w: stream entry %s has no envelope", ErrEmptyPayload, msg.ID)
	}
	err := json.Unmarshal([]byte(raw), &e)
	return e, err
}
