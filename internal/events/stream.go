package events

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisStream appends events to a capped redis stream.
type RedisStream struct {
	R      *redis.Client
	Stream string
	MaxLen int64
}

// Record implements Recorder.
func (s RedisStream) Record(ctx context.Context, event Event) error {
	if s.R == nil {
		return nil
	}
	stream := s.Stream
	if stream == "" {
		stream = "events"
	}
	maxLen := s.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return s.R.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{
			"id":          event.ID,
			"topic":       event.Topic,
			"aggregateId": event.AggregateID,
			"payload":     string(event.Payload),
			"occurredAt":  event.OccurredAt.UnixMilli(),
		},
	}).Err()
}
