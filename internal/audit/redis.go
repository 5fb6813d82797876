package audit

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream key used when none is configured.
const DefaultStream = "wa:audit"

// RedisStreamSink appends every event to a Redis stream (XADD), trimming it
// to roughly MaxLen entries. Delivery failures are counted, not retried.
type RedisStreamSink struct {
	redis    redis.UniversalClient
	stream   string
	maxLen   int64
	failures atomic.Uint64
}

// NewRedisStreamSink returns a sink writing to stream. maxLen <= 0 disables
// trimming.
func NewRedisStreamSink(client redis.UniversalClient, stream string, maxLen int64) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	if maxLen < 0 {
		maxLen = 0
	}
	return &RedisStreamSink{
		redis:  client,
		stream: stream,
		maxLen: maxLen,
	}
}

func (s *RedisStreamSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.redis == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.failures.Add(1)
		return
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":         event.ID,
			"type":       event.EventType,
			"session_id": event.SessionID,
			"event":      payload,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.redis.XAdd(ctx, args).Err(); err != nil {
		s.failures.Add(1)
	}
}

// Stream returns the stream key.
func (s *RedisStreamSink) Stream() string {
	return s.stream
}

// Failures returns the number of events that could not be written.
func (s *RedisStreamSink) Failures() uint64 {
	return s.failures.Load()
}
