package goWA

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goWA/internal/audit"
	"github.com/redis/go-redis/v9"
)

// AuditEvent is one audited engine occurrence.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel, mostly for tests.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// LogSink writes audit events through slog.
type LogSink = audit.LogSink

// RedisStreamSink appends audit events to a Redis stream.
type RedisStreamSink = audit.RedisStreamSink

// MultiSink fans one event out to several sinks.
type MultiSink = audit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return audit.NewLogSink(logger)
}

// NewRedisStreamSink appends to stream, trimming it to roughly maxLen
// entries when maxLen > 0. An empty stream uses "wa:audit".
func NewRedisStreamSink(client redis.UniversalClient, stream string, maxLen int64) *RedisStreamSink {
	return audit.NewRedisStreamSink(client, stream, maxLen)
}
