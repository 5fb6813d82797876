package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("disabled config must yield a nil dispatcher")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("nil dispatcher must report zero")
	}
}

func TestDispatcherStampsAndDelivers(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Emit(context.Background(), Event{EventType: "session_created", SessionID: "s1"})
	d.Close()

	select {
	case ev := <-sink.Events():
		if ev.ID == "" || ev.Timestamp.IsZero() || ev.EventType != "session_created" {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("expected one delivered event")
	}
	if d.Delivered() != 1 {
		t.Fatalf("expected delivered=1, got %d", d.Delivered())
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event parks in the sink, one fills the buffer, the rest drop.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "x"})
	}
	close(sink.gate)
	d.Close()

	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}
	if d.Dropped()+d.Delivered() != 10 {
		t.Fatalf("every event must be dropped or delivered: %d + %d", d.Dropped(), d.Delivered())
	}
}

func TestDispatcherBlockingHonorsContext(t *testing.T) {
	sink := newGateSink()
	defer close(sink.gate)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	d.Emit(context.Background(), Event{EventType: "parked"})
	d.Emit(context.Background(), Event{EventType: "buffered"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Emit(ctx, Event{EventType: "blocked"})
	if time.Since(start) > time.Second {
		t.Fatal("blocking emit ignored its context")
	}
}

func TestDispatcherCloseDrains(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 256}, sink)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 32; i++ {
				d.Emit(context.Background(), Event{EventType: "x"})
			}
		}()
	}
	wg.Wait()
	d.Close()

	if got := sink.count.Load(); got != 256 {
		t.Fatalf("expected all 256 events drained, got %d", got)
	}
	d.Emit(context.Background(), Event{EventType: "after close"})
	if sink.count.Load() != 256 {
		t.Fatal("emit after close must be ignored")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{ID: "1", EventType: "message_sent", Recipient: "111", Success: true})
	s.Emit(context.Background(), Event{ID: "2", EventType: "message_failed", Error: "timeout"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.EventType != "message_failed" || ev.Error != "timeout" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestLogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewLogSink(logger)
	s.Emit(context.Background(), Event{EventType: "session_removed", SessionID: "s1", Success: true})
	s.Emit(context.Background(), Event{EventType: "session_remove_failed", SessionID: "s1", Error: "external_client"})

	out := buf.String()
	if !strings.Contains(out, `"level":"INFO","msg":"audit session_removed"`) {
		t.Fatalf("missing info record: %s", out)
	}
	if !strings.Contains(out, `"level":"WARN","msg":"audit session_remove_failed"`) {
		t.Fatalf("missing warn record: %s", out)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	MultiSink{a, nil, b}.Emit(context.Background(), Event{})
	if a.count.Load() != 1 || b.count.Load() != 1 {
		t.Fatal("every sink must receive the event")
	}
}

type deadlineSink struct {
	deadlines chan time.Time
}

func (s *deadlineSink) Emit(ctx context.Context, _ Event) {
	dl, _ := ctx.Deadline()
	s.deadlines <- dl
}

func TestDispatcherSinkTimeoutBoundsEmit(t *testing.T) {
	sink := &deadlineSink{deadlines: make(chan time.Time, 2)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 2, SinkTimeout: time.Second}, sink)
	start := time.Now()
	d.Emit(context.Background(), Event{EventType: "message_sent"})
	d.Close()

	dl := <-sink.deadlines
	if dl.IsZero() || dl.Before(start) || dl.After(start.Add(2*time.Second)) {
		t.Fatalf("unexpected sink deadline %v (start %v)", dl, start)
	}

	untimed := &deadlineSink{deadlines: make(chan time.Time, 1)}
	d = NewDispatcher(Config{Enabled: true, BufferSize: 1}, untimed)
	d.Emit(context.Background(), Event{EventType: "message_sent"})
	d.Close()
	if dl := <-untimed.deadlines; !dl.IsZero() {
		t.Fatalf("zero SinkTimeout must not set a deadline, got %v", dl)
	}
}
