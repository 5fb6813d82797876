// Package bridge drives session state from the external client's event
// stream. Each attached session gets one goroutine that drains its client's
// event channel in order, so events of one session are never applied
// concurrently while different sessions progress independently.
package bridge

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goWA/client"
	"github.com/MrEthical07/goWA/session"
)

// Hooks receive the outcome of applied events. Both are optional and are
// called from the session's pump goroutine.
type Hooks struct {
	// Transition is called after every event that changed the session.
	Transition func(s *session.Session, in session.Input, prev, next session.Status)
	// Closed is called once when an event closed the session.
	Closed func(s *session.Session)
}

// Bridge attaches sessions to their clients' event streams.
type Bridge struct {
	hooks  Hooks
	logger *slog.Logger
	now    func() time.Time

	wg      sync.WaitGroup
	active  atomic.Int64
	ignored atomic.Uint64
}

// New returns a Bridge reporting through hooks. A nil logger discards.
func New(logger *slog.Logger, hooks Hooks) *Bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bridge{
		hooks:  hooks,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Attach starts the pump for s. It matches session.AttachFunc.
func (b *Bridge) Attach(s *session.Session, c client.Client) {
	events := c.Events()
	b.wg.Add(1)
	b.active.Add(1)
	go b.run(s, events)
}

func (b *Bridge) run(s *session.Session, events <-chan client.Event) {
	defer b.wg.Done()
	defer b.active.Add(-1)

	log := b.logger.With("session_id", s.ID())
	for ev := range events {
		in, ok := session.InputFromEvent(ev)
		if !ok {
			log.Debug("unknown client event", "kind", ev.Kind.String())
			continue
		}

		prev, next, changed := s.Apply(in, b.now())
		if !changed {
			if prev.State == session.StateClosed {
				b.ignored.Add(1)
				log.Debug("event after close ignored", "event", in.Kind.String())
			}
			continue
		}

		log.Info("session transition",
			"event", in.Kind.String(),
			"from", prev.State.String(),
			"to", next.State.String(),
		)
		if b.hooks.Transition != nil {
			b.hooks.Transition(s, in, prev, next)
		}
		if next.State == session.StateClosed && b.hooks.Closed != nil {
			b.hooks.Closed(s)
		}
	}
}

// Active returns the number of running pumps.
func (b *Bridge) Active() int64 {
	return b.active.Load()
}

// Ignored returns how many events arrived after their session closed.
func (b *Bridge) Ignored() uint64 {
	return b.ignored.Load()
}

// Wait blocks until every pump has exited. Pumps exit when their client
// closes its event channel.
func (b *Bridge) Wait() {
	b.wg.Wait()
}
