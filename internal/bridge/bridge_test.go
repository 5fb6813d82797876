package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goWA/client"
	"github.com/MrEthical07/goWA/session"
)

// chanClient exposes its event channel directly so tests can keep
// delivering events after the session released it.
type chanClient struct {
	client.Client
	events chan client.Event
}

func (c *chanClient) Start(context.Context) error  { return nil }
func (c *chanClient) Events() <-chan client.Event  { return c.events }
func (c *chanClient) Close() error                 { return nil }
func (c *chanClient) Logout(context.Context) error { return nil }

type recorder struct {
	mu          sync.Mutex
	transitions []session.Status
	closed      []string
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		Transition: func(s *session.Session, in session.Input, prev, next session.Status) {
			r.mu.Lock()
			r.transitions = append(r.transitions, next)
			r.mu.Unlock()
		},
		Closed: func(s *session.Session) {
			r.mu.Lock()
			r.closed = append(r.closed, s.ID())
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() ([]session.Status, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.Status(nil), r.transitions...), append([]string(nil), r.closed...)
}

func setup(t *testing.T, ids ...string) (*Bridge, *recorder, map[string]*chanClient, *session.Registry) {
	t.Helper()
	rec := &recorder{}
	b := New(nil, rec.hooks())
	clients := make(map[string]*chanClient)
	var mu sync.Mutex
	f := client.FactoryFunc(func(_ context.Context, id string) (client.Client, error) {
		c := &chanClient{events: make(chan client.Event, 16)}
		mu.Lock()
		clients[id] = c
		mu.Unlock()
		return c, nil
	})
	r := session.NewRegistry(session.Config{}, f, b.Attach)
	for _, id := range ids {
		if _, err := r.Create(context.Background(), id); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	t.Cleanup(func() {
		for _, c := range clients {
			close(c.events)
		}
		b.Wait()
	})
	return b, rec, clients, r
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestBridgeAppliesEventsInOrder(t *testing.T) {
	b, rec, clients, r := setup(t, "alpha")
	if b.Active() != 1 {
		t.Fatalf("expected one pump, got %d", b.Active())
	}

	c := clients["alpha"]
	c.events <- client.Event{Kind: client.EventChallenge, Challenge: "qr-1"}
	c.events <- client.Event{Kind: client.EventChallenge, Challenge: "qr-2"}
	c.events <- client.Event{Kind: client.EventAuthenticated}
	c.events <- client.Event{Kind: client.EventReady}

	waitUntil(t, func() bool {
		tr, _ := rec.snapshot()
		return len(tr) == 4
	})
	tr, _ := rec.snapshot()
	want := []session.State{session.StateAwaitingScan, session.StateAwaitingScan, session.StateAuthenticated, session.StateReady}
	for i, st := range tr {
		if st.State != want[i] {
			t.Fatalf("transition %d: got %s want %s", i, st.State, want[i])
		}
	}
	if tr[1].LastChallenge != "qr-2" {
		t.Fatalf("latest challenge must win, got %q", tr[1].LastChallenge)
	}

	s, _ := r.Get("alpha")
	if st := s.Status(); st.State != session.StateReady || !st.Authenticated {
		t.Fatalf("unexpected final status %+v", st)
	}
}

func TestBridgeLoggedOutClosesAndIgnoresLater(t *testing.T) {
	b, rec, clients, r := setup(t, "alpha")
	c := clients["alpha"]

	c.events <- client.Event{Kind: client.EventReady}
	c.events <- client.Event{Kind: client.EventLoggedOut}
	c.events <- client.Event{Kind: client.EventChallenge, Challenge: "late"}
	c.events <- client.Event{Kind: client.EventReady}

	waitUntil(t, func() bool { return b.Ignored() == 2 })

	_, closed := rec.snapshot()
	if len(closed) != 1 || closed[0] != "alpha" {
		t.Fatalf("expected one closed hook for alpha, got %v", closed)
	}
	s, _ := r.Get("alpha")
	if st := s.Status(); st.State != session.StateClosed || st.LastChallenge != "" {
		t.Fatalf("late events must not reopen the session: %+v", st)
	}
}

func TestBridgeSessionsIndependent(t *testing.T) {
	_, rec, clients, r := setup(t, "a", "b")

	clients["a"].events <- client.Event{Kind: client.EventChallenge, Challenge: "qr-a"}
	clients["b"].events <- client.Event{Kind: client.EventReady}

	waitUntil(t, func() bool {
		tr, _ := rec.snapshot()
		return len(tr) == 2
	})

	a, _ := r.Get("a")
	bs, _ := r.Get("b")
	if a.Status().State != session.StateAwaitingScan || a.Status().Authenticated {
		t.Fatalf("a: unexpected %+v", a.Status())
	}
	if bs.Status().State != session.StateReady {
		t.Fatalf("b: unexpected %+v", bs.Status())
	}
}

func TestBridgeUnknownEventSkipped(t *testing.T) {
	_, rec, clients, _ := setup(t, "alpha")
	c := clients["alpha"]

	c.events <- client.Event{Kind: client.EventKind(77)}
	c.events <- client.Event{Kind: client.EventAuthenticated}

	waitUntil(t, func() bool {
		tr, _ := rec.snapshot()
		return len(tr) == 1
	})
	tr, _ := rec.snapshot()
	if tr[0].State != session.StateAuthenticated {
		t.Fatalf("unexpected transition %+v", tr[0])
	}
}
