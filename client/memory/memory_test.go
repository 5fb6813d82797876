package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goWA/client"
)

func newClient(t *testing.T, opts Options) *Client {
	t.Helper()
	f := NewFactory(opts)
	c, err := f.New(context.Background(), "s1")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	mc, ok := f.Client("s1")
	if !ok || client.Client(mc) != c {
		t.Fatal("factory must remember the client")
	}
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func TestAutoLoginEmitsLifecycle(t *testing.T) {
	c := newClient(t, Options{AutoLogin: true})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	want := []client.EventKind{client.EventChallenge, client.EventAuthenticated, client.EventReady}
	for i, kind := range want {
		select {
		case ev := <-c.Events():
			if ev.Kind != kind {
				t.Fatalf("event %d: got %s want %s", i, ev.Kind, kind)
			}
			if kind == client.EventChallenge && ev.Challenge != "memory-challenge:s1" {
				t.Fatalf("unexpected challenge %q", ev.Challenge)
			}
			if ev.At.IsZero() {
				t.Fatal("event time must be stamped")
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", kind)
		}
	}

	st, err := c.State(context.Background())
	if err != nil || st != client.ConnConnected {
		t.Fatalf("expected CONNECTED, got %s %v", st, err)
	}
}

func TestStateBeforeStart(t *testing.T) {
	c := newClient(t, Options{})
	if _, err := c.State(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}

func TestRequireReady(t *testing.T) {
	c := newClient(t, Options{RequireReady: true, EventBuffer: 4})
	_ = c.Start(context.Background())

	if _, err := c.SendText(context.Background(), "1@c.us", "hi"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	c.MarkReady()
	ack, err := c.SendText(context.Background(), "1@c.us", "hi")
	if err != nil || ack.MessageID == "" || ack.To != "1@c.us" {
		t.Fatalf("send after ready: %+v %v", ack, err)
	}
}

func TestEmitAfterCloseReportsFalse(t *testing.T) {
	c := newClient(t, Options{})
	_ = c.Close()
	if c.IssueChallenge("x") {
		t.Fatal("emit after close must fail")
	}
	if _, ok := <-c.Events(); ok {
		t.Fatal("event channel must be closed")
	}
	if _, err := c.SendText(context.Background(), "1@c.us", "hi"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCloseReleasesBlockedEmit(t *testing.T) {
	c := newClient(t, Options{EventBuffer: 1})
	c.Authenticate()

	var wg sync.WaitGroup
	wg.Add(1)
	var delivered bool
	go func() {
		defer wg.Done()
		delivered = c.MarkReady()
	}()

	time.Sleep(10 * time.Millisecond)
	_ = c.Close()
	wg.Wait()
	if delivered {
		t.Fatal("blocked emit must report false after close")
	}
}

func TestLogout(t *testing.T) {
	c := newClient(t, Options{})
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !c.LoggedOut() || !c.Closed() {
		t.Fatal("logout must mark and close")
	}

	failing := newClient(t, Options{FailLogout: func(string) error { return errors.New("offline") }})
	if err := failing.Logout(context.Background()); err == nil {
		t.Fatal("expected scripted logout failure")
	}
	if failing.Closed() {
		t.Fatal("failed logout must leave the client open")
	}
}

func TestSendDelayHonorsContext(t *testing.T) {
	c := newClient(t, Options{SendDelay: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.SendText(ctx, "1@c.us", "hi"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if len(c.Sent()) != 0 {
		t.Fatal("abandoned send must not be recorded")
	}
}
