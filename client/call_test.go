package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoReturnsValue(t *testing.T) {
	v, err := Do(context.Background(), time.Second, func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || v != 7 {
		t.Fatalf("got %d %v", v, err)
	}
}

func TestDoPassesErrorThrough(t *testing.T) {
	boom := errors.New("boom")
	_, err := Do(context.Background(), time.Second, func(context.Context) (struct{}, error) {
		return struct{}{}, boom
	})
	if !errors.Is(err, boom) || errors.Is(err, ErrTimeout) {
		t.Fatalf("expected plain error, got %v", err)
	}
}

func TestDoTimesOutIgnoringClient(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := Do(context.Background(), 20*time.Millisecond, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("Do did not return at the deadline")
	}
}

func TestDoCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Do(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrTimeout) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestDoRecoversPanic(t *testing.T) {
	_, err := Do(context.Background(), time.Second, func(context.Context) (int, error) {
		panic("client bug")
	})
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestEventKindString(t *testing.T) {
	if EventLoggedOut.String() != "logged_out" || EventKind(0).String() != "unknown" {
		t.Fatal("unexpected event kind names")
	}
}
