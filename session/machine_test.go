package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/MrEthical07/goWA/client"
)

func TestTransitionTable(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()
	t1 := t0.Add(time.Second)

	created := Status{ID: "s", State: StateCreated, CreatedAt: t0, UpdatedAt: t0}
	awaiting := Status{ID: "s", State: StateAwaitingScan, LastChallenge: "qr-1", CreatedAt: t0, UpdatedAt: t0}
	authed := Status{ID: "s", State: StateAuthenticated, Authenticated: true, CreatedAt: t0, UpdatedAt: t0}
	ready := Status{ID: "s", State: StateReady, Authenticated: true, CreatedAt: t0, UpdatedAt: t0}
	closed := Status{ID: "s", State: StateClosed, CreatedAt: t0, UpdatedAt: t0}

	tests := []struct {
		name        string
		cur         Status
		in          Input
		wantState   State
		wantAuth    bool
		wantQR      string
		wantChanged bool
	}{
		{"created challenge", created, Input{Kind: InputChallenge, Challenge: "qr-1"}, StateAwaitingScan, false, "qr-1", true},
		{"created empty challenge ignored", created, Input{Kind: InputChallenge}, StateCreated, false, "", false},
		{"created authenticated", created, Input{Kind: InputAuthenticated}, StateAuthenticated, true, "", true},
		{"created ready", created, Input{Kind: InputReady}, StateReady, true, "", true},
		{"created close", created, Input{Kind: InputClose}, StateClosed, false, "", true},
		{"awaiting new challenge replaces", awaiting, Input{Kind: InputChallenge, Challenge: "qr-2"}, StateAwaitingScan, false, "qr-2", true},
		{"awaiting same challenge no-op", awaiting, Input{Kind: InputChallenge, Challenge: "qr-1"}, StateAwaitingScan, false, "qr-1", false},
		{"awaiting authenticated clears challenge", awaiting, Input{Kind: InputAuthenticated}, StateAuthenticated, true, "", true},
		{"awaiting ready", awaiting, Input{Kind: InputReady}, StateReady, true, "", true},
		{"awaiting close", awaiting, Input{Kind: InputClose}, StateClosed, false, "", true},
		{"authenticated again no-op", authed, Input{Kind: InputAuthenticated}, StateAuthenticated, true, "", false},
		{"authenticated ready", authed, Input{Kind: InputReady}, StateReady, true, "", true},
		{"authenticated challenge re-pairs", authed, Input{Kind: InputChallenge, Challenge: "qr-3"}, StateAwaitingScan, false, "qr-3", true},
		{"authenticated close keeps flag", authed, Input{Kind: InputClose}, StateClosed, true, "", true},
		{"ready authenticated stays ready", ready, Input{Kind: InputAuthenticated}, StateReady, true, "", false},
		{"ready again no-op", ready, Input{Kind: InputReady}, StateReady, true, "", false},
		{"ready challenge re-pairs", ready, Input{Kind: InputChallenge, Challenge: "qr-4"}, StateAwaitingScan, false, "qr-4", true},
		{"closed ignores challenge", closed, Input{Kind: InputChallenge, Challenge: "qr"}, StateClosed, false, "", false},
		{"closed ignores ready", closed, Input{Kind: InputReady}, StateClosed, false, "", false},
		{"closed ignores close", closed, Input{Kind: InputClose}, StateClosed, false, "", false},
		{"unknown input ignored", created, Input{Kind: InputKind(99)}, StateCreated, false, "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, changed := Transition(tc.cur, tc.in, t1)
			if next.State != tc.wantState {
				t.Fatalf("state: got %s want %s", next.State, tc.wantState)
			}
			if next.Authenticated != tc.wantAuth {
				t.Fatalf("authenticated: got %v want %v", next.Authenticated, tc.wantAuth)
			}
			if next.LastChallenge != tc.wantQR {
				t.Fatalf("challenge: got %q want %q", next.LastChallenge, tc.wantQR)
			}
			if changed != tc.wantChanged {
				t.Fatalf("changed: got %v want %v", changed, tc.wantChanged)
			}
			if changed && !next.UpdatedAt.Equal(t1) {
				t.Fatalf("UpdatedAt not advanced: %v", next.UpdatedAt)
			}
			if !changed && next != tc.cur {
				t.Fatalf("unchanged transition mutated status: %+v", next)
			}
			if next.LastChallenge != "" && next.State != StateAwaitingScan {
				t.Fatalf("challenge outside awaiting_scan: %+v", next)
			}
		})
	}
}

func TestInputFromEvent(t *testing.T) {
	tests := []struct {
		ev     client.Event
		want   InputKind
		wantOK bool
	}{
		{client.Event{Kind: client.EventChallenge, Challenge: "x"}, InputChallenge, true},
		{client.Event{Kind: client.EventAuthenticated}, InputAuthenticated, true},
		{client.Event{Kind: client.EventReady}, InputReady, true},
		{client.Event{Kind: client.EventLoggedOut}, InputClose, true},
		{client.Event{Kind: client.EventKind(0)}, 0, false},
	}
	for _, tc := range tests {
		in, ok := InputFromEvent(tc.ev)
		if ok != tc.wantOK || (ok && in.Kind != tc.want) {
			t.Fatalf("%v: got %v/%v want %v/%v", tc.ev.Kind, in.Kind, ok, tc.want, tc.wantOK)
		}
	}
	in, _ := InputFromEvent(client.Event{Kind: client.EventChallenge, Challenge: "abc"})
	if in.Challenge != "abc" {
		t.Fatalf("challenge not carried: %+v", in)
	}
}

func TestStateText(t *testing.T) {
	b, err := StateAwaitingScan.MarshalText()
	if err != nil || string(b) != "awaiting_scan" {
		t.Fatalf("unexpected text %q %v", b, err)
	}
	if State(42).String() != "state(42)" {
		t.Fatalf("unexpected unknown state name %q", State(42).String())
	}

	for _, st := range []State{StateCreated, StateAwaitingScan, StateAuthenticated, StateReady, StateClosed} {
		raw, err := json.Marshal(Status{ID: "s1", State: st})
		if err != nil {
			t.Fatalf("marshal %s: %v", st, err)
		}
		var got Status
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if got.State != st {
			t.Fatalf("round trip: got %s want %s", got.State, st)
		}
	}

	var bad State
	if err := bad.UnmarshalText([]byte("paused")); err == nil {
		t.Fatal("unknown state name must be rejected")
	}
	if err := json.Unmarshal([]byte(`{"state":"state(42)"}`), &Status{}); err == nil {
		t.Fatal("unnamed state must be rejected")
	}
}
