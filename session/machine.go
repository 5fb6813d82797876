package session

import (
	"time"

	"github.com/MrEthical07/goWA/client"
)

// InputKind enumerates the inputs accepted by the state machine.
type InputKind uint8

const (
	InputChallenge InputKind = iota + 1
	InputAuthenticated
	InputReady
	InputClose
)

func (k InputKind) String() string {
	switch k {
	case InputChallenge:
		return "challenge"
	case InputAuthenticated:
		return "authenticated"
	case InputReady:
		return "ready"
	case InputClose:
		return "close"
	default:
		return "unknown"
	}
}

// Input is one state machine input. Challenge is set only for InputChallenge.
type Input struct {
	Kind      InputKind
	Challenge string
}

// InputFromEvent maps an external client event to a state machine input.
// A remote logout is a close request.
func InputFromEvent(ev client.Event) (Input, bool) {
	switch ev.Kind {
	case client.EventChallenge:
		return Input{Kind: InputChallenge, Challenge: ev.Challenge}, true
	case client.EventAuthenticated:
		return Input{Kind: InputAuthenticated}, true
	case client.EventReady:
		return Input{Kind: InputReady}, true
	case client.EventLoggedOut:
		return Input{Kind: InputClose}, true
	default:
		return Input{}, false
	}
}

// Transition computes the state that follows cur after in. It never
// mutates cur. changed is false when in is ignored or a no-op; UpdatedAt
// only moves when changed is true.
//
// LastChallenge is non-empty only in StateAwaitingScan. Authenticated is
// sticky until close, except that a fresh challenge (the account was
// unlinked and must pair again) resets it.
func Transition(cur Status, in Input, now time.Time) (Status, bool) {
	if cur.State == StateClosed {
		return cur, false
	}

	next := cur
	switch in.Kind {
	case InputChallenge:
		if in.Challenge == "" {
			return cur, false
		}
		next.State = StateAwaitingScan
		next.LastChallenge = in.Challenge
		next.Authenticated = false
	case InputAuthenticated:
		if cur.State != StateReady {
			next.State = StateAuthenticated
		}
		next.LastChallenge = ""
		next.Authenticated = true
	case InputReady:
		next.State = StateReady
		next.LastChallenge = ""
		next.Authenticated = true
	case InputClose:
		next.State = StateClosed
		next.LastChallenge = ""
	default:
		return cur, false
	}

	if next == cur {
		return cur, false
	}
	next.UpdatedAt = now
	return next, true
}
