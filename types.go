package goWA

import (
	"time"

	"github.com/MrEthical07/goWA/client"
	"github.com/MrEthical07/goWA/internal/dispatch"
	"github.com/MrEthical07/goWA/session"
)

// SessionState is the lifecycle state of a session.
type SessionState = session.State

const (
	StateCreated       = session.StateCreated
	StateAwaitingScan  = session.StateAwaitingScan
	StateAuthenticated = session.StateAuthenticated
	StateReady         = session.StateReady
	StateClosed        = session.StateClosed
)

// SessionStatus is a point-in-time snapshot of one session.
type SessionStatus = session.Status

// SendResult is the outcome of a send for one recipient.
type SendResult = dispatch.Result

// MediaInput is a media source: uploaded bytes, or base64 plus file name
// and mime type.
type MediaInput = dispatch.MediaInput

// ConnState is the messaging client's own connection report.
type ConnState = client.ConnState

// StatusEvent is published to subscribers whenever a session changes.
type StatusEvent struct {
	Event         string       `json:"event"`
	SessionID     string       `json:"session_id"`
	State         SessionState `json:"state"`
	Authenticated bool         `json:"authenticated"`
	HasChallenge  bool         `json:"has_challenge"`
	At            time.Time    `json:"at"`
}

func newStatusEvent(event string, st SessionStatus) StatusEvent {
	return StatusEvent{
		Event:         event,
		SessionID:     st.ID,
		State:         st.State,
		Authenticated: st.Authenticated,
		HasChallenge:  st.LastChallenge != "",
		At:            st.UpdatedAt,
	}
}
