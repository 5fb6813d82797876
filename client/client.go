package client

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout marks an external call that exceeded its deadline.
var ErrTimeout = errors.New("external client call timed out")

// EventKind identifies a lifecycle notification emitted by a [Client].
type EventKind uint8

const (
	// EventChallenge carries a fresh login challenge (QR payload).
	EventChallenge EventKind = iota + 1
	// EventAuthenticated reports that the account completed pairing.
	EventAuthenticated
	// EventReady reports that the client is connected and can send.
	EventReady
	// EventLoggedOut reports that the account was unlinked remotely.
	EventLoggedOut
)

func (k EventKind) String() string {
	switch k {
	case EventChallenge:
		return "challenge"
	case EventAuthenticated:
		return "authenticated"
	case EventReady:
		return "ready"
	case EventLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification. Challenge is set only for
// EventChallenge.
type Event struct {
	Kind      EventKind
	Challenge string
	At        time.Time
}

// ConnState is the external client's own view of its connection.
type ConnState string

const (
	ConnConnected    ConnState = "CONNECTED"
	ConnOpening      ConnState = "OPENING"
	ConnPairing      ConnState = "PAIRING"
	ConnDisconnected ConnState = "DISCONNECTED"
	ConnUnknown      ConnState = "UNKNOWN"
)

// Ack is the acknowledgement returned by the external client for a send.
type Ack struct {
	MessageID string    `json:"id"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// Media is the plain media record handed to the client at the send boundary.
type Media struct {
	Data     []byte
	MimeType string
	FileName string
}

// SendOptions carries optional per-send parameters.
type SendOptions struct {
	Caption string
}

// Client is one external-client instance, exclusively owned by one session.
//
// Start begins the asynchronous login and must return without waiting for
// authentication. Events delivers notifications in emission order and is
// closed once the client is torn down. Implementations must be safe for
// concurrent use.
type Client interface {
	Start(ctx context.Context) error
	Events() <-chan Event
	State(ctx context.Context) (ConnState, error)
	SendText(ctx context.Context, address, text string) (Ack, error)
	SendMedia(ctx context.Context, address string, media Media, opts SendOptions) (Ack, error)
	Logout(ctx context.Context) error
	Close() error
}

// Factory constructs one [Client] per session id.
type Factory interface {
	New(ctx context.Context, sessionID string) (Client, error)
}

// FactoryFunc adapts a function to [Factory].
type FactoryFunc func(ctx context.Context, sessionID string) (Client, error)

// New calls f.
func (f FactoryFunc) New(ctx context.Context, sessionID string) (Client, error) {
	return f(ctx, sessionID)
}
