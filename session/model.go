package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/goWA/client"
)

// State is the lifecycle state of a Session.
type State uint8

const (
	StateCreated State = iota
	StateAwaitingScan
	StateAuthenticated
	StateReady
	StateClosed
)

var stateNames = [...]string{
	StateCreated:       "created",
	StateAwaitingScan:  "awaiting_scan",
	StateAuthenticated: "authenticated",
	StateReady:         "ready",
	StateClosed:        "closed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// MarshalText renders the state name for JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Status is an immutable snapshot of a Session.
type Status struct {
	ID            string    `json:"id"`
	State         State     `json:"state"`
	Authenticated bool      `json:"authenticated"`
	LastChallenge string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Session is one tenant's messaging identity. All methods are safe for
// concurrent use.
type Session struct {
	id        string
	createdAt time.Time

	mu     sync.RWMutex
	status Status
	client client.Client

	removeMu sync.Mutex
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		id:        id,
		createdAt: now,
		status: Status{
			ID:        id,
			State:     StateCreated,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// ID returns the caller-supplied session identifier.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the registration time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Status returns a snapshot of the current state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Client returns the owned client handle. It is nil before initialization
// completes and after the session is closed.
func (s *Session) Client() client.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Apply runs in through [Transition] and stores the result. Applying
// InputClose releases the client handle.
func (s *Session) Apply(in Input, now time.Time) (prev, next Status, changed bool) {
	s.mu.Lock()
	prev = s.status
	next, changed = Transition(prev, in, now)
	s.status = next

	var release client.Client
	if next.State == StateClosed && s.client != nil {
		release = s.client
		s.client = nil
	}
	s.mu.Unlock()

	if release != nil {
		_ = release.Close()
	}
	return prev, next, changed
}

// attach stores c as the owned handle. It fails if the session was closed
// while the client was being constructed.
func (s *Session) attach(c client.Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State == StateClosed {
		return false
	}
	s.client = c
	return true
}
