package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goWA/client"
)

var (
	// ErrDuplicateSession is returned by Create when the id is registered.
	ErrDuplicateSession = errors.New("session already exists")
	// ErrSessionNotFound is returned when no session is registered under an id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidID is returned by Create for an empty or padded id.
	ErrInvalidID = errors.New("invalid session id")
	// ErrExternalClient wraps every failure reported by the external client.
	ErrExternalClient = errors.New("external client error")
	// ErrClientUnavailable is returned when the session has no client handle,
	// either because initialization has not finished or it was released.
	ErrClientUnavailable = errors.New("session client unavailable")
	// ErrRegistryClosed is returned by Create after Close.
	ErrRegistryClosed = errors.New("session registry closed")
)

// Config controls Registry behavior.
type Config struct {
	// StartTimeout bounds Client.Start. Zero means no timeout.
	StartTimeout time.Duration
	// LogoutTimeout bounds Client.Logout during Remove. Zero means no timeout.
	LogoutTimeout time.Duration
}

// AttachFunc starts consuming c's events on behalf of s. It is called once
// per session, after the client is stored and before Client.Start.
type AttachFunc func(s *Session, c client.Client)

// Registry maps session ids to live sessions. All methods are safe for
// concurrent use. The registry lock only guards map access; client calls
// are made without it, so operations on different ids never wait on each
// other's I/O.
type Registry struct {
	cfg     Config
	factory client.Factory
	attach  AttachFunc
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
	// creating counts Create calls past the closed check.
	creating sync.WaitGroup
}

// NewRegistry returns an empty registry building clients with factory.
// attach may be nil.
func NewRegistry(cfg Config, factory client.Factory, attach AttachFunc) *Registry {
	return &Registry{
		cfg:      cfg,
		factory:  factory,
		attach:   attach,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session in StateCreated, constructs its client,
// attaches the event consumer and starts the asynchronous login. It returns
// as soon as the client has accepted Start, without waiting for
// authentication. On any client failure the registration is rolled back.
func (r *Registry) Create(ctx context.Context, id string) (*Session, error) {
	if id == "" || strings.TrimSpace(id) != id {
		return nil, ErrInvalidID
	}
	if r.factory == nil {
		return nil, fmt.Errorf("%w: no client factory", ErrExternalClient)
	}

	s := newSession(id, r.now())

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return nil, ErrDuplicateSession
	}
	r.sessions[id] = s
	r.creating.Add(1)
	r.mu.Unlock()
	defer r.creating.Done()

	c, err := r.factory.New(ctx, id)
	if err != nil {
		r.forget(s)
		return nil, fmt.Errorf("%w: create client: %v", ErrExternalClient, err)
	}
	if !s.attach(c) {
		_ = c.Close()
		return nil, ErrSessionNotFound
	}
	if r.attach != nil {
		r.attach(s, c)
	}

	_, err = client.Do(ctx, r.cfg.StartTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.Start(ctx)
	})
	if err != nil {
		s.Apply(Input{Kind: InputClose}, r.now())
		r.forget(s)
		return nil, fmt.Errorf("%w: start client: %w", ErrExternalClient, err)
	}

	return s, nil
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns the registered ids in ascending order.
func (r *Registry) List() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Statuses returns a snapshot of every registered session, ordered by id.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	out := make([]Status, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Status())
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b Status) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Remove logs the session's client out and unregisters it. When logout
// fails the session stays registered and unchanged, and the wrapped error
// is returned so the caller can retry. Concurrent removals of one id are
// serialized; the later ones observe ErrSessionNotFound.
func (r *Registry) Remove(ctx context.Context, id string) (Status, error) {
	s, err := r.Get(id)
	if err != nil {
		return Status{}, err
	}

	s.removeMu.Lock()
	defer s.removeMu.Unlock()

	if !r.registered(s) {
		return Status{}, ErrSessionNotFound
	}

	if c := s.Client(); c != nil {
		_, err := client.Do(ctx, r.cfg.LogoutTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.Logout(ctx)
		})
		if err != nil {
			return s.Status(), fmt.Errorf("%w: logout: %w", ErrExternalClient, err)
		}
	}

	_, next, _ := s.Apply(Input{Kind: InputClose}, r.now())
	r.forget(s)
	return next, nil
}

// Detach unregisters s if it is still the session stored under its id.
// It is used when a session closes on its own (remote logout).
func (r *Registry) Detach(s *Session) bool {
	return r.forget(s)
}

// Close releases every session's client without logging out and empties
// the registry. It is the process shutdown path. Later Create calls fail
// with ErrRegistryClosed, and Close returns only after in-flight ones have
// finished calling attach.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	now := r.now()
	for _, s := range all {
		s.Apply(Input{Kind: InputClose}, now)
	}
	r.creating.Wait()
}

func (r *Registry) registered(s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[s.id] == s
}

func (r *Registry) forget(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.id] != s {
		return false
	}
	delete(r.sessions, s.id)
	return true
}
