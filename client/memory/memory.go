// Package memory provides an in-process [client.Client] whose lifecycle is
// driven by the caller. It backs tests, the example server, and the load
// generator.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/goWA/client"
	"github.com/google/uuid"
)

var (
	// ErrNotStarted is returned by State before Start was called.
	ErrNotStarted = errors.New("memory client not started")
	// ErrNotReady is returned by sends when Options.RequireReady is set and
	// the client has not reported ready yet.
	ErrNotReady = errors.New("memory client not ready")
	// ErrClosed is returned by every call after Logout or Close.
	ErrClosed = errors.New("memory client closed")
)

// Options scripts the behavior of clients built by a [Factory].
type Options struct {
	// AutoLogin emits challenge, authenticated and ready on Start.
	AutoLogin bool
	// RequireReady makes sends fail with ErrNotReady until ready.
	RequireReady bool
	// SendDelay delays every send; the send honors ctx while waiting.
	SendDelay time.Duration
	// FailSend, when non-nil, is consulted before every send.
	FailSend func(address string) error
	// FailLogout, when non-nil, is consulted by Logout.
	FailLogout func(sessionID string) error
	// FailNew, when non-nil, is consulted by Factory.New.
	FailNew func(sessionID string) error
	// EventBuffer sizes the event channel. Defaults to 16.
	EventBuffer int
}

// Message records one accepted send.
type Message struct {
	Address string
	Text    string
	Media   *client.Media
	Caption string
	Ack     client.Ack
}

// Factory builds memory clients and remembers the latest one per session id.
type Factory struct {
	opts Options

	mu      sync.Mutex
	clients map[string]*Client
}

// NewFactory returns a Factory applying opts to every client.
func NewFactory(opts Options) *Factory {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 16
	}
	return &Factory{
		opts:    opts,
		clients: make(map[string]*Client),
	}
}

// New implements client.Factory.
func (f *Factory) New(_ context.Context, sessionID string) (client.Client, error) {
	if f.opts.FailNew != nil {
		if err := f.opts.FailNew(sessionID); err != nil {
			return nil, err
		}
	}
	c := &Client{
		sessionID: sessionID,
		opts:      f.opts,
		events:    make(chan client.Event, f.opts.EventBuffer),
		done:      make(chan struct{}),
	}
	f.mu.Lock()
	f.clients[sessionID] = c
	f.mu.Unlock()
	return c, nil
}

// Client returns the most recent client built for sessionID.
func (f *Factory) Client(sessionID string) (*Client, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[sessionID]
	return c, ok
}

// Client is a scriptable in-memory client.
type Client struct {
	sessionID string
	opts      Options

	mu            sync.Mutex
	events        chan client.Event
	emitMu        sync.RWMutex
	done          chan struct{}
	closeOnce     sync.Once
	started       bool
	authenticated bool
	ready         bool
	closed        bool
	loggedOut     bool
	sent          []Message
}

// Start implements client.Client.
func (c *Client) Start(context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.started = true
	c.mu.Unlock()

	if c.opts.AutoLogin {
		go func() {
			c.IssueChallenge("memory-challenge:" + c.sessionID)
			c.Authenticate()
			c.MarkReady()
		}()
	}
	return nil
}

// Events implements client.Client.
func (c *Client) Events() <-chan client.Event {
	return c.events
}

// Emit delivers ev to the event stream. It blocks while the buffer is full
// and reports false once the client is closed.
func (c *Client) Emit(ev client.Event) bool {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	c.emitMu.RLock()
	defer c.emitMu.RUnlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	switch ev.Kind {
	case client.EventAuthenticated:
		c.authenticated = true
	case client.EventReady:
		c.authenticated = true
		c.ready = true
	case client.EventChallenge:
		c.authenticated = false
		c.ready = false
	}
	c.mu.Unlock()

	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// IssueChallenge emits a challenge event carrying code.
func (c *Client) IssueChallenge(code string) bool {
	return c.Emit(client.Event{Kind: client.EventChallenge, Challenge: code})
}

// Authenticate emits an authenticated event.
func (c *Client) Authenticate() bool {
	return c.Emit(client.Event{Kind: client.EventAuthenticated})
}

// MarkReady emits a ready event.
func (c *Client) MarkReady() bool {
	return c.Emit(client.Event{Kind: client.EventReady})
}

// LogOutRemotely emits a logged-out event, as if the account was unlinked
// from the phone.
func (c *Client) LogOutRemotely() bool {
	return c.Emit(client.Event{Kind: client.EventLoggedOut})
}

// State implements client.Client.
func (c *Client) State(context.Context) (client.ConnState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return client.ConnDisconnected, nil
	case !c.started:
		return client.ConnUnknown, ErrNotStarted
	case c.ready:
		return client.ConnConnected, nil
	case c.authenticated:
		return client.ConnOpening, nil
	default:
		return client.ConnPairing, nil
	}
}

// SendText implements client.Client.
func (c *Client) SendText(ctx context.Context, address, text string) (client.Ack, error) {
	return c.send(ctx, Message{Address: address, Text: text})
}

// SendMedia implements client.Client.
func (c *Client) SendMedia(ctx context.Context, address string, media client.Media, opts client.SendOptions) (client.Ack, error) {
	m := media
	return c.send(ctx, Message{Address: address, Media: &m, Caption: opts.Caption})
}

func (c *Client) send(ctx context.Context, msg Message) (client.Ack, error) {
	if c.opts.SendDelay > 0 {
		timer := time.NewTimer(c.opts.SendDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return client.Ack{}, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return client.Ack{}, ErrClosed
	}
	if c.opts.RequireReady && !c.ready {
		return client.Ack{}, ErrNotReady
	}
	if c.opts.FailSend != nil {
		if err := c.opts.FailSend(msg.Address); err != nil {
			return client.Ack{}, err
		}
	}
	msg.Ack = client.Ack{
		MessageID: uuid.NewString(),
		To:        msg.Address,
		Timestamp: time.Now().UTC(),
	}
	c.sent = append(c.sent, msg)
	return msg.Ack, nil
}

// Sent returns a copy of every accepted send, in order.
func (c *Client) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// Logout implements client.Client.
func (c *Client) Logout(context.Context) error {
	if c.opts.FailLogout != nil {
		if err := c.opts.FailLogout(c.sessionID); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.loggedOut = true
	c.mu.Unlock()
	return c.Close()
}

// Close implements client.Client. Pending Emit calls are released before
// the event channel is closed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.done)
		c.emitMu.Lock()
		close(c.events)
		c.emitMu.Unlock()
	})
	return nil
}

// LoggedOut reports whether Logout completed.
func (c *Client) LoggedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOut
}

// Closed reports whether the client was torn down.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
