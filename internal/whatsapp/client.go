package whatsapp

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/MrEthical07/goWA/client"
)

var (
	errClosed      = errors.New("whatsapp client closed")
	errNoTransport = errors.New("whatsapp client has no transport")
)

// conn is the part of *whatsmeow.Client the adapter drives.
type conn interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	IsLoggedIn() bool
	GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error)
	AddEventHandler(handler whatsmeow.EventHandler) uint32
	RemoveEventHandler(id uint32) bool
	Logout(ctx context.Context) error
}

// Client adapts one whatsmeow client to client.Client.
type Client struct {
	wc        *whatsmeow.Client
	conn      conn
	sessionID string
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	events    chan client.Event
	emitMu    sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once
	handlerID uint32
}

func newClient(wc *whatsmeow.Client, sessionID string, buffer int, logger *slog.Logger) *Client {
	c := newAdapter(wc, sessionID, buffer, logger)
	c.wc = wc
	return c
}

func newAdapter(cn conn, sessionID string, buffer int, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:      cn,
		sessionID: sessionID,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan client.Event, buffer),
		done:      make(chan struct{}),
	}
	c.handlerID = cn.AddEventHandler(c.handle)
	return c
}

// Start implements client.Client. Unpaired devices stream pairing codes as
// challenge events until one is scanned; paired devices just connect.
func (c *Client) Start(ctx context.Context) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}

	if !c.conn.IsLoggedIn() {
		qr, err := c.conn.GetQRChannel(c.ctx)
		if err != nil {
			return err
		}
		go c.pumpChallenges(qr)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.conn.Connect()
}

func (c *Client) pumpChallenges(qr <-chan whatsmeow.QRChannelItem) {
	for item := range qr {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			c.emit(client.Event{Kind: client.EventChallenge, Challenge: item.Code})
		case whatsmeow.QRChannelEventError:
			c.logger.Warn("pairing failed", "error", item.Error)
		case "success":
		default:
			c.logger.Info("pairing channel ended", "event", item.Event)
		}
	}
}

// handle maps whatsmeow events onto lifecycle events. It runs on
// whatsmeow's dispatch goroutine.
func (c *Client) handle(evt interface{}) {
	switch v := evt.(type) {
	case *events.PairSuccess:
		c.logger.Info("device paired", "jid", v.ID.String())
		c.emit(client.Event{Kind: client.EventAuthenticated})
	case *events.Connected:
		c.emit(client.Event{Kind: client.EventReady})
	case *events.LoggedOut:
		c.logger.Warn("device logged out remotely", "reason", v.Reason.String())
		c.emit(client.Event{Kind: client.EventLoggedOut})
	case *events.StreamReplaced:
		c.logger.Warn("stream replaced by another connection")
	case *events.Disconnected:
		c.logger.Debug("disconnected")
	}
}

// emit delivers ev unless the client is closed. It blocks while the
// consumer is behind so lifecycle events are never dropped.
func (c *Client) emit(ev client.Event) bool {
	c.emitMu.RLock()
	defer c.emitMu.RUnlock()
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// Events implements client.Client.
func (c *Client) Events() <-chan client.Event { return c.events }

// State implements client.Client.
func (c *Client) State(context.Context) (client.ConnState, error) {
	select {
	case <-c.done:
		return client.ConnDisconnected, nil
	default:
	}
	switch {
	case c.conn.IsConnected() && c.conn.IsLoggedIn():
		return client.ConnConnected, nil
	case c.conn.IsConnected():
		return client.ConnPairing, nil
	default:
		return client.ConnDisconnected, nil
	}
}

// SendText implements client.Client.
func (c *Client) SendText(ctx context.Context, address, text string) (client.Ack, error) {
	if c.wc == nil {
		return client.Ack{}, errNoTransport
	}
	jid, err := parseAddress(address)
	if err != nil {
		return client.Ack{}, err
	}
	resp, err := c.wc.SendMessage(ctx, jid, textMessage(text))
	if err != nil {
		return client.Ack{}, err
	}
	return client.Ack{MessageID: string(resp.ID), To: address, Timestamp: resp.Timestamp}, nil
}

// SendMedia implements client.Client. The blob is uploaded first and the
// message references the upload.
func (c *Client) SendMedia(ctx context.Context, address string, media client.Media, opts client.SendOptions) (client.Ack, error) {
	if c.wc == nil {
		return client.Ack{}, errNoTransport
	}
	jid, err := parseAddress(address)
	if err != nil {
		return client.Ack{}, err
	}
	mt := mediaTypeFor(media.MimeType)
	up, err := c.wc.Upload(ctx, media.Data, mt)
	if err != nil {
		return client.Ack{}, err
	}
	resp, err := c.wc.SendMessage(ctx, jid, mediaMessage(mt, up, media, opts.Caption))
	if err != nil {
		return client.Ack{}, err
	}
	return client.Ack{MessageID: string(resp.ID), To: address, Timestamp: resp.Timestamp}, nil
}

// Logout implements client.Client. An unpaired device has nothing to
// unlink and is only closed.
func (c *Client) Logout(ctx context.Context) error {
	if c.conn.IsLoggedIn() {
		if err := c.conn.Logout(ctx); err != nil {
			return err
		}
	}
	return c.Close()
}

// Close implements client.Client. It disconnects without unlinking.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		// Release emits blocked on a full buffer before taking the
		// connection's handler lock they may be holding.
		close(c.done)
		c.cancel()
		c.conn.RemoveEventHandler(c.handlerID)
		c.conn.Disconnect()

		c.emitMu.Lock()
		close(c.events)
		c.emitMu.Unlock()
	})
	return nil
}
