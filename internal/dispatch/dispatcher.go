// Package dispatch performs sends against one session's external client and
// turns every outcome into a per-recipient [Result].
//
// Validation happens before the client is touched. Client failures, panics
// and timeouts never escape as anything but a failed Result plus a
// *SendError, and a broadcast always yields one Result per input recipient,
// in input order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goWA/client"
	"github.com/MrEthical07/goWA/session"
)

// Config controls send behavior.
type Config struct {
	// SendTimeout bounds each individual client call. Zero means no timeout.
	SendTimeout time.Duration
	// AddressSuffix is appended to normalized numbers.
	AddressSuffix string
	// MaxBroadcastRecipients caps one broadcast. Zero means unlimited.
	MaxBroadcastRecipients int
}

// Lookup resolves session ids. *session.Registry satisfies it.
type Lookup interface {
	Get(id string) (*session.Session, error)
}

// Kind names the send operation in hooks.
type Kind string

const (
	KindText      Kind = "text"
	KindMedia     Kind = "media"
	KindBroadcast Kind = "broadcast"
)

// Hooks observe completed client calls. Sent is called once per recipient
// that reached the client, with the call latency.
type Hooks struct {
	Sent func(sessionID string, kind Kind, res Result, elapsed time.Duration)
}

// Result is the outcome for one recipient.
type Result struct {
	Recipient string      `json:"recipient"`
	Address   string      `json:"address,omitempty"`
	Success   bool        `json:"success"`
	Ack       *client.Ack `json:"ack,omitempty"`
	Error     string      `json:"error,omitempty"`
	Err       error       `json:"-"`
}

// Dispatcher sends through sessions resolved by a Lookup.
type Dispatcher struct {
	cfg      Config
	sessions Lookup
	hooks    Hooks
	logger   *slog.Logger
}

// New returns a Dispatcher. A nil logger discards.
func New(cfg Config, sessions Lookup, hooks Hooks, logger *slog.Logger) *Dispatcher {
	if cfg.AddressSuffix == "" {
		cfg.AddressSuffix = DefaultAddressSuffix
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		cfg:      cfg,
		sessions: sessions,
		hooks:    hooks,
		logger:   logger,
	}
}

// SendText sends text to one recipient. Validation failures return a
// *ValidationError and an empty Result; client failures return the failed
// Result together with a *SendError.
func (d *Dispatcher) SendText(ctx context.Context, sessionID, recipient, text string) (Result, error) {
	s, err := d.sessions.Get(sessionID)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, invalid("message text is required")
	}
	address, err := NormalizeAddress(recipient, d.cfg.AddressSuffix)
	if err != nil {
		return Result{}, err
	}
	res := d.deliver(ctx, s, KindText, recipient, address, func(ctx context.Context, c client.Client) (client.Ack, error) {
		return c.SendText(ctx, address, text)
	})
	return res, res.Err
}

// SendMedia sends one media item with an optional caption.
func (d *Dispatcher) SendMedia(ctx context.Context, sessionID, recipient string, in MediaInput, caption string) (Result, error) {
	s, err := d.sessions.Get(sessionID)
	if err != nil {
		return Result{}, err
	}
	address, err := NormalizeAddress(recipient, d.cfg.AddressSuffix)
	if err != nil {
		return Result{}, err
	}
	media, err := in.Media()
	if err != nil {
		return Result{}, err
	}
	opts := client.SendOptions{Caption: caption}
	res := d.deliver(ctx, s, KindMedia, recipient, address, func(ctx context.Context, c client.Client) (client.Ack, error) {
		return c.SendMedia(ctx, address, media, opts)
	})
	return res, res.Err
}

// SendBroadcast sends text to every recipient strictly in input order. The
// returned slice has exactly one entry per recipient; a failing recipient,
// including one that cannot be normalized, is recorded and the batch moves
// on. The error is non-nil only when the whole request is rejected.
func (d *Dispatcher) SendBroadcast(ctx context.Context, sessionID string, recipients []string, text string) ([]Result, error) {
	s, err := d.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, invalid("message text is required")
	}
	if len(recipients) == 0 {
		return nil, invalid("at least one recipient is required")
	}
	if limit := d.cfg.MaxBroadcastRecipients; limit > 0 && len(recipients) > limit {
		return nil, invalid("broadcast exceeds %d recipients", limit)
	}

	results := make([]Result, len(recipients))
	for i, recipient := range recipients {
		address, err := NormalizeAddress(recipient, d.cfg.AddressSuffix)
		if err != nil {
			results[i] = Result{Recipient: recipient, Error: err.Error(), Err: err}
			continue
		}
		results[i] = d.deliver(ctx, s, KindBroadcast, recipient, address, func(ctx context.Context, c client.Client) (client.Ack, error) {
			return c.SendText(ctx, address, text)
		})
	}
	return results, nil
}

func (d *Dispatcher) deliver(
	ctx context.Context,
	s *session.Session,
	kind Kind,
	recipient string,
	address string,
	send func(context.Context, client.Client) (client.Ack, error),
) Result {
	res := Result{Recipient: recipient, Address: address}

	c := s.Client()
	if c == nil {
		return d.fail(res, session.ErrClientUnavailable)
	}

	start := time.Now()
	ack, err := client.Do(ctx, d.cfg.SendTimeout, func(ctx context.Context) (client.Ack, error) {
		return send(ctx, c)
	})
	elapsed := time.Since(start)

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %w", session.ErrExternalClient, err)
		}
		res = d.fail(res, err)
		d.logger.Warn("send failed",
			"session_id", s.ID(),
			"kind", string(kind),
			"address", address,
			"error", err,
		)
	} else {
		res.Success = true
		res.Ack = &ack
	}

	if d.hooks.Sent != nil {
		d.hooks.Sent(s.ID(), kind, res, elapsed)
	}
	return res
}

func (d *Dispatcher) fail(res Result, cause error) Result {
	err := &SendError{Recipient: res.Recipient, Cause: cause}
	res.Success = false
	res.Error = cause.Error()
	res.Err = err
	return res
}
