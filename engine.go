package goWA

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goWA/challenge"
	"github.com/MrEthical07/goWA/client"
	"github.com/MrEthical07/goWA/internal/audit"
	"github.com/MrEthical07/goWA/internal/bridge"
	"github.com/MrEthical07/goWA/internal/dispatch"
	"github.com/MrEthical07/goWA/session"
)

// Engine is the gateway facade over the session registry, the event bridge
// and the dispatch engine. All methods are safe for concurrent use.
type Engine struct {
	config     Config
	registry   *session.Registry
	bridge     *bridge.Bridge
	dispatcher *dispatch.Dispatcher
	encoder    *challenge.Encoder
	audit      *audit.Dispatcher
	metrics    *Metrics
	logger     *slog.Logger
	observers  *observerSet

	closed    atomic.Bool
	closeOnce sync.Once
}

// Close releases every client without logging out, waits for the event
// pumps to finish and drains the audit queue. Subsequent calls return
// ErrEngineClosed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.registry.Close()
		e.bridge.Wait()
		e.audit.Close()
	})
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.config
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// CreateSession registers id and starts its client's login. It returns the
// initial status without waiting for a challenge or authentication.
func (e *Engine) CreateSession(ctx context.Context, id string) (SessionStatus, error) {
	if e.closed.Load() {
		return SessionStatus{}, ErrEngineClosed
	}

	s, err := e.registry.Create(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRegistryClosed):
			return SessionStatus{}, ErrEngineClosed
		case errors.Is(err, session.ErrInvalidID):
			e.metricInc(MetricValidationRejected)
			return SessionStatus{}, &ValidationError{Reason: "sessionId is required and must not be padded"}
		case errors.Is(err, ErrDuplicateSession):
			e.metricInc(MetricSessionDuplicate)
			e.emitAudit(ctx, auditEventSessionDuplicate, false, id, "", err, nil)
		default:
			e.metricInc(MetricSessionCreateFailed)
			e.emitAudit(ctx, auditEventSessionCreateFailed, false, id, "", err, nil)
			e.logger.Warn("session create failed", "session_id", id, "error", err)
		}
		return SessionStatus{}, err
	}

	st := s.Status()
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, id, "", nil, nil)
	e.logger.Info("session created", "session_id", id)
	e.observers.publish(newStatusEvent(statusEventCreated, st))
	return st, nil
}

// RemoveSession logs the session out and unregisters it. When the client
// logout fails the session stays registered and the error wraps
// ErrExternalClient.
func (e *Engine) RemoveSession(ctx context.Context, id string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	st, err := e.registry.Remove(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return err
		}
		e.metricInc(MetricSessionRemoveFailed)
		e.emitAudit(ctx, auditEventSessionRemoveFailed, false, id, "", err, nil)
		e.logger.Warn("session remove failed", "session_id", id, "error", err)
		return err
	}

	e.metricInc(MetricSessionRemoved)
	e.emitAudit(ctx, auditEventSessionRemoved, true, id, "", nil, nil)
	e.logger.Info("session removed", "session_id", id)
	e.observers.publish(newStatusEvent(statusEventRemoved, st))
	return nil
}

// ListSessions returns every registered id in ascending order.
func (e *Engine) ListSessions() []string {
	return e.registry.List()
}

// ListStatuses returns a status snapshot for every registered session.
func (e *Engine) ListStatuses() []SessionStatus {
	return e.registry.Statuses()
}

// SessionStatus returns the locally tracked status of id. Authenticated is
// the state machine's flag and never depends on the client.
func (e *Engine) SessionStatus(id string) (SessionStatus, error) {
	s, err := e.registry.Get(id)
	if err != nil {
		return SessionStatus{}, err
	}
	return s.Status(), nil
}

// ConnectionState asks the session's client for its own connection report,
// bounded by Dispatch.StateTimeout. The result is informational and does
// not change the session state.
func (e *Engine) ConnectionState(ctx context.Context, id string) (ConnState, error) {
	s, err := e.registry.Get(id)
	if err != nil {
		return client.ConnUnknown, err
	}
	c := s.Client()
	if c == nil {
		return client.ConnUnknown, ErrClientUnavailable
	}
	st, err := client.Do(ctx, e.config.Dispatch.StateTimeout, c.State)
	if err != nil {
		return client.ConnUnknown, fmt.Errorf("%w: state: %w", ErrExternalClient, err)
	}
	return st, nil
}

// ChallengeImage renders the session's pending pairing challenge as a PNG
// data URL.
func (e *Engine) ChallengeImage(ctx context.Context, id string) (string, error) {
	s, err := e.registry.Get(id)
	if err != nil {
		return "", err
	}
	st := s.Status()
	if st.Authenticated {
		return "", ErrAlreadyAuthenticated
	}
	if st.State != session.StateAwaitingScan || st.LastChallenge == "" {
		return "", ErrChallengeUnavailable
	}

	url, err := e.encoder.DataURL(ctx, st.LastChallenge)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricChallengeRendered)
	return url, nil
}

// SendText sends text to one recipient.
func (e *Engine) SendText(ctx context.Context, sessionID, recipient, text string) (SendResult, error) {
	if e.closed.Load() {
		return SendResult{}, ErrEngineClosed
	}
	res, err := e.dispatcher.SendText(ctx, sessionID, recipient, text)
	e.recordSend(ctx, sessionID, string(dispatch.KindText), err, res)
	return res, err
}

// SendMedia uploads media and sends it to one recipient with an optional
// caption.
func (e *Engine) SendMedia(ctx context.Context, sessionID, recipient string, in MediaInput, caption string) (SendResult, error) {
	if e.closed.Load() {
		return SendResult{}, ErrEngineClosed
	}
	res, err := e.dispatcher.SendMedia(ctx, sessionID, recipient, in, caption)
	e.recordSend(ctx, sessionID, string(dispatch.KindMedia), err, res)
	return res, err
}

// SendBroadcast sends text to each recipient in order and returns one
// result per recipient. Individual failures are reported in the results;
// the error is non-nil only when the broadcast was rejected as a whole.
func (e *Engine) SendBroadcast(ctx context.Context, sessionID string, recipients []string, text string) ([]SendResult, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	results, err := e.dispatcher.SendBroadcast(ctx, sessionID, recipients, text)
	if err != nil {
		e.recordSend(ctx, sessionID, string(dispatch.KindBroadcast), err)
		return results, err
	}

	e.metricInc(MetricBroadcast)
	e.recordSend(ctx, sessionID, string(dispatch.KindBroadcast), nil, results...)
	return results, nil
}

// Subscribe registers fn for every session status change. fn is called
// synchronously from engine goroutines and must not block. The returned
// function unregisters it.
func (e *Engine) Subscribe(fn func(StatusEvent)) (cancel func()) {
	return e.observers.add(fn)
}

func (e *Engine) onTransition(s *session.Session, in session.Input, prev, next session.Status) {
	if in.Kind == session.InputChallenge {
		e.metricInc(MetricChallengeIssued)
	}
	if next.Authenticated && !prev.Authenticated {
		e.metricInc(MetricSessionAuthenticated)
	}
	if next.State == session.StateReady && prev.State != session.StateReady {
		e.metricInc(MetricSessionReady)
	}

	ctx := context.Background()
	e.emitAudit(ctx, auditEventSessionTransition, true, s.ID(), "", nil, func() map[string]string {
		return map[string]string{
			"input": in.Kind.String(),
			"from":  prev.State.String(),
			"to":    next.State.String(),
		}
	})
	e.observers.publish(newStatusEvent(statusEventTransition, next))
}

func (e *Engine) onRemoteClose(s *session.Session) {
	if !e.registry.Detach(s) {
		return
	}
	e.metricInc(MetricSessionLoggedOut)
	e.emitAudit(context.Background(), auditEventSessionLoggedOut, true, s.ID(), "", nil, nil)
	e.logger.Info("session logged out remotely", "session_id", s.ID())
}

func (e *Engine) onSent(_ string, _ dispatch.Kind, res dispatch.Result, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.Observe(MetricSendLatency, elapsed)
	switch {
	case res.Success:
		e.metrics.Inc(MetricSendSuccess)
	case errors.Is(res.Err, client.ErrTimeout):
		e.metrics.Inc(MetricSendTimeout)
		e.metrics.Inc(MetricSendFailure)
	default:
		e.metrics.Inc(MetricSendFailure)
	}
}

func (e *Engine) recordSend(ctx context.Context, sessionID, kind string, err error, results ...SendResult) {
	if errors.Is(err, ErrValidation) {
		e.metricInc(MetricValidationRejected)
	}
	for _, res := range results {
		if res.Recipient == "" && res.Address == "" {
			continue
		}
		eventType := auditEventMessageSent
		if !res.Success {
			eventType = auditEventMessageFailed
		}
		res := res
		e.emitAuditRecipient(ctx, eventType, res.Success, sessionID, res.Recipient, res.Err, func() map[string]string {
			md := map[string]string{"kind": kind}
			if res.Ack != nil {
				md["message_id"] = res.Ack.MessageID
			}
			return md
		})
	}
}

/*
====================================
OBSERVERS
====================================
*/

const (
	statusEventCreated    = "session_created"
	statusEventRemoved    = "session_removed"
	statusEventTransition = "session_transition"
)

type observerSet struct {
	mu   sync.RWMutex
	next uint64
	fns  map[uint64]func(StatusEvent)
}

func newObserverSet() *observerSet {
	return &observerSet{fns: make(map[uint64]func(StatusEvent))}
}

func (o *observerSet) add(fn func(StatusEvent)) func() {
	if fn == nil {
		return func() {}
	}
	o.mu.Lock()
	id := o.next
	o.next++
	o.fns[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.fns, id)
			o.mu.Unlock()
		})
	}
}

func (o *observerSet) publish(ev StatusEvent) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, fn := range o.fns {
		fn(ev)
	}
}
