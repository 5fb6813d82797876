// Package stream pushes session status changes to websocket subscribers.
package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	goWA "github.com/MrEthical07/goWA"
	"github.com/MrEthical07/goWA/middleware"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultSendBuffer = 64

	// EventSnapshot marks the per-session events sent right after connect.
	EventSnapshot = "session_snapshot"
)

// Options configures a Hub.
type Options struct {
	// Snapshot, when set, is called for every new subscriber and its result
	// is sent before live events.
	Snapshot func() []goWA.SessionStatus
	// SendBuffer is the per-subscriber queue length. A subscriber whose
	// queue is full is disconnected. Defaults to 64.
	SendBuffer int
	// CheckOrigin overrides the upgrader's origin check. Nil allows every
	// origin.
	CheckOrigin func(r *http.Request) bool
	Logger      *slog.Logger
}

// Hub fans StatusEvents out to websocket subscribers. Publish never blocks.
type Hub struct {
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	closed  bool
	dropped atomic.Uint64
}

type subscriber struct {
	conn    *websocket.Conn
	send    chan []byte
	session string
	allow   func(sessionID string) bool
}

func (s *subscriber) wants(sessionID string) bool {
	if s.session != "" && s.session != sessionID {
		return false
	}
	return s.allow(sessionID)
}

// NewHub returns an empty Hub.
func NewHub(opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// Publish queues ev for every subscriber that may see its session.
// Subscribers that cannot keep up are disconnected.
func (h *Hub) Publish(ev goWA.StatusEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode status event", "error", err)
		return
	}

	var slow []*subscriber
	h.mu.RLock()
	for sub := range h.subs {
		if !sub.wants(ev.SessionID) {
			continue
		}
		select {
		case sub.send <- payload:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		if h.remove(sub) {
			h.dropped.Add(1)
			h.logger.Warn("dropping slow stream subscriber", "session_filter", sub.session)
		}
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many subscribers were disconnected for falling behind.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.send)
	}
}

// ServeHTTP upgrades the request and streams status events. The optional
// "session" query parameter narrows the stream to one session id. Token
// claims placed on the request by middleware.Guard restrict which sessions
// are visible.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("session")
	if filter != "" && !middleware.SessionAllowed(r.Context(), filter) {
		http.Error(w, `{"error":"session not permitted for this token"}`, http.StatusForbidden)
		return
	}

	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, `{"error":"stream closed"}`, http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	claims, hasClaims := middleware.ClaimsFromContext(r.Context())
	sub := &subscriber{
		conn:    conn,
		send:    make(chan []byte, h.opts.SendBuffer),
		session: filter,
		allow: func(id string) bool {
			return !hasClaims || claims.AllowsSession(id)
		},
	}
	if !h.add(sub) {
		_ = conn.Close()
		return
	}

	go h.writePump(sub)
	go h.readPump(sub)

	h.sendSnapshot(sub)
}

func (h *Hub) add(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[sub] = struct{}{}
	return true
}

// remove unregisters sub and closes its queue. It reports whether sub was
// still registered.
func (h *Hub) remove(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return false
	}
	delete(h.subs, sub)
	close(sub.send)
	return true
}

// sendSnapshot runs after registration, so a live event may arrive before
// the snapshot. The snapshot is never older than such an event.
func (h *Hub) sendSnapshot(sub *subscriber) {
	if h.opts.Snapshot == nil {
		return
	}
	for _, st := range h.opts.Snapshot() {
		if !sub.wants(st.ID) {
			continue
		}
		payload, err := json.Marshal(goWA.StatusEvent{
			Event:         EventSnapshot,
			SessionID:     st.ID,
			State:         st.State,
			Authenticated: st.Authenticated,
			HasChallenge:  st.LastChallenge != "",
			At:            st.UpdatedAt,
		})
		if err != nil {
			continue
		}

		h.mu.RLock()
		_, live := h.subs[sub]
		if live {
			select {
			case sub.send <- payload:
			default:
			}
		}
		h.mu.RUnlock()
		if !live {
			return
		}
	}
}

// readPump only services control frames; inbound messages are discarded.
func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		h.remove(sub)
		_ = sub.conn.Close()
	}()

	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("stream read error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case message, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("stream write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
