package api

import (
	"context"
	"log/slog"
	"net/http"

	goWA "github.com/MrEthical07/goWA"
	"github.com/MrEthical07/goWA/jwt"
	"github.com/MrEthical07/goWA/middleware"
)

const (
	defaultMaxBodyBytes   = 1 << 20
	defaultMaxUploadBytes = 16 << 20
)

// Engine is the subset of *goWA.Engine the handlers call.
type Engine interface {
	CreateSession(ctx context.Context, id string) (goWA.SessionStatus, error)
	RemoveSession(ctx context.Context, id string) error
	ListSessions() []string
	SessionStatus(id string) (goWA.SessionStatus, error)
	ConnectionState(ctx context.Context, id string) (goWA.ConnState, error)
	ChallengeImage(ctx context.Context, id string) (string, error)
	SendText(ctx context.Context, sessionID, recipient, text string) (goWA.SendResult, error)
	SendMedia(ctx context.Context, sessionID, recipient string, in goWA.MediaInput, caption string) (goWA.SendResult, error)
	SendBroadcast(ctx context.Context, sessionID string, recipients []string, text string) ([]goWA.SendResult, error)
}

// Options configures a Server. Zero values are usable.
type Options struct {
	// Verifier enables bearer-token auth on every session and send route.
	Verifier middleware.Verifier
	// Events serves GET /events. The route is absent when nil.
	Events http.Handler
	// Metrics serves GET /metrics. The route is absent when nil.
	Metrics http.Handler
	// MaxBodyBytes caps JSON bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
	// MaxUploadBytes caps /send-file bodies. Defaults to 16 MiB.
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server routes HTTP requests to an Engine.
type Server struct {
	engine  Engine
	opts    Options
	logger  *slog.Logger
	handler http.Handler
}

// New builds a Server for engine.
func New(engine Engine, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{engine: engine, opts: opts, logger: logger}
	s.handler = s.withRequestID(s.withAccessLog(s.routes()))
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("POST /session", s.guard(jwt.ScopeSessions, s.handleCreateSession))
	mux.Handle("POST /session/logout", s.guard(jwt.ScopeSessions, s.handleLogout))
	mux.Handle("GET /session/list", s.guard(jwt.ScopeRead, s.handleList))
	mux.Handle("GET /auth/qr/{sessionId}", s.guard(jwt.ScopeRead, s.handleChallenge))
	mux.Handle("GET /auth/status/{sessionId}", s.guard(jwt.ScopeRead, s.handleStatus))
	mux.Handle("POST /send", s.guard(jwt.ScopeSend, s.handleSend))
	mux.Handle("POST /send-file", s.guard(jwt.ScopeSend, s.handleSendFile))
	mux.Handle("POST /send-multiple", s.guard(jwt.ScopeSend, s.handleSendMultiple))

	if s.opts.Events != nil {
		mux.Handle("GET /events", s.guard(jwt.ScopeRead, s.opts.Events.ServeHTTP))
	}
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

func (s *Server) guard(scope string, h http.HandlerFunc) http.Handler {
	if s.opts.Verifier == nil {
		return h
	}
	return middleware.Guard(s.opts.Verifier)(middleware.RequireScope(scope)(h))
}
