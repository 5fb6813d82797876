// Package goWA is a multi-session messaging gateway engine. It keeps a
// registry of independently authenticated sessions, drives each session's
// lifecycle from its client's event stream, and dispatches text, media and
// broadcast messages through the session's client.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goWA is the public surface. It exposes [Engine], [Builder], [Config] and
// value types (SessionStatus, SendResult, MetricsSnapshot). The session
// state machine lives in package session; event consumption, dispatch and
// audit delivery live under internal/ and are never exported. Messaging
// clients are supplied through a [client.Factory].
//
// # What this package must NOT do
//
//   - Query the messaging client to decide whether a session is
//     authenticated. The local state machine is authoritative.
//   - Hold a registry or session lock across a client call.
//   - Import the api, middleware or cmd packages.
//
// # Timeouts
//
// Every client call (start, send, upload, logout, state) is bounded by the
// matching Config duration. A call that exceeds its deadline is reported as
// ErrClientTimeout wrapped in ErrExternalClient; the client's goroutine is
// abandoned, not killed.
package goWA
