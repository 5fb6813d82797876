// Package audit implements async delivery of session lifecycle and dispatch
// events to pluggable sinks.
//
// # Components
//
//   - [Sink]: event consumer (no-op, channel, JSON lines, slog, Redis stream).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record: id, timestamp, type, tenant, session, recipient, metadata.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. It does NOT decide which
// events to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on session state.
//   - Import goWA or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
