// Package session provides the per-session lifecycle state machine and the
// concurrency-safe [Registry] that owns every live [Session].
//
// # State machine
//
// A Session moves through Created, AwaitingScan, Authenticated, Ready and
// Closed. [Transition] is a pure function over [Status]; callers feed it one
// [Input] at a time, in the order the external client emitted them.
// Closed is terminal: inputs received after it are ignored, not rejected.
//
// # Architecture boundaries
//
// This package owns Session state and registration. It does NOT consume the
// external client's event stream (internal/bridge does), send messages, or
// encode challenges.
//
// # What this package must NOT do
//
//   - Import goWA or any internal package (no upward imports).
//   - Hold the registry lock while calling the external client.
package session
