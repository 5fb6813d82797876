// Package client defines the contract between goWA and an external
// messaging-automation client (login, challenge issuance, transport).
//
// One [Client] instance is bound to exactly one session. It starts an
// asynchronous login, reports lifecycle progress as an ordered stream of
// [Event] values, and exposes send, logout and best-effort state queries.
//
// # What this package must NOT do
//
//   - Import goWA, session, or any internal package (no upward imports).
//   - Interpret lifecycle events; the session state machine owns that.
package client
