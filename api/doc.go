// Package api serves the gateway's HTTP routes on top of a [goWA.Engine].
//
// Routes use net/http method patterns:
//
//	POST /session               create a session
//	POST /session/logout        log out and remove a session
//	GET  /session/list          list session ids
//	GET  /auth/qr/{sessionId}   pairing challenge as a PNG data URL
//	GET  /auth/status/{sessionId}
//	POST /send                  text to one recipient
//	POST /send-file             media (multipart "file" or JSON base64)
//	POST /send-multiple         text to many recipients
//	GET  /events                status stream, when configured
//	GET  /metrics               metrics exposition, when configured
//	GET  /healthz
//
// Every response carries X-Request-ID. Errors are JSON objects with a single
// "error" field; engine errors map to 400, 404, 409, 502, 503 and 504.
//
// # Architecture boundaries
//
// The package parses requests and renders responses. Session state, address
// normalization and media validation live in the engine. When a token
// verifier is configured, routes run behind [middleware.Guard] with
// per-route scopes, and session ids outside the token's allow-list are
// answered with 403.
//
// # What this package must NOT do
//
//   - Hold session state of its own.
//   - Talk to messaging clients directly.
package api
