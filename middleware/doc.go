// Package middleware exposes HTTP middleware that authenticates gateway
// callers with tenant access tokens.
//
// # Guards
//
//   - [Guard] verifies the bearer token and injects claims and tenant.
//   - [RequireScope] enforces one scope on a route.
//   - [SessionAllowed] checks session pinning once the handler knows the id.
//
// # Architecture boundaries
//
// Token cryptography lives in package jwt; this package only translates
// HTTP semantics into Verifier calls and context values.
//
// # What this package must NOT do
//
//   - Create tokens.
//   - Call the engine.
package middleware
