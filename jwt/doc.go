// Package jwt issues and verifies tenant access tokens for the gateway's
// HTTP surface. A token names one tenant, optionally pins the session ids
// it may operate on, and lists the granted scopes.
package jwt
