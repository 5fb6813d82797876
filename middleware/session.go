package middleware

import "context"

// SessionAllowed reports whether the caller may operate on sessionID.
// Requests that carry no claims (authentication disabled) are allowed.
func SessionAllowed(ctx context.Context, sessionID string) bool {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return true
	}
	return claims.AllowsSession(sessionID)
}
