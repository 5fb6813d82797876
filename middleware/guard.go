package middleware

import (
	"context"
	"net/http"
	"strings"

	goWA "github.com/MrEthical07/goWA"
	"github.com/MrEthical07/goWA/jwt"
)

// Verifier parses bearer tokens. *jwt.Manager satisfies it.
type Verifier interface {
	ParseAccess(token string) (*jwt.AccessClaims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims injected by Guard.
func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.AccessClaims)
	return claims, ok
}

// WithClaims attaches claims to ctx the way Guard does.
func WithClaims(ctx context.Context, claims *jwt.AccessClaims) context.Context {
	ctx = context.WithValue(ctx, claimsContextKey{}, claims)
	if claims != nil {
		ctx = goWA.WithTenantID(ctx, claims.Tenant)
	}
	return ctx
}

// Guard rejects requests without a valid bearer token and injects the
// token's claims and tenant into the request context.
func Guard(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := verifier.ParseAccess(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
