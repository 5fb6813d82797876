package goWA

import "context"

type tenantIDContextKey struct{}
type requestIDContextKey struct{}

// WithTenantID attaches the calling tenant to ctx. It is recorded on every
// audit event emitted by the operation.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDContextKey{}, tenantID)
}

// WithRequestID attaches a request correlation id to ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// TenantIDFromContext returns the tenant attached by WithTenantID.
func TenantIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	tenantID, _ := ctx.Value(tenantIDContextKey{}).(string)
	return tenantID, tenantID != ""
}

// RequestIDFromContext returns the id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

func tenantIDFromContext(ctx context.Context) string {
	tenantID, _ := TenantIDFromContext(ctx)
	return tenantID
}
