package utils

import "context"

type contextKey string

// Request-scoped context keys shared by handlers and flows
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	AdminIDKey   contextKey = "admin_id"
)

// RequestIDFromContext returns the request id stored in ctx, or an empty string
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
