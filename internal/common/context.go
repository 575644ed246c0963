package common

import "context"

type contextKey int

const clientIPKey contextKey = iota

// UnknownClientIP is reported for work that did not come in over HTTP.
const UnknownClientIP = "unknown"

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return UnknownClientIP
}
