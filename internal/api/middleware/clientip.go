package middleware

import (
	"net"
	"net/http"
	"robocomp/internal/common"
)

// ClientIP stores the caller address in the request context for the audit
// log. Mount it after chi's RealIP so proxy headers are already applied.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(common.WithClientIP(r.Context(), ip)))
	})
}
