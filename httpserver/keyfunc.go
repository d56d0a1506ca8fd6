package httpserver

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc groups requests into rate limit buckets. Requests with the same key
// share one bucket.
type KeyFunc func(r *http.Request) string

// KeyFuncByIP keys by client IP. The first X-Forwarded-For entry wins over
// RemoteAddr, so only enable it behind a proxy that sets the header. The port
// of RemoteAddr is dropped: one client opens many connections.
func KeyFuncByIP() KeyFunc {
	return clientIP
}

// KeyFuncByIPAndPath keys by client IP and request path, so a client
// exhausting one endpoint can still reach the others.
func KeyFuncByIPAndPath() KeyFunc {
	return func(r *http.Request) string {
		return clientIP(r) + "|" + r.URL.Path
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
