package httpserver

import (
	"context"
	"net/http"
	"time"
)

// Timeout returns middleware that puts a deadline on the request context.
//
// The handler keeps the response writer: it is expected to watch the context
// and answer itself, for example with 504 when an upstream call runs out of
// time. No goroutine is started and no write is intercepted.
func Timeout(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
