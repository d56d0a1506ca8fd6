package httpserver

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig configures the request logging middleware.
type LoggerConfig struct {
	Logger zerolog.Logger

	serviceName string

	// SkipPaths are not logged. Health checks and scrapes belong here.
	SkipPaths []string

	// SlowThreshold promotes successful requests slower than this to warn.
	// Zero disables it.
	SlowThreshold time.Duration
}

// Logger returns middleware that logs one line per request.
//
// Level follows the outcome: info below 400, warn for 4xx and slow requests,
// error for 5xx.
func Logger(cfg LoggerConfig) Middleware {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)
			duration := time.Since(start)

			status := wrapped.Status()
			var event *zerolog.Event
			switch {
			case status >= 500:
				event = cfg.Logger.Error()
			case status >= 400:
				event = cfg.Logger.Warn()
			case cfg.SlowThreshold > 0 && duration > cfg.SlowThreshold:
				event = cfg.Logger.Warn().Bool("slow", true)
			default:
				event = cfg.Logger.Info()
			}

			event.
				Str("service", cfg.serviceName).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("query", r.URL.RawQuery).
				Int("status", status).
				Dur("duration", duration).
				Int("bytes", wrapped.BytesWritten()).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent())

			id := RequestIDFromContext(r.Context())
			if id == "" {
				// RequestID ran inside this middleware.
				id = w.Header().Get(RequestIDHeader)
			}
			if id != "" {
				event.Str("request_id", id)
			}

			event.Msg("request completed")
		})
	}
}
