package httpserver

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the HTTP server configuration.
//
// Start from DefaultConfig or GatewayConfig and override fields as needed:
//
//	cfg := httpserver.GatewayConfig()
//	cfg.Addr = ":9090"
//
//	server := httpserver.New(
//	    httpserver.WithConfig(cfg),
//	    httpserver.WithHandler(router),
//	)
type Config struct {
	// Addr is the TCP address to listen on.
	Addr string

	// ServiceName identifies the server in spans, metrics, request logs and
	// health responses.
	ServiceName string

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration

	// WriteTimeout must exceed the slowest upstream leg, otherwise a
	// degraded response is cut off before it is written.
	WriteTimeout time.Duration

	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// ShutdownTimeout bounds how long in-flight requests may run after a
	// shutdown signal.
	ShutdownTimeout time.Duration

	// Logger receives lifecycle events. Request logs are configured with
	// WithLogging.
	Logger zerolog.Logger

	Middleware []Middleware
	Handler    http.Handler

	TracingConfig   *TracingConfig
	MetricsConfig   *MetricsConfig
	LoggerConfig    *LoggerConfig
	RateLimitConfig *RateLimitConfig

	// RequestTimeout, when positive, sets a deadline on every request
	// context.
	RequestTimeout time.Duration

	HealthHandler **HealthHandler
	HealthVersion string
}

// DefaultConfig returns balanced timeouts for a small JSON API.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		ServiceName:       "http-server",
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   10 * time.Second,
	}
}

// GatewayConfig returns timeouts for a server that answers by fanning out to
// slow upstreams. Requests only carry a query string, so reads are short;
// writes wait for the slowest mirror.
func GatewayConfig() Config {
	return Config{
		Addr:              ":8080",
		ServiceName:       "transitd",
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 << 10,
		ShutdownTimeout:   25 * time.Second,
		RequestTimeout:    20 * time.Second,
	}
}
