package httpclient

import (
	"net/http"
)

// Client is an instrumented HTTP client for the transit upstreams.
//
// Create a Client using New():
//
//	client := httpclient.New(
//	    httpclient.WithServiceName("sims"),
//	    httpclient.WithConfig(httpclient.MirrorConfig()),
//	)
//
//	resp, err := client.Do(req)
type Client struct {
	// httpClient is the underlying HTTP client with transport chain.
	httpClient *http.Client

	// config holds all client configuration.
	config *internalConfig
}

// HTTP returns the underlying *http.Client for libraries that expect one.
func (c *Client) HTTP() *http.Client {
	return c.httpClient
}

// Do sends req through the transport chain.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// New creates a Client with production-ready defaults and OpenTelemetry instrumentation.
//
// Requests pass through, outermost first:
//   - OpenTelemetry tracing and metrics
//   - Circuit breaker per upstream host (WithBreakerConfig)
//   - Rate limiter (WithRateLimit)
//   - Debug logging (WithDebug)
//   - The pooled http.Transport, or a MockTransport
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithServiceName("mpk"),
//	    httpclient.WithBreakerConfig(httpclient.DefaultBreakerConfig()),
//	)
func New(opts ...Option) *Client {
	cfg := newConfig(opts...)

	var base http.RoundTripper = cfg.buildTransport()
	if cfg.MockTransport != nil {
		base = cfg.MockTransport
	}

	return newClient(base, cfg)
}

// NewWithTransport creates a Client using a custom base transport with the
// rest of the chain wrapped around it.
//
// Example:
//
//	client := httpclient.NewWithTransport(&http.Transport{
//	    MaxIdleConnsPerHost: 50,
//	}, httpclient.WithServiceName("sims"))
func NewWithTransport(base http.RoundTripper, opts ...Option) *Client {
	cfg := newConfig(opts...)
	if base == nil {
		base = cfg.buildTransport()
	}
	return newClient(base, cfg)
}

// NewTransport creates an instrumented http.RoundTripper without breaker,
// rate limit or debug layers.
//
// Example:
//
//	client := &http.Client{
//	    Transport: httpclient.NewTransport(http.DefaultTransport),
//	    Timeout:   30 * time.Second,
//	}
func NewTransport(base http.RoundTripper, opts ...Option) http.RoundTripper {
	cfg := newConfig(opts...)
	return newOtelTransport(base, cfg)
}

func newClient(base http.RoundTripper, cfg *internalConfig) *Client {
	transport := base
	if cfg.Debug {
		transport = newDebugTransport(transport, cfg.Logger)
	}
	transport = newRateLimitTransport(transport, cfg)
	transport = newCircuitBreakerTransport(transport, cfg)
	transport = newOtelTransport(transport, cfg)

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.httpConfig.Timeout,
		},
		config: cfg,
	}
}
