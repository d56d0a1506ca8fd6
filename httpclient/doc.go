// Package httpclient provides the instrumented HTTP client every transit
// upstream call rides on.
//
// # Features
//
//   - OpenTelemetry tracing with detailed span attributes
//   - Request latency, error and network timing metrics
//   - Network tracing (DNS, TLS, connect timing)
//   - Circuit breaker per upstream host, optionally shared through redis
//   - Client-side rate limiting
//   - Debug logging with cURL rendering and redacted credentials
//   - MockTransport for tests
//
// There is no retry layer: every call is one logical request.
//
// # Quick Start
//
//	client := httpclient.New(
//	    httpclient.WithServiceName("mpk"),
//	)
//	resp, err := client.Do(req)
//
// *Client satisfies the Doer interfaces of the digest and fanout packages.
//
// # Configuration Presets
//
//	// Single host, 15s timeout
//	httpclient.New(httpclient.WithConfig(httpclient.DefaultConfig()))
//
//	// Mirror fan-out, 8s per-leg timeout, fast dial
//	httpclient.New(httpclient.WithConfig(httpclient.MirrorConfig()))
//
// # Circuit Breaker
//
// Breakers are created lazily, one per URL host, named
// "<service>:<host>":
//
//	client := httpclient.New(
//	    httpclient.WithServiceName("sims"),
//	    httpclient.WithBreakerConfig(httpclient.DefaultBreakerConfig()),
//	)
//
// A rejected request fails with gobreaker.ErrOpenState, which ClassifyError
// reports as ErrorTypeCircuitOpen.
//
// # Errors
//
// WrapTransportError turns a failed round trip into a
// *clienterr.TransportError whose Type is one of the ErrorType constants.
package httpclient
