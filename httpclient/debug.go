package httpclient

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// redactedHeaders are rendered as "***" in debug output.
var redactedHeaders = map[string]bool{
	"Authorization":       true,
	"Proxy-Authorization": true,
	"Cookie":              true,
}

// debugTransport logs each request as a cURL command and each response
// summary at debug level.
type debugTransport struct {
	next   http.RoundTripper
	logger zerolog.Logger
}

func newDebugTransport(next http.RoundTripper, logger zerolog.Logger) http.RoundTripper {
	return &debugTransport{next: next, logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	logRequest(t.logger, req)

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Debug().
			Err(err).
			Str("method", req.Method).
			Str("host", req.URL.Host).
			Dur("duration", time.Since(start)).
			Msg("HTTP request failed")
		return nil, err
	}

	logResponse(t.logger, req, resp, time.Since(start))
	return resp, nil
}

// generateCurlCommand renders req as a cURL command line. Credentials in
// redactedHeaders never appear in the output.
func generateCurlCommand(req *http.Request) string {
	parts := []string{"curl"}

	if req.Method != http.MethodGet {
		parts = append(parts, "-X", req.Method)
	}

	parts = append(parts, fmt.Sprintf("'%s'", req.URL.String()))

	headerKeys := make([]string, 0, len(req.Header))
	for k := range req.Header {
		headerKeys = append(headerKeys, k)
	}
	sort.Strings(headerKeys)

	for _, k := range headerKeys {
		for _, v := range req.Header[k] {
			if redactedHeaders[http.CanonicalHeaderKey(k)] {
				v = "***"
			}
			parts = append(parts, "-H", fmt.Sprintf("'%s: %s'", k, v))
		}
	}

	return strings.Join(parts, " ")
}

func logRequest(logger zerolog.Logger, req *http.Request) {
	logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("curl", generateCurlCommand(req)).
		Msg("HTTP request")
}

func logResponse(logger zerolog.Logger, req *http.Request, resp *http.Response, duration time.Duration) {
	logger.Debug().
		Str("method", req.Method).
		Str("host", req.URL.Host).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int64("content_length", resp.ContentLength).
		Msg("HTTP response")
}
