package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/kroma-labs/transit-go/clienterr"
	"github.com/kroma-labs/transit-go/decode"
	"github.com/kroma-labs/transit-go/httpserver"
)

// statusFor maps a client error to the gateway status. Timeouts are 504;
// every other upstream failure, whatever its kind, is 502.
func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	var te *clienterr.TransportError
	if errors.As(err, &te) && te.Timeout() {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// errorEntry renders err for Response.Errors. An upstream business error
// shows its info and message, never its stack trace.
func errorEntry(err error) httpserver.Error {
	var ue *decode.UpstreamError
	if errors.As(err, &ue) {
		return httpserver.Error{Field: "upstream", Message: ue.Info + ": " + ue.Message}
	}
	return httpserver.Error{Field: clienterr.KindOf(err).String(), Message: err.Error()}
}

func (rt *Router) writeMPKError(w http.ResponseWriter, r *http.Request, resource string, err error) {
	kind := clienterr.KindOf(err)
	status := statusFor(err)

	rt.metrics.failed.WithLabelValues(resource, kind.String()).Inc()
	rt.logger.Warn().
		Err(err).
		Str("resource", resource).
		Str("kind", kind.String()).
		Int("status", status).
		Str("request_id", httpserver.RequestIDFromContext(r.Context())).
		Msg("mpk request failed")

	httpserver.WriteError(w, status, "mpk request failed", errorEntry(err))
}
