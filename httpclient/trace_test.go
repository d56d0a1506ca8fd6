package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "given nil, then empty", err: nil, want: ""},
		{name: "given cancelled context, then cancelled", err: context.Canceled, want: ErrorTypeCancelled},
		{name: "given deadline exceeded, then timeout", err: fmt.Errorf("leg: %w", context.DeadlineExceeded), want: ErrorTypeTimeout},
		{name: "given net timeout, then timeout", err: &net.OpError{Op: "read", Err: timeoutError{}}, want: ErrorTypeTimeout},
		{name: "given dns error, then dns_error", err: &net.DNSError{Err: "no such host", Name: "api.dla.sims.pl"}, want: ErrorTypeDNSError},
		{name: "given ECONNREFUSED, then connection_refused", err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, want: ErrorTypeConnectionRefused},
		{name: "given ECONNRESET, then connection_reset", err: syscall.ECONNRESET, want: ErrorTypeConnectionReset},
		{name: "given unexpected EOF, then eof", err: io.ErrUnexpectedEOF, want: ErrorTypeEOF},
		{name: "given open breaker, then circuit_open", err: gobreaker.ErrOpenState, want: ErrorTypeCircuitOpen},
		{name: "given rate limited, then rate_limited", err: ErrRateLimited, want: ErrorTypeRateLimited},
		{name: "given x509 message, then tls_error", err: errors.New("x509: certificate signed by unknown authority"), want: ErrorTypeTLSError},
		{name: "given unrecognised error, then unknown", err: errors.New("boom"), want: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestErrorTypeFromStatusCode(t *testing.T) {
	assert.Empty(t, errorTypeFromStatusCode(200))
	assert.Empty(t, errorTypeFromStatusCode(304))
	assert.Equal(t, "401", errorTypeFromStatusCode(401))
	assert.Equal(t, "502", errorTypeFromStatusCode(502))
}

func TestNetworkTrace_AddTraceEvents(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	now := time.Now()
	nt := &networkTrace{
		dns:               phase{start: now, done: now.Add(5 * time.Millisecond)},
		connect:           phase{start: now.Add(5 * time.Millisecond), done: now.Add(10 * time.Millisecond)},
		gotConn:           now.Add(10 * time.Millisecond),
		wroteRequest:      now.Add(11 * time.Millisecond),
		firstResponseByte: now.Add(40 * time.Millisecond),
		dnsAddrs:          []string{"91.223.134.10"},
	}

	_, span := tp.Tracer("test").Start(context.Background(), "leg")
	nt.addTraceEvents(span)
	span.End()

	spans := exporter.GetSpans()
	assert.Len(t, spans, 1)

	var names []string
	for _, e := range spans[0].Events {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"dns.done", "connect.done", "got_conn", "got_first_response_byte"}, names)
}
