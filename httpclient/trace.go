package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http/httptrace"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Error type classifications for the error.type attribute and
// clienterr.TransportError.Type.
const (
	ErrorTypeTimeout           = "timeout"
	ErrorTypeConnectionRefused = "connection_refused"
	ErrorTypeDNSError          = "dns_error"
	ErrorTypeTLSError          = "tls_error"
	ErrorTypeCancelled         = "cancelled"
	ErrorTypeConnectionReset   = "connection_reset"
	ErrorTypeEOF               = "eof"
	ErrorTypeCircuitOpen       = "circuit_open"
	ErrorTypeRateLimited       = "rate_limited"
	ErrorTypeUnknown           = "unknown"
)

// phase is a start/done pair observed by the client trace.
type phase struct {
	start, done time.Time
}

func (p phase) complete() bool { return !p.start.IsZero() && !p.done.IsZero() }

func (p phase) duration() time.Duration { return p.done.Sub(p.start) }

// networkTrace holds timing data collected from httptrace.ClientTrace.
// Callbacks may fire on transport goroutines, so fields are guarded by mu.
type networkTrace struct {
	mu sync.Mutex

	dns     phase
	connect phase
	tls     phase

	gotConn           time.Time
	wroteRequest      time.Time
	firstResponseByte time.Time

	connReused  bool
	connIdle    bool
	connRemote  string
	protocolVer string
	dnsAddrs    []string
}

// createClientTrace creates an httptrace.ClientTrace that populates networkTrace.
func createClientTrace(nt *networkTrace) *httptrace.ClientTrace {
	mark := func(fn func()) {
		nt.mu.Lock()
		fn()
		nt.mu.Unlock()
	}

	return &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			mark(func() {
				nt.gotConn = time.Now()
				nt.connReused = info.Reused
				nt.connIdle = info.WasIdle
				if info.Conn != nil && info.Conn.RemoteAddr() != nil {
					nt.connRemote = info.Conn.RemoteAddr().String()
				}
			})
		},
		DNSStart: func(httptrace.DNSStartInfo) {
			mark(func() { nt.dns.start = time.Now() })
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			mark(func() {
				nt.dns.done = time.Now()
				for _, addr := range info.Addrs {
					nt.dnsAddrs = append(nt.dnsAddrs, addr.String())
				}
			})
		},
		ConnectStart: func(_, _ string) {
			mark(func() {
				if nt.connect.start.IsZero() {
					nt.connect.start = time.Now()
				}
			})
		},
		ConnectDone: func(_, _ string, _ error) {
			mark(func() { nt.connect.done = time.Now() })
		},
		TLSHandshakeStart: func() {
			mark(func() { nt.tls.start = time.Now() })
		},
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			mark(func() {
				nt.tls.done = time.Now()
				nt.protocolVer = state.NegotiatedProtocol
			})
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			mark(func() { nt.wroteRequest = time.Now() })
		},
		GotFirstResponseByte: func() {
			mark(func() { nt.firstResponseByte = time.Now() })
		},
	}
}

// addTraceEvents adds span events for network timing.
func (nt *networkTrace) addTraceEvents(s trace.Span) {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	if nt.dns.complete() {
		s.AddEvent("dns.done", trace.WithTimestamp(nt.dns.done),
			trace.WithAttributes(
				attribute.Float64("dns.duration_ms", float64(nt.dns.duration().Milliseconds())),
				attribute.StringSlice("dns.addresses", nt.dnsAddrs),
			))
	}

	if nt.connect.complete() {
		s.AddEvent("connect.done", trace.WithTimestamp(nt.connect.done),
			trace.WithAttributes(
				attribute.Float64("connect.duration_ms", float64(nt.connect.duration().Milliseconds())),
			))
	}

	if nt.tls.complete() {
		s.AddEvent("tls.done", trace.WithTimestamp(nt.tls.done),
			trace.WithAttributes(
				attribute.Float64("tls.duration_ms", float64(nt.tls.duration().Milliseconds())),
				attribute.String("tls.protocol", nt.protocolVer),
			))
	}

	if !nt.gotConn.IsZero() {
		s.AddEvent("got_conn", trace.WithTimestamp(nt.gotConn),
			trace.WithAttributes(
				attribute.Bool("connection.reused", nt.connReused),
				attribute.Bool("connection.was_idle", nt.connIdle),
				attribute.String("network.peer.address", nt.connRemote),
			))
	}

	if !nt.firstResponseByte.IsZero() && !nt.wroteRequest.IsZero() {
		s.AddEvent("got_first_response_byte", trace.WithTimestamp(nt.firstResponseByte),
			trace.WithAttributes(
				attribute.Float64("ttfb_ms", float64(nt.firstResponseByte.Sub(nt.wroteRequest).Milliseconds())),
			))
	}
}

// recordTimingMetrics records network timing metrics.
func (nt *networkTrace) recordTimingMetrics(ctx context.Context, m *metrics, attrs []attribute.KeyValue) {
	if m == nil {
		return
	}
	nt.mu.Lock()
	defer nt.mu.Unlock()

	if nt.dns.complete() {
		m.recordDNSDuration(ctx, nt.dns.duration(), attrs)
	}
	if nt.connect.complete() {
		m.recordConnectionDuration(ctx, nt.connect.duration(), attrs)
	}
	if nt.tls.complete() {
		m.recordTLSDuration(ctx, nt.tls.duration(), attrs)
	}
	if !nt.wroteRequest.IsZero() && !nt.firstResponseByte.IsZero() {
		m.recordTTFB(ctx, nt.firstResponseByte.Sub(nt.wroteRequest), attrs)
	}
}

// ClassifyError returns an error.type classification for the given error.
// It returns "" for a nil error.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ErrorTypeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrorTypeCircuitOpen
	case errors.Is(err, ErrRateLimited):
		return ErrorTypeRateLimited
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorTypeDNSError
	}

	var tlsRecordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &tlsRecordErr) || errors.As(err, &certErr) {
		return ErrorTypeTLSError
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return ErrorTypeConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		return ErrorTypeConnectionReset
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrorTypeEOF
	}

	// Fallback for errors that only carry a message.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return ErrorTypeTimeout
	case strings.Contains(msg, "connection refused"):
		return ErrorTypeConnectionRefused
	case strings.Contains(msg, "connection reset"):
		return ErrorTypeConnectionReset
	case strings.Contains(msg, "no such host"):
		return ErrorTypeDNSError
	case strings.Contains(msg, "tls") || strings.Contains(msg, "certificate") || strings.Contains(msg, "x509"):
		return ErrorTypeTLSError
	case strings.Contains(msg, "eof"):
		return ErrorTypeEOF
	}

	return ErrorTypeUnknown
}

// errorTypeFromStatusCode returns error.type for HTTP status codes.
// Per OTel semconv, the status code itself is used as the error type for 4xx/5xx.
func errorTypeFromStatusCode(statusCode int) string {
	if statusCode >= 400 {
		return strconv.Itoa(statusCode)
	}
	return ""
}

// setSpanError records an error on the span with proper status and attributes.
func setSpanError(s trace.Span, err error, errorType string) {
	s.RecordError(err)
	s.SetStatus(codes.Error, err.Error())
	if errorType != "" {
		s.SetAttributes(attribute.String("error.type", errorType))
	}
}
