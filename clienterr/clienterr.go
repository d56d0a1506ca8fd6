// Package clienterr defines the error taxonomy shared by every upstream
// client in this module.
//
// Each concrete error type reports one of four kinds through a Kind method:
//
//   - KindTransport: connection, DNS, TLS or timeout failures, and
//     unexpected HTTP status codes
//   - KindAuth: digest challenge or re-authentication failures
//   - KindDecode: the body did not match any expected shape
//   - KindUpstream: the origin reported a business failure in the body
//
// Use KindOf to classify an arbitrary error chain:
//
//	switch clienterr.KindOf(err) {
//	case clienterr.KindUpstream:
//	    // render the upstream message
//	case clienterr.KindTransport:
//	    // mirror or host unreachable
//	}
package clienterr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies client errors.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors outside the taxonomy.
	KindUnknown Kind = iota
	// KindTransport indicates a network level failure or unexpected status.
	KindTransport
	// KindAuth indicates an authentication failure.
	KindAuth
	// KindDecode indicates a response body that matched no expected shape.
	KindDecode
	// KindUpstream indicates an error reported by the origin in the body.
	KindUpstream
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindDecode:
		return "decode"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Kinded is implemented by every typed error in this module.
type Kinded interface {
	error
	Kind() Kind
}

// KindOf returns the kind of the first Kinded error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool { return KindOf(err) == KindTransport }

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsDecode reports whether err is a decode failure.
func IsDecode(err error) bool { return KindOf(err) == KindDecode }

// IsUpstream reports whether err is a business failure reported by the origin.
func IsUpstream(err error) bool { return KindOf(err) == KindUpstream }

// TransportError wraps a failure to complete an HTTP exchange with a host.
type TransportError struct {
	// Host is the upstream host, without scheme.
	Host string
	// Op names the failed step, e.g. "request", "read body".
	Op string
	// Type is a short classification such as "timeout" or "dns_error".
	Type string
	// Err is the underlying error.
	Err error
}

func (e *TransportError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("transport: %s %s (%s): %v", e.Op, e.Host, e.Type, e.Err)
	}
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Host, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Kind implements Kinded.
func (e *TransportError) Kind() Kind { return KindTransport }

// Timeout reports whether the failure was a timeout.
func (e *TransportError) Timeout() bool { return e.Type == "timeout" }

// StatusError is returned when a host answers with a status the caller
// cannot handle and the body carries no upstream error.
type StatusError struct {
	Host       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(
		"transport: unexpected status from %s: %d %s",
		e.Host, e.StatusCode, http.StatusText(e.StatusCode),
	)
}

// Kind implements Kinded.
func (e *StatusError) Kind() Kind { return KindTransport }
