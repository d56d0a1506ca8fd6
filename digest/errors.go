package digest

import (
	"fmt"

	"github.com/kroma-labs/transit-go/clienterr"
)

// Reason describes why a digest negotiation failed.
type Reason int

const (
	// ReasonMalformedChallenge means the 401 response carried no usable
	// Digest challenge: the header was missing, used another scheme, could
	// not be parsed, or lacked realm or nonce.
	ReasonMalformedChallenge Reason = iota + 1
	// ReasonUnsupportedChallenge means the challenge asked for an algorithm
	// or qop this package cannot answer.
	ReasonUnsupportedChallenge
	// ReasonAuthenticationFailed means the authenticated request was
	// answered with a second challenge or any other non-2xx status.
	ReasonAuthenticationFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonMalformedChallenge:
		return "malformed challenge"
	case ReasonUnsupportedChallenge:
		return "unsupported challenge"
	case ReasonAuthenticationFailed:
		return "authentication failed"
	default:
		return "unknown"
	}
}

// AuthError is returned when the digest flow cannot produce an accepted
// request.
type AuthError struct {
	Reason Reason
	// StatusCode is the status of the rejected authenticated response, set
	// only for ReasonAuthenticationFailed.
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	msg := "digest: " + e.Reason.String()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// Kind implements clienterr.Kinded.
func (e *AuthError) Kind() clienterr.Kind { return clienterr.KindAuth }

func malformed(format string, args ...any) *AuthError {
	return &AuthError{Reason: ReasonMalformedChallenge, Err: fmt.Errorf(format, args...)}
}

func unsupported(format string, args ...any) *AuthError {
	return &AuthError{Reason: ReasonUnsupportedChallenge, Err: fmt.Errorf(format, args...)}
}
