package digest

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/kroma-labs/transit-go/httpclient"
	"github.com/rs/zerolog"
)

// drainLimit bounds how much of a discarded body is read so the connection
// can be reused.
const drainLimit = 64 << 10

// Doer sends an HTTP request. *http.Client and *httpclient.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Negotiator performs Digest-authenticated GET requests.
//
// It is safe for concurrent use; every Get runs an independent negotiation.
type Negotiator struct {
	doer   Doer
	creds  Credentials
	logger zerolog.Logger
	cnonce func() string
}

// Option configures a Negotiator.
type Option func(*Negotiator)

// WithLogger sets the logger used for negotiation debug events.
func WithLogger(logger zerolog.Logger) Option {
	return func(n *Negotiator) {
		n.logger = logger
	}
}

// WithCnonce replaces the client nonce generator.
func WithCnonce(fn func() string) Option {
	return func(n *Negotiator) {
		if fn != nil {
			n.cnonce = fn
		}
	}
}

// NewNegotiator returns a Negotiator answering challenges with creds.
func NewNegotiator(doer Doer, creds Credentials, opts ...Option) *Negotiator {
	n := &Negotiator{
		doer:   doer,
		creds:  creds,
		logger: zerolog.Nop(),
		cnonce: newCnonce,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Get fetches rawURL, answering a Digest challenge if the server sends one.
//
// A first response other than 401 is returned unchanged. Otherwise only a
// 2xx answer to the authenticated request is returned; a second challenge or
// any other status is an *AuthError with ReasonAuthenticationFailed and the
// status code. The caller must close a returned body. Failures are
// *clienterr.TransportError or *AuthError.
func (n *Negotiator) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := n.doer.Do(req)
	if err != nil {
		return nil, httpclient.WrapTransportError(req, "challenge", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	header := resp.Header.Values("WWW-Authenticate")
	drain(resp.Body)

	challenge, err := FindChallenge(header)
	if err != nil {
		return nil, err
	}

	n.logger.Debug().
		Str("host", req.URL.Host).
		Str("realm", challenge.Realm).
		Str("algorithm", challenge.Algorithm).
		Str("qop", challenge.QOP).
		Bool("stale", challenge.Stale).
		Msg("digest challenge received")

	authz, err := challenge.Authorization(n.creds, http.MethodGet, req.URL.RequestURI(), n.cnonce(), 1)
	if err != nil {
		return nil, &AuthError{Reason: ReasonUnsupportedChallenge, Err: err}
	}

	authReq := req.Clone(ctx)
	authReq.Header.Set("Authorization", authz)

	resp, err = n.doer.Do(authReq)
	if err != nil {
		return nil, httpclient.WrapTransportError(authReq, "authenticate", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		n.logger.Debug().
			Str("host", req.URL.Host).
			Int("status", resp.StatusCode).
			Msg("digest credentials rejected")
		return nil, &AuthError{Reason: ReasonAuthenticationFailed, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func newCnonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, drainLimit))
	_ = body.Close()
}
