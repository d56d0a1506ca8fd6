package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures client-side rate limiting. The limit is shared by
// every host the client talks to.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero or less disables limiting.
	RequestsPerSecond float64

	// Burst is the number of requests allowed above the sustained rate.
	Burst int

	// WaitOnLimit blocks until a token is available (bounded by the request
	// context) instead of failing with ErrRateLimited.
	WaitOnLimit bool
}

// DefaultRateLimitConfig returns a limit polite enough for the public transit
// APIs: 10 requests per second with a burst of 10, waiting for a token.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// ErrRateLimited is returned when a request is rejected by the rate limiter.
var ErrRateLimited = errors.New("rate limit exceeded")

type rateLimitTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
	wait    bool
	cfg     *internalConfig
}

func newRateLimitTransport(next http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	rl := cfg.RateLimit
	if rl.RequestsPerSecond <= 0 {
		return next
	}
	burst := rl.Burst
	if burst <= 0 {
		burst = 1
	}

	return &rateLimitTransport{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst),
		wait:    rl.WaitOnLimit,
		cfg:     cfg,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.wait {
		if err := t.limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			// Wait fails without blocking when the deadline is too close
			// for a token to become available.
			t.cfg.Metrics.recordRateLimited(ctx, t.cfg.baseAttributes())
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	} else if !t.limiter.Allow() {
		t.cfg.Metrics.recordRateLimited(ctx, t.cfg.baseAttributes())
		return nil, ErrRateLimited
	}

	return t.next.RoundTrip(req)
}
