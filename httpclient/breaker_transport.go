package httpclient

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/sony/gobreaker/v2"
)

// circuitBreakerTransport keeps one breaker per upstream host so that a dead
// mirror does not open the circuit for its siblings.
type circuitBreakerTransport struct {
	next http.RoundTripper
	cfg  *internalConfig

	mu       sync.Mutex
	breakers map[string]CircuitBreaker
}

// errSyntheticFailure marks a response the classifier counts as a failure.
// The response itself is still returned to the caller.
var errSyntheticFailure = errors.New("synthetic failure")

func newCircuitBreakerTransport(next http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	if cfg.BreakerConfig == nil {
		return next
	}
	if cfg.BreakerConfig.Classifier == nil {
		cfg.BreakerConfig.Classifier = DefaultBreakerClassifier
	}
	return &circuitBreakerTransport{
		next:     next,
		cfg:      cfg,
		breakers: make(map[string]CircuitBreaker),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *circuitBreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	name := t.breakerName(req.URL.Host)
	breaker := t.breakerFor(name)
	classifier := t.cfg.BreakerConfig.Classifier

	resp, err := breaker.Execute(func() (*http.Response, error) {
		resp, err := t.next.RoundTrip(req) //nolint:bodyclose
		if classifier(resp, err) && err == nil {
			return resp, errSyntheticFailure
		}
		return resp, err
	})

	switch {
	case err == nil:
		t.cfg.Metrics.recordBreakerRequest(ctx, name, "success")
		return resp, nil
	case errors.Is(err, errSyntheticFailure):
		t.cfg.Metrics.recordBreakerRequest(ctx, name, "failure")
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		t.cfg.Metrics.recordBreakerRequest(ctx, name, "rejected")
		return nil, err
	default:
		t.cfg.Metrics.recordBreakerRequest(ctx, name, "failure")
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}
}

func (t *circuitBreakerTransport) breakerName(host string) string {
	service := t.cfg.ServiceName
	if service == "" {
		service = "transit-http-client"
	}
	return service + ":" + host
}

func (t *circuitBreakerTransport) breakerFor(name string) CircuitBreaker {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cb, ok := t.breakers[name]; ok {
		return cb
	}
	cb := t.newBreaker(name)
	t.breakers[name] = cb
	return cb
}

func (t *circuitBreakerTransport) newBreaker(name string) CircuitBreaker {
	bc := t.cfg.BreakerConfig
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if bc.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= bc.ConsecutiveFailures {
				return true
			}
			if counts.Requests < bc.FailureThreshold || bc.FailureRatio <= 0 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureRatio
		},
		// Cancellation by the caller says nothing about upstream health.
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			t.cfg.Metrics.recordBreakerState(context.Background(), name, int64(to))
			t.cfg.Logger.Warn().
				Str("breaker", name).
				Stringer("from", from).
				Stringer("to", to).
				Msg("circuit breaker state changed")
			if bc.OnStateChange != nil {
				bc.OnStateChange(name, from, to)
			}
		},
	}

	if bc.Store != nil {
		dcb, err := gobreaker.NewDistributedCircuitBreaker[*http.Response](bc.Store, st)
		if err == nil {
			return dcb
		}
		t.cfg.Logger.Error().Err(err).Str("breaker", name).
			Msg("distributed circuit breaker unavailable, using local state")
	}
	return gobreaker.NewCircuitBreaker[*http.Response](st)
}
