package gateway

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	degraded *prometheus.CounterVec
	failed   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	degraded, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transitd_mirror_degraded_total",
		Help: "Mirror reads answered with data from only some mirrors.",
	}, []string{"resource"}))
	if err != nil {
		return nil, err
	}

	failed, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transitd_upstream_failures_total",
		Help: "Requests that failed upstream, by resource and error kind.",
	}, []string{"resource", "kind"}))
	if err != nil {
		return nil, err
	}

	return &metrics{degraded: degraded, failed: failed}, nil
}

// register reuses a collector that an earlier router already registered.
func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}
