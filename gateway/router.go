// Package gateway maps the transitd HTTP API onto the MPK and SIMS clients.
//
// Every route answers with httpserver.Response. Mirror-backed routes list one
// error per failed mirror next to the data they could still collect and only
// fail when no mirror answered.
package gateway

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kroma-labs/transit-go/fanout"
	"github.com/kroma-labs/transit-go/httpserver"
	"github.com/kroma-labs/transit-go/mpk"
	"github.com/kroma-labs/transit-go/sims"
)

// MPK is the part of *mpk.Client the gateway serves.
type MPK interface {
	Positions(ctx context.Context) (mpk.Positions, error)
	PostInfo(ctx context.Context, symbol string) ([]mpk.BusStop, error)
	CoursePosts(ctx context.Context, courses []string) ([]mpk.CourseInfo, error)
	PostPlate(ctx context.Context, post, line string) (mpk.PostPlate, error)
}

// SIMS is the part of *sims.Client the gateway serves.
type SIMS interface {
	Vehicles(ctx context.Context) fanout.Outcome[sims.Vehicle]
	BusStops(ctx context.Context) fanout.Outcome[sims.BusStop]
	Timetable(ctx context.Context, code string) fanout.Outcome[sims.Timetable]
}

type routerConfig struct {
	logger     zerolog.Logger
	health     *httpserver.HealthHandler
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	middleware []httpserver.Middleware
}

// Option configures NewRouter.
type Option func(*routerConfig)

// WithLogger sets the logger for upstream failures.
func WithLogger(l zerolog.Logger) Option {
	return func(c *routerConfig) {
		c.logger = l
	}
}

// WithHealth mounts /ping, /livez and /readyz from h.
func WithHealth(h *httpserver.HealthHandler) Option {
	return func(c *routerConfig) {
		c.health = h
	}
}

// WithRegistry registers the gateway collectors on reg and serves reg at
// /metrics. The default is the global Prometheus registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *routerConfig) {
		c.registerer = reg
		c.gatherer = reg
	}
}

// WithMiddleware adds chi middleware in front of every route.
func WithMiddleware(ms ...httpserver.Middleware) Option {
	return func(c *routerConfig) {
		c.middleware = append(c.middleware, ms...)
	}
}

// Router serves the transitd API.
type Router struct {
	mux     chi.Router
	mpk     MPK
	sims    SIMS
	logger  zerolog.Logger
	metrics *metrics
}

// NewRouter builds the route table. Either client may be nil, in which case
// its routes are not mounted.
func NewRouter(mpkClient MPK, simsClient SIMS, opts ...Option) (*Router, error) {
	cfg := routerConfig{
		logger:     zerolog.Nop(),
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m, err := newMetrics(cfg.registerer)
	if err != nil {
		return nil, err
	}

	rt := &Router{
		mux:     chi.NewRouter(),
		mpk:     mpkClient,
		sims:    simsClient,
		logger:  cfg.logger,
		metrics: m,
	}

	for _, mw := range cfg.middleware {
		rt.mux.Use(mw)
	}

	rt.mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpserver.WriteError(w, http.StatusNotFound, "route not found")
	})
	rt.mux.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpserver.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	if cfg.health != nil {
		rt.mux.Method(http.MethodGet, "/ping", cfg.health.PingHandler())
		rt.mux.Method(http.MethodGet, "/livez", cfg.health.LiveHandler())
		rt.mux.Method(http.MethodGet, "/readyz", cfg.health.ReadyHandler())
	}
	rt.mux.Method(http.MethodGet, "/metrics", httpserver.PrometheusHandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))

	rt.mux.Route("/v1", func(r chi.Router) {
		if rt.mpk != nil {
			r.Route("/mpk", func(r chi.Router) {
				r.Get("/positions", rt.mpkPositions)
				r.Get("/posts/{symbol}", rt.mpkPostInfo)
				r.Get("/courses", rt.mpkCoursePosts)
				r.Get("/posts/{post}/lines/{line}/plate", rt.mpkPostPlate)
			})
		}
		if rt.sims != nil {
			r.Route("/sims", func(r chi.Router) {
				r.Get("/vehicles", rt.simsVehicles)
				r.Get("/stops", rt.simsBusStops)
				r.Get("/stops/{code}/timetable", rt.simsTimetable)
			})
		}
	})

	return rt, nil
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}
