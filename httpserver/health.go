package httpserver

import (
	"context"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds each health check when the health request has
// no earlier deadline.
const DefaultCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is usable. A nil return is healthy.
type HealthCheck func(ctx context.Context) error

// CheckResult is the outcome of one check in a health response.
type CheckResult struct {
	Status              string `json:"status"`
	Latency             string `json:"latency"`
	Message             string `json:"message,omitempty"`
	LastChecked         string `json:"last_checked"`
	ConsecutiveFailures int    `json:"consecutive_failures,omitempty"`
}

// HealthResponse is the data of /livez and /readyz.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime,omitempty"`
	Hostname  string                 `json:"hostname,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// PingResponse is the data of /ping.
type PingResponse struct {
	Status string `json:"status"`
}

type checkState struct {
	name  string
	check HealthCheck

	mu       sync.Mutex
	failures int
}

// HealthHandler serves liveness and readiness checks.
//
//	health := httpserver.NewHealthHandler(httpserver.WithVersion(version))
//	health.AddReadinessCheck("redis", func(ctx context.Context) error {
//	    return rdb.Ping(ctx).Err()
//	})
//
//	r.Handle("/ping", health.PingHandler())
//	r.Handle("/livez", health.LiveHandler())
//	r.Handle("/readyz", health.ReadyHandler())
//
// Checks of one request run concurrently. A check never blocks the registration
// of another.
type HealthHandler struct {
	serviceName  string
	version      string
	startTime    time.Time
	hostname     string
	checkTimeout time.Duration

	mu        sync.RWMutex
	liveness  []*checkState
	readiness []*checkState
}

// HealthOption configures a HealthHandler.
type HealthOption func(*HealthHandler)

// WithHealthServiceName sets the service reported by health endpoints. WithHealth sets
// it from the server configuration.
func WithHealthServiceName(name string) HealthOption {
	return func(h *HealthHandler) {
		h.serviceName = name
	}
}

// WithVersion sets the version reported by health endpoints.
func WithVersion(version string) HealthOption {
	return func(h *HealthHandler) {
		h.version = version
	}
}

// WithCheckTimeout sets the per-check deadline.
func WithCheckTimeout(d time.Duration) HealthOption {
	return func(h *HealthHandler) {
		if d > 0 {
			h.checkTimeout = d
		}
	}
}

// NewHealthHandler creates a HealthHandler. Inside a Server prefer
// WithHealth, which also sets the service name.
func NewHealthHandler(opts ...HealthOption) *HealthHandler {
	hostname, _ := os.Hostname()

	h := &HealthHandler{
		serviceName:  "unknown",
		version:      "0.0.0",
		startTime:    time.Now(),
		hostname:     hostname,
		checkTimeout: DefaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddLivenessCheck registers a check for /livez. Failing liveness restarts
// the process, so only register checks for states the process cannot leave
// on its own.
func (h *HealthHandler) AddLivenessCheck(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, &checkState{name: name, check: check})
}

// AddReadinessCheck registers a check for /readyz.
func (h *HealthHandler) AddReadinessCheck(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, &checkState{name: name, check: check})
}

// PingHandler always answers 200 without running checks.
func (h *HealthHandler) PingHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteSuccess(w, http.StatusOK, PingResponse{Status: "pong"}, "")
	})
}

// LiveHandler answers 200 when every liveness check passes, 503 otherwise.
func (h *HealthHandler) LiveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		checks := append([]*checkState(nil), h.liveness...)
		h.mu.RUnlock()
		h.serve(w, r, checks)
	})
}

// ReadyHandler answers 200 when every readiness check passes, 503 otherwise.
func (h *HealthHandler) ReadyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		checks := append([]*checkState(nil), h.readiness...)
		h.mu.RUnlock()
		h.serve(w, r, checks)
	})
}

func (h *HealthHandler) serve(w http.ResponseWriter, r *http.Request, checks []*checkState) {
	now := time.Now()
	results := make([]CheckResult, len(checks))

	var g errgroup.Group
	for i, state := range checks {
		g.Go(func() error {
			results[i] = h.run(r.Context(), state, now)
			return nil
		})
	}
	_ = g.Wait()

	byName := make(map[string]CheckResult, len(checks))
	var errs []Error
	for i, state := range checks {
		byName[state.name] = results[i]
		if results[i].Status != "ok" {
			errs = append(errs, Error{Field: state.name, Message: results[i].Message})
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	resp := Response[HealthResponse]{
		Data: HealthResponse{
			Status:    "ok",
			Service:   h.serviceName,
			Version:   h.version,
			Uptime:    time.Since(h.startTime).Round(time.Second).String(),
			Hostname:  h.hostname,
			Timestamp: now.Format(time.RFC3339),
			Checks:    byName,
		},
		Errors:  errs,
		Message: "all checks passed",
	}

	status := http.StatusOK
	if len(errs) > 0 {
		status = http.StatusServiceUnavailable
		resp.Data.Status = "fail"
		resp.Message = "one or more checks failed"
	}
	WriteJSON(w, status, resp)
}

func (h *HealthHandler) run(ctx context.Context, state *checkState, now time.Time) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.checkTimeout)
	defer cancel()

	start := time.Now()
	err := state.check(ctx)
	latency := time.Since(start)

	state.mu.Lock()
	defer state.mu.Unlock()

	res := CheckResult{
		Status:      "ok",
		Latency:     latency.String(),
		LastChecked: now.Format(time.RFC3339),
	}
	if err != nil {
		state.failures++
		res.Status = "fail"
		res.Message = err.Error()
		res.ConsecutiveFailures = state.failures
		return res
	}
	state.failures = 0
	return res
}
