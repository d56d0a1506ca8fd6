package httpserver_test

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kroma-labs/transit-go/httpserver"
)

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) httpserver.Response[T] {
	t.Helper()
	var out httpserver.Response[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestConfigs(t *testing.T) {
	tests := []struct {
		name             string
		cfg              httpserver.Config
		wantWriteTimeout time.Duration
		wantShutdown     time.Duration
		wantRequest      time.Duration
	}{
		{
			name:             "given default config, then balanced timeouts",
			cfg:              httpserver.DefaultConfig(),
			wantWriteTimeout: 15 * time.Second,
			wantShutdown:     10 * time.Second,
		},
		{
			name:             "given gateway config, then writes outlast upstream deadline",
			cfg:              httpserver.GatewayConfig(),
			wantWriteTimeout: 30 * time.Second,
			wantShutdown:     25 * time.Second,
			wantRequest:      20 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ":8080", tt.cfg.Addr)
			assert.Equal(t, tt.wantWriteTimeout, tt.cfg.WriteTimeout)
			assert.Equal(t, tt.wantShutdown, tt.cfg.ShutdownTimeout)
			assert.Equal(t, tt.wantRequest, tt.cfg.RequestTimeout)
			if tt.wantRequest > 0 {
				assert.Greater(t, tt.cfg.WriteTimeout, tt.cfg.RequestTimeout)
			}
		})
	}
}

func TestServer_Addr(t *testing.T) {
	t.Run("given addr after config, then addr overrides the preset", func(t *testing.T) {
		s := httpserver.New(
			httpserver.WithConfig(httpserver.GatewayConfig()),
			httpserver.WithAddr(":9999"),
			httpserver.WithHandler(http.NotFoundHandler()),
		)
		assert.Equal(t, ":9999", s.Addr())
	})

	t.Run("given config only, then preset addr is used", func(t *testing.T) {
		s := httpserver.New(
			httpserver.WithConfig(httpserver.GatewayConfig()),
			httpserver.WithHandler(http.NotFoundHandler()),
		)
		assert.Equal(t, ":8080", s.Addr())
	})
}

func TestServer_Serve(t *testing.T) {
	t.Run("given no handler, then error", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		s := httpserver.New(httpserver.WithLogger(zerolog.Nop()))
		assert.ErrorIs(t, s.Serve(context.Background(), ln), httpserver.ErrNoHandler)
	})

	t.Run("given cancelled context, then shuts down gracefully", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		s := httpserver.New(
			httpserver.WithLogger(zerolog.Nop()),
			httpserver.WithServiceName("transitd-test"),
			httpserver.WithHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "ok")
			})),
		)
		assert.Equal(t, "transitd-test", s.ServiceName())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Serve(ctx, ln) }()

		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		assert.Equal(t, "ok", string(body))

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	})
}

func TestServer_Stack(t *testing.T) {
	t.Run("given request timeout, then handler sees a deadline", func(t *testing.T) {
		var hasDeadline bool
		s := httpserver.New(
			httpserver.WithLogger(zerolog.Nop()),
			httpserver.WithRequestTimeout(time.Second),
			httpserver.WithHandler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				_, hasDeadline = r.Context().Deadline()
			})),
		)

		s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, hasDeadline)
	})

	t.Run("given health option, then handler carries service name", func(t *testing.T) {
		var health *httpserver.HealthHandler
		httpserver.New(
			httpserver.WithLogger(zerolog.Nop()),
			httpserver.WithServiceName("transitd"),
			httpserver.WithHealth(&health, "1.2.3"),
			httpserver.WithHandler(http.NotFoundHandler()),
		)
		require.NotNil(t, health)

		rec := httptest.NewRecorder()
		health.LiveHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

		out := decodeBody[httpserver.HealthResponse](t, rec)
		assert.Equal(t, "transitd", out.Data.Service)
		assert.Equal(t, "1.2.3", out.Data.Version)
	})
}

func TestHealthHandler(t *testing.T) {
	t.Run("given ping, then pong", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httpserver.NewHealthHandler().PingHandler().
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pong", decodeBody[httpserver.PingResponse](t, rec).Data.Status)
	})

	tests := []struct {
		name       string
		checks     map[string]httpserver.HealthCheck
		wantStatus int
		wantErrors []string
	}{
		{
			name:       "given no checks, then ready",
			wantStatus: http.StatusOK,
		},
		{
			name: "given passing checks, then ready",
			checks: map[string]httpserver.HealthCheck{
				"redis": func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "given one failing check, then unavailable with its name",
			checks: map[string]httpserver.HealthCheck{
				"redis": func(context.Context) error { return errors.New("connection refused") },
				"mpk":   func(context.Context) error { return nil },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantErrors: []string{"redis"},
		},
		{
			name: "given a check outliving its deadline, then it fails",
			checks: map[string]httpserver.HealthCheck{
				"slow": func(ctx context.Context) error {
					<-ctx.Done()
					return ctx.Err()
				},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantErrors: []string{"slow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := httpserver.NewHealthHandler(httpserver.WithCheckTimeout(50 * time.Millisecond))
			for name, check := range tt.checks {
				health.AddReadinessCheck(name, check)
			}

			rec := httptest.NewRecorder()
			health.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)

			out := decodeBody[httpserver.HealthResponse](t, rec)
			assert.Len(t, out.Data.Checks, len(tt.checks))

			var failed []string
			for _, e := range out.Errors {
				failed = append(failed, e.Field)
			}
			assert.Equal(t, tt.wantErrors, failed)
		})
	}

	t.Run("given repeated failures, then consecutive count grows", func(t *testing.T) {
		health := httpserver.NewHealthHandler()
		health.AddLivenessCheck("stuck", func(context.Context) error { return errors.New("stuck") })

		var out httpserver.Response[httpserver.HealthResponse]
		for range 3 {
			rec := httptest.NewRecorder()
			health.LiveHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
			out = decodeBody[httpserver.HealthResponse](t, rec)
		}
		assert.Equal(t, 3, out.Data.Checks["stuck"].ConsecutiveFailures)
		assert.Equal(t, "fail", out.Data.Status)
	})
}

func TestWriteJSON(t *testing.T) {
	t.Run("given data and errors, then both are written", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httpserver.WriteJSON(rec, http.StatusOK, httpserver.Response[[]int]{
			Data:    []int{1, 2},
			Errors:  []httpserver.Error{{Field: "https://a.example", Message: "down"}},
			Message: "partial data",
		})

		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		out := decodeBody[[]int](t, rec)
		assert.Equal(t, []int{1, 2}, out.Data)
		assert.Equal(t, "partial data", out.Message)
		assert.Len(t, out.Errors, 1)
	})

	t.Run("given unencodable data, then 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httpserver.WriteSuccess(rec, http.StatusOK, math.NaN(), "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", decodeBody[any](t, rec).Message)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("given chain, then first middleware is outermost", func(t *testing.T) {
		var order []string
		mark := func(name string) httpserver.Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		h := httpserver.Chain(mark("a"), mark("b"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			order = append(order, "handler")
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, []string{"a", "b", "handler"}, order)
	})

	t.Run("given panic, then 500 envelope", func(t *testing.T) {
		h := httpserver.Recovery(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", decodeBody[any](t, rec).Message)
	})

	t.Run("given abort handler panic, then it propagates", func(t *testing.T) {
		h := httpserver.Recovery(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		}))

		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{name: "given no header, then generated", incoming: ""},
		{name: "given header, then forwarded", incoming: "req-42", wantSame: true},
		{name: "given oversized header, then replaced", incoming: strings.Repeat("x", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := httpserver.RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = httpserver.RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(httpserver.RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(httpserver.RequestIDHeader))
			if tt.wantSame {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.NotEqual(t, tt.incoming, seen)
				assert.Len(t, seen, 36)
			}
		})
	}
}

func stopsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/stops/{code}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	return r
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	h := httpserver.Tracing(httpserver.TracingConfig{
		TracerProvider: tp,
		SkipPaths:      []string{"/livez"},
	})(stopsRouter())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stops/18360", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP GET /stops/{code}", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := httpserver.NewMetrics(httpserver.MetricsConfig{MeterProvider: mp})
	require.NoError(t, err)

	h := m.Middleware()(stopsRouter())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stops/1", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stops/2", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var points []metricdata.HistogramDataPoint[float64]
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name == "http.server.request.duration" {
				points = md.Data.(metricdata.Histogram[float64]).DataPoints
			}
		}
	}

	require.Len(t, points, 1, "both stop codes share one route series")
	assert.Equal(t, uint64(2), points[0].Count)
	route, ok := points[0].Attributes.Value("http.route")
	require.True(t, ok)
	assert.Equal(t, "/stops/{code}", route.AsString())
}
