package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/transit-go/clienterr"
	"github.com/kroma-labs/transit-go/decode"
	"github.com/kroma-labs/transit-go/digest"
	"github.com/kroma-labs/transit-go/fanout"
	"github.com/kroma-labs/transit-go/httpclient"
	"github.com/kroma-labs/transit-go/httpserver"
	"github.com/kroma-labs/transit-go/mpk"
	"github.com/kroma-labs/transit-go/sims"
)

const stopJSON = `[{"busStopCode":"18360","busStopName":"Grzybowa","busStopLatitude":51.1589,"busStopLongitude":16.8532}]`

type fakeMPK struct {
	err      error
	courses  []string
	post     string
	line     string
	symbol   string
	position mpk.Positions
}

func (f *fakeMPK) Positions(context.Context) (mpk.Positions, error) {
	return f.position, f.err
}

func (f *fakeMPK) PostInfo(_ context.Context, symbol string) ([]mpk.BusStop, error) {
	f.symbol = symbol
	if f.err != nil {
		return nil, f.err
	}
	return []mpk.BusStop{{Label: "Rynek", Direction: "Leśnica", Time: "12:05", Course: 25622727}}, nil
}

func (f *fakeMPK) CoursePosts(_ context.Context, courses []string) ([]mpk.CourseInfo, error) {
	f.courses = courses
	return nil, f.err
}

func (f *fakeMPK) PostPlate(_ context.Context, post, line string) (mpk.PostPlate, error) {
	f.post, f.line = post, line
	return mpk.PostPlate{Line: line, Post: post}, f.err
}

func newRouter(t *testing.T, m MPK, mock *httpclient.MockTransport) *Router {
	t.Helper()
	var s SIMS
	if mock != nil {
		fetcher := fanout.New(httpclient.New(httpclient.WithMockTransport(mock)))
		s = sims.New(sims.DefaultConfig(), fetcher)
	}
	rt, err := NewRouter(m, s, WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	return rt
}

func get(rt http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) httpserver.Response[T] {
	t.Helper()
	var out httpserver.Response[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func mirrorHost(i int) string {
	return sims.DefaultHosts()[i][len("https://"):]
}

func TestSIMS_Outcomes(t *testing.T) {
	tests := []struct {
		name         string
		failing      []int
		wantStatus   int
		wantItems    int
		wantMessage  string
		wantFields   []string
		wantDegraded float64
	}{
		{
			name:       "given all mirrors healthy, then every copy is served",
			wantStatus: http.StatusOK,
			wantItems:  3,
		},
		{
			name:         "given one mirror down, then partial data with its host",
			failing:      []int{1},
			wantStatus:   http.StatusOK,
			wantItems:    2,
			wantMessage:  "partial data",
			wantFields:   []string{sims.DefaultHosts()[1]},
			wantDegraded: 1,
		},
		{
			name:        "given every mirror down, then 502 listing hosts in dispatch order",
			failing:     []int{0, 1, 2},
			wantStatus:  http.StatusBadGateway,
			wantMessage: "all mirrors failed",
			wantFields:  sims.DefaultHosts(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := httpclient.NewMockTransport()
			down := make(map[int]bool)
			for _, i := range tt.failing {
				down[i] = true
			}
			for i := range sims.DefaultHosts() {
				if down[i] {
					mock.StubHostError(mirrorHost(i), errors.New("connection refused"))
					continue
				}
				mock.StubHost(mirrorHost(i), http.StatusOK, stopJSON)
			}

			rt := newRouter(t, nil, mock)
			rec := get(rt, "/v1/sims/stops")
			require.Equal(t, tt.wantStatus, rec.Code)

			out := decodeBody[*Items[sims.BusStop]](t, rec)
			assert.Equal(t, tt.wantMessage, out.Message)

			var fields []string
			for _, e := range out.Errors {
				fields = append(fields, e.Field)
				assert.Contains(t, e.Message, "transport: ")
			}
			assert.Equal(t, tt.wantFields, fields)

			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, out.Data)
				assert.Len(t, out.Data.Items, tt.wantItems)
			} else {
				assert.Nil(t, out.Data)
			}
			assert.InDelta(t, tt.wantDegraded,
				testutil.ToFloat64(rt.metrics.degraded.WithLabelValues("sims_bus_stops")), 0)
		})
	}
}

func TestSIMS_Timetable(t *testing.T) {
	mock := httpclient.NewMockTransport().StubResponse(http.StatusOK, `[]`)
	rt := newRouter(t, nil, mock)

	rec := get(rt, "/v1/sims/stops/18360/timetable")
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody[*Items[sims.Timetable]](t, rec)
	require.NotNil(t, out.Data)
	assert.NotNil(t, out.Data.Items)
	assert.Empty(t, out.Data.Items)

	require.Equal(t, 3, mock.RequestCount())
	assert.Equal(t, "/timetables/busStops/18360", mock.LastRequest().URL.Path)
}

func TestMPK_Routes(t *testing.T) {
	t.Run("given positions, then metadata and items", func(t *testing.T) {
		f := &fakeMPK{position: mpk.Positions{Metadata: "2025-02-26 23:38:00", Records: []mpk.Bus{{Code: 8418}}}}
		rec := get(newRouter(t, f, nil), "/v1/mpk/positions")
		require.Equal(t, http.StatusOK, rec.Code)

		out := decodeBody[*Items[map[string]any]](t, rec)
		assert.Equal(t, "2025-02-26 23:38:00", out.Data.Metadata)
		assert.Len(t, out.Data.Items, 1)
	})

	t.Run("given post symbol, then forwarded", func(t *testing.T) {
		f := &fakeMPK{}
		rec := get(newRouter(t, f, nil), "/v1/mpk/posts/20362")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "20362", f.symbol)
	})

	t.Run("given course ids, then split and trimmed", func(t *testing.T) {
		f := &fakeMPK{}
		rec := get(newRouter(t, f, nil), "/v1/mpk/courses?ids=25622727,%2025623045,")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"25622727", "25623045"}, f.courses)

		out := decodeBody[*Items[mpk.CourseInfo]](t, rec)
		assert.NotNil(t, out.Data.Items)
	})

	t.Run("given no course ids, then 400", func(t *testing.T) {
		rec := get(newRouter(t, &fakeMPK{}, nil), "/v1/mpk/courses")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "ids", decodeBody[any](t, rec).Errors[0].Field)
	})

	t.Run("given plate route, then post and line forwarded", func(t *testing.T) {
		f := &fakeMPK{}
		rec := get(newRouter(t, f, nil), "/v1/mpk/posts/20362/lines/250/plate")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "20362", f.post)
		assert.Equal(t, "250", f.line)
		assert.Equal(t, "250", decodeBody[mpk.PostPlate](t, rec).Data.Line)
	})
}

func TestMPK_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantField  string
		wantMsg    string
	}{
		{
			name:       "given auth failure, then 502",
			err:        &digest.AuthError{Reason: digest.ReasonAuthenticationFailed, StatusCode: http.StatusUnauthorized},
			wantStatus: http.StatusBadGateway,
			wantField:  "auth",
		},
		{
			name:       "given upstream error, then 502 with info and message",
			err:        &decode.UpstreamError{Info: "Brak danych", Message: "post not found", StackTrace: "at X"},
			wantStatus: http.StatusBadGateway,
			wantField:  "upstream",
			wantMsg:    "Brak danych: post not found",
		},
		{
			name:       "given decode failure, then 502",
			err:        &decode.DecodeError{Reason: decode.SchemaMismatch},
			wantStatus: http.StatusBadGateway,
			wantField:  "decode",
		},
		{
			name:       "given transport timeout, then 504",
			err:        &clienterr.TransportError{Host: "impk.mpk.wroc.pl:8088", Op: "request", Type: "timeout", Err: context.DeadlineExceeded},
			wantStatus: http.StatusGatewayTimeout,
			wantField:  "transport",
		},
		{
			name:       "given wrapped deadline, then 504",
			err:        fmt.Errorf("mpk: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantField:  "unknown",
		},
		{
			name:       "given other transport failure, then 502",
			err:        &clienterr.StatusError{Host: "impk.mpk.wroc.pl:8088", StatusCode: http.StatusServiceUnavailable},
			wantStatus: http.StatusBadGateway,
			wantField:  "transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRouter(t, &fakeMPK{err: tt.err}, nil)
			rec := get(rt, "/v1/mpk/positions")
			require.Equal(t, tt.wantStatus, rec.Code)

			out := decodeBody[any](t, rec)
			require.Len(t, out.Errors, 1)
			assert.Equal(t, tt.wantField, out.Errors[0].Field)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, out.Errors[0].Message)
			}
			assert.NotContains(t, rec.Body.String(), "at X")
			assert.InDelta(t, 1,
				testutil.ToFloat64(rt.metrics.failed.WithLabelValues("mpk_positions", tt.wantField)), 0)
		})
	}
}

func TestRouter(t *testing.T) {
	t.Run("given unknown route, then JSON 404", func(t *testing.T) {
		rec := get(newRouter(t, &fakeMPK{}, nil), "/v2/nothing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "route not found", decodeBody[any](t, rec).Message)
	})

	t.Run("given no sims client, then its routes are absent", func(t *testing.T) {
		rec := get(newRouter(t, &fakeMPK{}, nil), "/v1/sims/vehicles")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("given health handler, then health endpoints are mounted", func(t *testing.T) {
		rt, err := NewRouter(nil, nil,
			WithRegistry(prometheus.NewRegistry()),
			WithHealth(httpserver.NewHealthHandler()),
		)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, get(rt, "/ping").Code)
		assert.Equal(t, http.StatusOK, get(rt, "/readyz").Code)
	})

	t.Run("given metrics route, then gateway counters are exposed", func(t *testing.T) {
		mock := httpclient.NewMockTransport().
			StubHostError(mirrorHost(0), errors.New("connection refused")).
			StubResponse(http.StatusOK, stopJSON)
		rt := newRouter(t, nil, mock)

		require.Equal(t, http.StatusOK, get(rt, "/v1/sims/stops").Code)

		rec := get(rt, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `transitd_mirror_degraded_total{resource="sims_bus_stops"} 1`)
	})

	t.Run("given second router on one registry, then collectors are shared", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		a, err := NewRouter(nil, nil, WithRegistry(reg))
		require.NoError(t, err)
		b, err := NewRouter(nil, nil, WithRegistry(reg))
		require.NoError(t, err)
		assert.Same(t, a.metrics.degraded, b.metrics.degraded)
	})
}
