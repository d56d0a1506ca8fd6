package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/sims/vehicles", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_Memory(t *testing.T) {
	t.Run("given burst exhausted, then 429 with retry hint", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{
			Limit:   rate.Limit(0.1),
			Burst:   2,
			KeyFunc: KeyFuncByIP(),
		})(okHandler())

		assert.Equal(t, http.StatusOK, hit(h, "192.0.2.1:1000").Code)
		assert.Equal(t, http.StatusOK, hit(h, "192.0.2.1:1001").Code)

		rec := hit(h, "192.0.2.1:1002")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "10", rec.Header().Get("Retry-After"))
	})

	t.Run("given another client, then it has its own bucket", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Limit: rate.Limit(0.1), Burst: 1, KeyFunc: KeyFuncByIP()})(okHandler())

		assert.Equal(t, http.StatusOK, hit(h, "192.0.2.1:1000").Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.0.2.1:1000").Code)
		assert.Equal(t, http.StatusOK, hit(h, "192.0.2.2:1000").Code)
	})

	t.Run("given no key func, then one global bucket", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Limit: rate.Limit(0.1), Burst: 1})(okHandler())

		assert.Equal(t, http.StatusOK, hit(h, "192.0.2.1:1000").Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.0.2.2:1000").Code)
	})
}

func TestMemoryBuckets_Sweep(t *testing.T) {
	m := newMemoryBuckets(rate.Limit(1), 1, time.Millisecond)

	_, _ = m.allow(t.Context(), "a")
	time.Sleep(5 * time.Millisecond)
	_, _ = m.allow(t.Context(), "b")

	assert.Equal(t, 1, m.size())
}

func TestRateLimit_Redis(t *testing.T) {
	t.Run("given shared redis, then replicas share a bucket", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		cfg := RateLimitConfig{Limit: rate.Limit(0.1), Burst: 1, KeyFunc: KeyFuncByIP(), Redis: rdb}
		replicaA := RateLimit(cfg)(okHandler())
		replicaB := RateLimit(cfg)(okHandler())

		assert.Equal(t, http.StatusOK, hit(replicaA, "192.0.2.1:1000").Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(replicaB, "192.0.2.1:1000").Code)
		assert.True(t, mr.Exists("transitd:ratelimit:192.0.2.1"))
	})

	t.Run("given redis down, then request is allowed", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		t.Cleanup(func() { _ = rdb.Close() })
		mr.Close()

		h := RateLimit(RateLimitConfig{
			Limit:  rate.Limit(0.1),
			Burst:  1,
			Redis:  rdb,
			Logger: zerolog.Nop(),
		})(okHandler())

		assert.Equal(t, http.StatusOK, hit(h, "192.0.2.1:1000").Code)
		assert.Equal(t, http.StatusOK, hit(h, "192.0.2.1:1000").Code)
	})
}

func TestKeyFuncByIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{name: "given remote addr, then port dropped", remoteAddr: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "given ipv6 remote addr, then host only", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "given forwarded chain, then first hop", remoteAddr: "10.0.0.1:80", xff: "203.0.113.7, 10.0.0.1", want: "203.0.113.7"},
		{name: "given blank forwarded header, then remote addr", remoteAddr: "10.0.0.1:80", xff: " ", want: "10.0.0.1"},
		{name: "given addr without port, then as is", remoteAddr: "pipe", want: "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, KeyFuncByIP()(req))
		})
	}

	t.Run("given path variant, then path is part of the key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/mpk/positions", nil)
		req.RemoteAddr = "192.0.2.1:1"
		require.Equal(t, "192.0.2.1|/v1/mpk/positions", KeyFuncByIPAndPath()(req))
	})
}
