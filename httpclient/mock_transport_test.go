package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockTransport(t *testing.T) {
	errDown := errors.New("mirror down")
	mock := NewMockTransport().
		StubPath("/timetables/busStops", http.StatusOK, `[]`).
		StubHost("api.dla.sims.pl", http.StatusOK, `["a"]`).
		StubHostError("api.dlugoleka.mp.sims.pl", errDown).
		StubResponse(http.StatusNotFound, "")

	do := func(rawURL string) (*http.Response, error) {
		req, _ := http.NewRequest(http.MethodGet, rawURL, nil)
		return mock.RoundTrip(req)
	}

	t.Run("given host stub, then every match gets a fresh body", func(t *testing.T) {
		for range 2 {
			resp, err := do("https://api.dla.sims.pl/vehicles")
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, `["a"]`, string(body))
			assert.Equal(t, int64(5), resp.ContentLength)
		}
	})

	t.Run("given path stub, then any host matches", func(t *testing.T) {
		resp, err := do("https://api.dlugoleka.sims.pl/timetables/busStops")
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, `[]`, string(body))
	})

	t.Run("given host error stub, then returns error", func(t *testing.T) {
		_, err := do("https://api.dlugoleka.mp.sims.pl/vehicles")
		assert.ErrorIs(t, err, errDown)
	})

	t.Run("given no matching stub, then default response", func(t *testing.T) {
		resp, err := do("https://example.com/")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	assert.Equal(t, 5, mock.RequestCount())
	assert.Equal(t, "example.com", mock.LastRequest().URL.Host)

	mock.Reset()
	assert.Zero(t, mock.RequestCount())
	_, err := do("https://example.com/")
	assert.Error(t, err)
}

func TestMockTransport_CancelledContext(t *testing.T) {
	mock := NewMockTransport().StubResponse(http.StatusOK, "")

	ctx, cancel := context.WithCancel(context.Background())
	mock.OnRequest(func(*http.Request) { cancel() })

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.dla.sims.pl/", nil)
	_, err := mock.RoundTrip(req)
	assert.ErrorIs(t, err, context.Canceled)
}
