package httpclient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"
)

// MockTransport is an http.RoundTripper for tests that answers from stubs
// instead of the network.
//
// Example - two healthy mirrors and one down:
//
//	mock := httpclient.NewMockTransport().
//	    StubHost("api.dla.sims.pl", http.StatusOK, `[...]`).
//	    StubHost("api.dlugoleka.sims.pl", http.StatusOK, `[...]`).
//	    StubHostError("api.dlugoleka.mp.sims.pl", errors.New("connection refused"))
//
//	client := httpclient.New(httpclient.WithMockTransport(mock))
type MockTransport struct {
	mu          sync.RWMutex
	stubs       []stub
	defaultResp *stubResponse
	defaultErr  error
	requests    []*http.Request
	requestHook func(*http.Request)
}

type stub struct {
	matcher  func(*http.Request) bool
	response *stubResponse
	err      error
}

// stubResponse is stored as plain data so every match gets a fresh body.
type stubResponse struct {
	statusCode int
	header     http.Header
	body       []byte
}

func (s *stubResponse) build(req *http.Request) *http.Response {
	return &http.Response{
		Status:        http.StatusText(s.statusCode),
		StatusCode:    s.statusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        s.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(s.body)),
		ContentLength: int64(len(s.body)),
		Request:       req,
	}
}

// NewMockTransport creates a MockTransport with no stubs.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// StubResponse sets the response for requests no stub matches.
func (m *MockTransport) StubResponse(statusCode int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = newStubResponse(statusCode, nil, body)
	return m
}

// StubError sets the error for requests no stub matches.
func (m *MockTransport) StubError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultErr = err
	return m
}

// StubHost answers requests to host (as in URL.Host) with a response.
func (m *MockTransport) StubHost(host string, statusCode int, body string) *MockTransport {
	return m.StubFunc(matchHost(host), statusCode, body)
}

// StubHostError fails requests to host with err.
func (m *MockTransport) StubHostError(host string, err error) *MockTransport {
	return m.StubFuncError(matchHost(host), err)
}

// StubPath answers requests with the given URL path.
func (m *MockTransport) StubPath(path string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.URL.Path == path
	}, statusCode, body)
}

// StubFunc answers requests for which matcher returns true.
// Stubs are checked in the order they were added.
func (m *MockTransport) StubFunc(matcher func(*http.Request) bool, statusCode int, body string) *MockTransport {
	return m.StubFuncHeader(matcher, statusCode, nil, body)
}

// StubFuncHeader is StubFunc with response headers.
func (m *MockTransport) StubFuncHeader(
	matcher func(*http.Request) bool,
	statusCode int,
	header http.Header,
	body string,
) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{
		matcher:  matcher,
		response: newStubResponse(statusCode, header, body),
	})
	return m
}

// StubFuncError fails requests for which matcher returns true.
func (m *MockTransport) StubFuncError(matcher func(*http.Request) bool, err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{
		matcher: matcher,
		err:     err,
	})
	return m
}

// OnRequest registers a hook called for every request before a stub is
// chosen. The hook runs on the caller's goroutine and may block.
func (m *MockTransport) OnRequest(fn func(*http.Request)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	hook := m.requestHook
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.stubs {
		if s.matcher(req) {
			if s.err != nil {
				return nil, s.err
			}
			return s.response.build(req), nil
		}
	}

	if m.defaultErr != nil {
		return nil, m.defaultErr
	}
	if m.defaultResp != nil {
		return m.defaultResp.build(req), nil
	}

	return nil, errors.New("no stub found for request: " + req.Method + " " + req.URL.String())
}

// Requests returns all requests made through this transport.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*http.Request{}, m.requests...)
}

// RequestCount returns the number of requests made.
func (m *MockTransport) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears all recorded requests and stubs.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.stubs = nil
	m.defaultResp = nil
	m.defaultErr = nil
	m.requestHook = nil
}

func newStubResponse(statusCode int, header http.Header, body string) *stubResponse {
	if header == nil {
		header = make(http.Header)
	}
	return &stubResponse{
		statusCode: statusCode,
		header:     header,
		body:       []byte(body),
	}
}

func matchHost(host string) func(*http.Request) bool {
	return func(req *http.Request) bool {
		return req.URL.Host == host
	}
}
