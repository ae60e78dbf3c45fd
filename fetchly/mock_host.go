package fetchly

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"

	json "github.com/goccy/go-json"
)

// Compile-time interface check.
var _ Doer = (*MockHost)(nil)

// MockHost is a configurable Doer for testing code built on fetchly.
// It stubs responses and records every request it receives.
//
// Example:
//
//	host := fetchly.NewMockHost().
//	    StubJSON(http.StatusOK, map[string]any{"id": 1}).
//	    StubPath("/missing", http.StatusNotFound, `{"message":"not found"}`)
//
//	client := fetchly.New(fetchly.WithHost(host))
type MockHost struct {
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

// stubResponse is immutable so concurrent requests can share it.
type stubResponse struct {
	statusCode int
	body       []byte
	header     http.Header
}

// NewMockHost creates a MockHost with no stubs.
func NewMockHost() *MockHost {
	return &MockHost{}
}

// StubResponse stubs all requests to return a JSON response with body.
func (m *MockHost) StubResponse(statusCode int, body string) *MockHost {
	return m.StubResponseWithHeader(statusCode, body, jsonHeader())
}

// StubResponseWithHeader stubs all requests to return body with header.
func (m *MockHost) StubResponseWithHeader(statusCode int, body string, header http.Header) *MockHost {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = newStubResponse(statusCode, body, header)
	return m
}

// StubJSON stubs all requests to return v encoded as JSON.
func (m *MockHost) StubJSON(statusCode int, v any) *MockHost {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("fetchly: MockHost.StubJSON: %v", err))
	}
	return m.StubResponse(statusCode, string(data))
}

// StubError stubs all requests to fail with err.
func (m *MockHost) StubError(err error) *MockHost {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultErr = err
	return m
}

// StubPath stubs requests matching the path to return a JSON response.
func (m *MockHost) StubPath(path string, statusCode int, body string) *MockHost {
	return m.StubFunc(func(req *http.Request) bool {
		return req.URL.Path == path
	}, statusCode, body)
}

// StubPathRegex stubs requests whose path matches pattern.
func (m *MockHost) StubPathRegex(pattern string, statusCode int, body string) *MockHost {
	re := regexp.MustCompile(pattern)
	return m.StubFunc(func(req *http.Request) bool {
		return re.MatchString(req.URL.Path)
	}, statusCode, body)
}

// StubMethod stubs requests with the given method.
func (m *MockHost) StubMethod(method Method, statusCode int, body string) *MockHost {
	return m.StubFunc(func(req *http.Request) bool {
		return req.Method == string(method)
	}, statusCode, body)
}

// StubFunc stubs requests matching the predicate to return a JSON response.
func (m *MockHost) StubFunc(
	matcher func(*http.Request) bool,
	statusCode int,
	body string,
) *MockHost {
	return m.StubFuncWithHeader(matcher, statusCode, body, jsonHeader())
}

// StubFuncWithHeader stubs requests matching the predicate to return body
// with header.
func (m *MockHost) StubFuncWithHeader(
	matcher func(*http.Request) bool,
	statusCode int,
	body string,
	header http.Header,
) *MockHost {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{
		matcher:  matcher,
		response: newStubResponse(statusCode, body, header),
	})
	return m
}

// StubFuncError stubs requests matching the predicate to fail with err.
func (m *MockHost) StubFuncError(matcher func(*http.Request) bool, err error) *MockHost {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{
		matcher: matcher,
		err:     err,
	})
	return m
}

// OnRequest sets a hook that is called for each request.
func (m *MockHost) OnRequest(fn func(*http.Request)) *MockHost {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// Do implements Doer. A request whose context is already done fails with
// the context error, as net/http would.
func (m *MockHost) Do(req *http.Request) (*http.Response, error) {
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

	// First match wins
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

	return nil, errors.New("fetchly: no stub found for request: " + req.Method + " " + req.URL.String())
}

// Requests returns all requests received so far.
func (m *MockHost) Requests() []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*http.Request{}, m.requests...)
}

// RequestCount returns the number of requests received.
func (m *MockHost) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockHost) LastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears all recorded requests and stubs.
func (m *MockHost) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.stubs = nil
	m.defaultResp = nil
	m.defaultErr = nil
	m.requestHook = nil
}

func jsonHeader() http.Header {
	return http.Header{"Content-Type": []string{"application/json"}}
}

func newStubResponse(statusCode int, body string, header http.Header) *stubResponse {
	if header == nil {
		header = make(http.Header)
	}
	return &stubResponse{statusCode: statusCode, body: []byte(body), header: header.Clone()}
}

// build returns a fresh response for req.
func (r *stubResponse) build(req *http.Request) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.statusCode, http.StatusText(r.statusCode)),
		StatusCode:    r.statusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        r.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(r.body)),
		ContentLength: int64(len(r.body)),
		Request:       req,
	}
}
