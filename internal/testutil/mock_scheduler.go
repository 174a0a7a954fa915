// Package testutil provides testing utilities for the scheduling API client.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a snapshot of one request received by the mock server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   []byte
}

// MockScheduler is a configurable mock scheduling API server for testing.
type MockScheduler struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockScheduler creates and starts a new mock scheduling server.
func NewMockScheduler() *MockScheduler {
	mock := &MockScheduler{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"message": "no handler for %s"}`, r.URL.Path)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockScheduler) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockScheduler) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockScheduler) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockScheduler) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockScheduler) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, resp.handler())
}

// SetSequence answers successive requests to path with responses in order.
// The last response repeats once the sequence is used up.
func (m *MockScheduler) SetSequence(path string, responses ...MockResponse) {
	var (
		mu   sync.Mutex
		next int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[min(next, len(responses)-1)]
		next++
		mu.Unlock()

		resp.handler()(w, r)
	})
}

// SetPages serves a paginated listing at path. The requested page number is
// read from the "page" query parameter or JSON body field; pages are 1-based.
func (m *MockScheduler) SetPages(path string, pages ...[]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page := RequestedPage(r)
		if page < 1 || page > len(pages) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"message": "page %d out of range"}`, page)
			return
		}

		var nextPage *int
		if page < len(pages) {
			n := page + 1
			nextPage = &n
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":      pages[page-1],
			"next_page": nextPage,
		})
	})
}

// Requests returns a copy of all recorded requests.
func (m *MockScheduler) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockScheduler) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request. It panics if none was made.
func (m *MockScheduler) LastRequest() RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[len(m.requests)-1]
}

// RequestedPage extracts the page number from the query string or JSON body.
// Returns 0 if absent.
func RequestedPage(r *http.Request) int {
	if v := r.URL.Query().Get("page"); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}

	var body struct {
		Page int `json:"page"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	return body.Page
}

func (resp MockResponse) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			_, _ = w.Write([]byte(resp.Body))
		}
	}
}

// NewJSONResponse creates a 200 OK response with a JSON body.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response. An empty
// retryAfter omits the Retry-After header.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Too many requests"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
	if retryAfter != "" {
		resp.Headers["Retry-After"] = retryAfter
	}
	return resp
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"message": "Resource not found"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}
