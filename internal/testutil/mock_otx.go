// Package testutil provides testing utilities for the OTX pulse ETL.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// SubscribedPath is the path of the OTX subscribed pulses endpoint.
const SubscribedPath = "/api/v1/pulses/subscribed"

// MockResponse defines the behavior for one mock OTX response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOTX is a configurable mock OTX server for testing.
//
// Responses are registered per request URI (path plus query). Each URI holds
// a queue; the last response in a queue repeats once the others are used.
type MockOTX struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses map[string][]MockResponse

	// APIKey, when set, must be present in the X-OTX-API-KEY header or the
	// server answers 403.
	APIKey string

	// Tracking
	RequestCount      int
	requestsByURI     map[string]int
	LastRequestHeader http.Header
}

// NewMockOTX creates a new mock OTX server.
func NewMockOTX() *MockOTX {
	mock := &MockOTX{
		responses:     make(map[string][]MockResponse),
		requestsByURI: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockOTX) serve(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.RequestURI()

	m.mu.Lock()
	m.RequestCount++
	m.requestsByURI[uri]++
	m.LastRequestHeader = r.Header.Clone()
	apiKey := m.APIKey

	var (
		resp  MockResponse
		found bool
	)
	if queue := m.responses[uri]; len(queue) > 0 {
		resp, found = queue[0], true
		if len(queue) > 1 {
			m.responses[uri] = queue[1:]
		}
	}
	m.mu.Unlock()

	if apiKey != "" && r.Header.Get("X-OTX-API-KEY") != apiKey {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail": "Authentication required"}`))
		return
	}

	if !found {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Not found."}`))
		return
	}

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	w.Header().Set("Content-Type", "application/json")
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server URL.
func (m *MockOTX) URL() string {
	return m.server.URL
}

// BaseURL returns the subscribed pulses endpoint of the mock server.
func (m *MockOTX) BaseURL() string {
	return m.server.URL + SubscribedPath
}

// PageURL returns the URL of the given page of the subscribed endpoint.
// Page 1 is the base URL.
func (m *MockOTX) PageURL(page int) string {
	if page <= 1 {
		return m.BaseURL()
	}
	return fmt.Sprintf("%s?page=%d", m.BaseURL(), page)
}

// Close shuts down the mock server.
func (m *MockOTX) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockOTX) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.requestsByURI = make(map[string]int)
	m.LastRequestHeader = nil
}

// SetResponses queues responses for a request URI (e.g. "/api/v1/pulses/subscribed?page=2").
func (m *MockOTX) SetResponses(uri string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[uri] = responses
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockOTX) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestCountFor returns the number of requests made for a request URI.
func (m *MockOTX) GetRequestCountFor(uri string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestsByURI[uri]
}

// GetLastRequestHeader returns a copy of the most recent request headers.
func (m *MockOTX) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader.Clone()
}

// SetPulseFeed serves pages 1..pages of the subscribed endpoint, each with
// perPage pulses whose ids are unique across the feed. Page n links to
// page n+1; the last page has a null "next".
func (m *MockOTX) SetPulseFeed(pages, perPage int) {
	for page := 1; page <= pages; page++ {
		results := make([]map[string]any, 0, perPage)
		for i := 0; i < perPage; i++ {
			results = append(results, NewPulse(fmt.Sprintf("pulse-%d-%d", page, i)))
		}

		var next any
		if page < pages {
			next = m.PageURL(page + 1)
		}

		m.SetResponses(requestURI(page), NewPageResponse(results, next))
	}
}

func requestURI(page int) string {
	if page <= 1 {
		return SubscribedPath
	}
	return fmt.Sprintf("%s?page=%d", SubscribedPath, page)
}

// NewPulse builds a raw pulse object with the given id.
func NewPulse(id string) map[string]any {
	return map[string]any{
		"id":          id,
		"name":        "Pulse " + id,
		"description": "Test pulse " + id,
		"author_name": "AlienVault",
		"created":     "2024-05-01T10:00:00.000000",
		"modified":    "2024-05-02T11:00:00.000000",
		"tags":        []string{"malware", "test"},
		"references":  []string{"https://example.com/" + id},
	}
}

// NewPageResponse creates a 200 OK page with the given results and next
// cursor (nil for the last page).
func NewPageResponse(results []map[string]any, next any) MockResponse {
	body, err := json.Marshal(map[string]any{
		"results": results,
		"next":    next,
		"count":   len(results),
	})
	if err != nil {
		panic(err)
	}
	return NewJSONResponse(string(body))
}

// NewJSONResponse creates a 200 OK response with a raw body.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"detail": "Request was throttled."}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"detail": "Internal server error"}`,
	}
}
