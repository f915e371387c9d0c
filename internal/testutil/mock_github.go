// Package testutil provides testing utilities for the GitHub ETag cache.
package testutil

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// DefaultPerPage matches GitHub's default page size.
const DefaultPerPage = 30

// MockResponse defines a fixed response for a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockGitHub is a paginated GitHub-like API server for testing.
// Resources are ordered item lists served page by page with weak ETags and
// Link headers; conditional requests get 304 when the ETag still matches.
type MockGitHub struct {
	server *httptest.Server

	mu        sync.RWMutex
	resources map[string][]string
	fixed     map[string]MockResponse

	// Tracking
	requests    []string
	conditional []string
}

// NewMockGitHub creates and starts a mock server.
func NewMockGitHub() *MockGitHub {
	mock := &MockGitHub{
		resources: make(map[string][]string),
		fixed:     make(map[string]MockResponse),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockGitHub) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGitHub) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockGitHub) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.conditional = nil
}

// SetResource replaces the items of a paginated resource at path.
func (m *MockGitHub) SetResource(path string, items []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[path] = append([]string(nil), items...)
}

// AppendItems adds items at the end (front-loaded pagination).
func (m *MockGitHub) AppendItems(path string, items ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[path] = append(m.resources[path], items...)
}

// PrependItems adds items at the start (back-loaded pagination).
func (m *MockGitHub) PrependItems(path string, items ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[path] = append(append([]string(nil), items...), m.resources[path]...)
}

// SetResponse configures a fixed response for a path, taking precedence over resources.
func (m *MockGitHub) SetResponse(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed[path] = resp
}

// Requests returns the request URIs (path and query) received so far.
func (m *MockGitHub) Requests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.requests...)
}

// ConditionalRequests returns the request URIs that carried If-None-Match.
func (m *MockGitHub) ConditionalRequests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.conditional...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockGitHub) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockGitHub) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conditional)
}

// PageETag returns the ETag the server currently sends for a page.
func (m *MockGitHub) PageETag(path string, page, perPage int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items, _ := pageItems(m.resources[path], page, perPage)
	return weakETag(items)
}

// LastPage returns the number of the last page of a resource.
func (m *MockGitHub) LastPage(path string, perPage int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lastPage(len(m.resources[path]), perPage)
}

func (m *MockGitHub) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, r.URL.RequestURI())
	if r.Header.Get("If-None-Match") != "" {
		m.conditional = append(m.conditional, r.URL.RequestURI())
	}
	fixed, hasFixed := m.fixed[r.URL.Path]
	items, hasResource := m.resources[r.URL.Path]
	items = append([]string(nil), items...)
	m.mu.Unlock()

	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", "4999")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))

	if hasFixed {
		for key, value := range fixed.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(fixed.StatusCode)
		if fixed.Body != "" {
			w.Write([]byte(fixed.Body))
		}
		return
	}

	if !hasResource {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
		return
	}

	query := r.URL.Query()
	page := atoiDefault(query.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	perPage := atoiDefault(query.Get("per_page"), DefaultPerPage)
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	pageContent, last := pageItems(items, page, perPage)
	etag := weakETag(pageContent)

	w.Header().Set("ETag", etag)
	if link := linkHeader(r, page, last); link != "" {
		w.Header().Set("Link", link)
	}

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	body, _ := json.Marshal(pageContent)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// pageItems slices a page and returns it with the last page number.
func pageItems(items []string, page, perPage int) ([]string, int) {
	last := lastPage(len(items), perPage)
	start := (page - 1) * perPage
	if start >= len(items) {
		return []string{}, last
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], last
}

func lastPage(count, perPage int) int {
	if count == 0 {
		return 1
	}
	return (count + perPage - 1) / perPage
}

// linkHeader mimics GitHub: next/last are omitted on the last page.
func linkHeader(r *http.Request, page, last int) string {
	pageURL := func(n int) string {
		u := *r.URL
		u.Scheme = "http"
		u.Host = r.Host
		q := u.Query()
		q.Set("page", strconv.Itoa(n))
		u.RawQuery = q.Encode()
		return u.String()
	}

	var links []string
	if page < last {
		links = append(links,
			fmt.Sprintf(`<%s>; rel="next"`, pageURL(page+1)),
			fmt.Sprintf(`<%s>; rel="last"`, pageURL(last)))
	}
	if page > 1 {
		links = append(links,
			fmt.Sprintf(`<%s>; rel="first"`, pageURL(1)),
			fmt.Sprintf(`<%s>; rel="prev"`, pageURL(page-1)))
	}

	header := ""
	for i, link := range links {
		if i > 0 {
			header += ", "
		}
		header += link
	}
	return header
}

func weakETag(items []string) string {
	h := fnv.New64a()
	for _, item := range items {
		h.Write([]byte(item))
		h.Write([]byte{0})
	}
	return fmt.Sprintf(`W/"%016x"`, h.Sum64())
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Items returns n item names with the given prefix, e.g. Items("user", 3) → user-1..user-3.
func Items(prefix string, n int) []string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf("%s-%d", prefix, i+1)
	}
	return items
}
