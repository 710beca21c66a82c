package testutil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockFetcher is a configurable in-memory source fetcher for testing.
type MockFetcher struct {
	mu      sync.RWMutex
	images  map[string][]byte
	errors  map[string]error
	delays  map[string]time.Duration
	fetches int
}

// NewMockFetcher creates an empty mock fetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		images: make(map[string][]byte),
		errors: make(map[string]error),
		delays: make(map[string]time.Duration),
	}
}

// SetImage registers bytes for an identity.
func (m *MockFetcher) SetImage(identity string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[identity] = data
}

// SetError makes Fetch fail for an identity.
func (m *MockFetcher) SetError(identity string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[identity] = err
}

// SetDelay makes Fetch sleep before returning for an identity.
func (m *MockFetcher) SetDelay(identity string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[identity] = d
}

// FetchCount returns the number of Fetch calls observed.
func (m *MockFetcher) FetchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetches
}

// Fetch implements the optimizer.SourceFetcher contract.
func (m *MockFetcher) Fetch(ctx context.Context, identity string) ([]byte, error) {
	m.mu.Lock()
	m.fetches++
	delay := m.delays[identity]
	err := m.errors[identity]
	data, ok := m.images[identity]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("image %q not found", identity)
	}
	return data, nil
}

// ImageServer is an httptest server that serves registered images by path,
// for exercising the HTTP source fetcher.
type ImageServer struct {
	server *httptest.Server
	mu     sync.RWMutex
	images map[string][]byte

	// RequestCount tracks requests served.
	RequestCount int
}

// NewImageServer starts a mock image server.
func NewImageServer() *ImageServer {
	s := &ImageServer{
		images: make(map[string][]byte),
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.RequestCount++
		data, ok := s.images[r.URL.Path]
		s.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}))
	return s
}

// URL returns the server base URL.
func (s *ImageServer) URL() string {
	return s.server.URL
}

// SetImage registers image bytes at a path (must start with "/").
func (s *ImageServer) SetImage(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[path] = data
}

// Close shuts down the server.
func (s *ImageServer) Close() {
	s.server.Close()
}
