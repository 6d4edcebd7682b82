package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/scribepod/internal/config"
	"github.com/ekisa-team/scribepod/internal/env"
)

func newTestServer(t *testing.T, rl config.RateLimitConfig) *Server {
	t.Helper()

	s := NewServer(Options{
		Addr:           "127.0.0.1:0",
		Version:        "test",
		AllowedOrigins: []string{"http://localhost:3000"},
		RateLimit:      rl,
	})
	NewHealthHandler(s.API(), "test", env.Test, fakeCatalog{}, nil, memoryAt(10))
	s.mux.HandleFunc("/transcribe", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.mux.HandleFunc("/generate_thots", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return s
}

func do(h http.Handler, method, path, origin, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remote
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_CORS(t *testing.T) {
	h := newTestServer(t, config.RateLimitConfig{}).Handler()

	rec := do(h, http.MethodGet, "/health", "http://localhost:3000", "10.0.0.1:1234")
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(h, http.MethodGet, "/health", "http://evil.example", "10.0.0.1:1234")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_GlobalRateLimit(t *testing.T) {
	h := newTestServer(t, config.RateLimitConfig{MaxRequests: 2, Window: time.Hour}).Handler()

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/generate_thots", "", "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/generate_thots", "", "10.0.0.1:2").Code)

	rec := do(h, http.MethodPost, "/generate_thots", "", "10.0.0.1:3")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Another client has its own bucket.
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/generate_thots", "", "10.0.0.2:1").Code)

	// Health checks are never limited.
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "", "10.0.0.1:4").Code)
}

func TestServer_TranscribeRateLimit(t *testing.T) {
	h := newTestServer(t, config.RateLimitConfig{MaxRequests: 100, Window: time.Minute, TranscribePerMinute: 1}).Handler()

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/transcribe", "", "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodPost, "/transcribe", "", "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/generate_thots", "", "10.0.0.1:1").Code)
}

func TestClientLimiter_Refills(t *testing.T) {
	l := newClientLimiter(1, time.Second)
	now := time.Unix(1000, 0)

	ok, _ := l.allow("a", now)
	require.True(t, ok)

	ok, retry := l.allow("a", now)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))

	ok, _ = l.allow("a", now.Add(time.Second))
	assert.True(t, ok)
}

func TestClientLimiter_PrunesIdleClients(t *testing.T) {
	l := newClientLimiter(1, time.Second)
	now := time.Unix(1000, 0)

	l.allow("a", now)
	l.allow("b", now.Add(10*time.Second))

	assert.Len(t, l.clients, 1)
	assert.Contains(t, l.clients, "b")
}
