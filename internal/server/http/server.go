package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/cors"

	"github.com/ekisa-team/scribepod/internal/config"
)

// Options configures the HTTP server.
type Options struct {
	Addr           string
	Version        string
	AllowedOrigins []string
	RateLimit      config.RateLimitConfig
}

// Server is the public HTTP surface of scribepod.
type Server struct {
	api     huma.API
	mux     *http.ServeMux
	handler http.Handler
	srv     *http.Server
}

// NewServer creates the mux, the huma API and the middleware chain.
// Handlers are registered on API() before Run is called.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("scribepod", opts.Version)
	humaConfig.Info.Description = "Speech transcription and persona inference"
	api := humago.New(mux, humaConfig)

	limiter := newRateLimiter(opts.RateLimit)

	c := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(limiter.middleware(mux))

	return &Server{
		api:     api,
		mux:     mux,
		handler: handler,
		srv: &http.Server{
			Addr:              opts.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// API returns the huma API to register operations on.
func (s *Server) API() huma.API {
	return s.api
}

// Handler returns the root handler including CORS and rate limiting.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	slog.Info("HTTP server listening", "addr", s.srv.Addr)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
