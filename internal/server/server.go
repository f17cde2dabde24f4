// Package server exposes the HTTP API: poll simulation, screenshot
// extraction, bulk product fetches and the read-side endpoints over
// stored runs and products.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/pollster/internal/extraction"
	"github.com/vietddude/pollster/internal/fetching"
	"github.com/vietddude/pollster/internal/health"
	"github.com/vietddude/pollster/internal/infra/images"
	"github.com/vietddude/pollster/internal/infra/storage"
	"github.com/vietddude/pollster/internal/polling"
	"github.com/vietddude/pollster/internal/retry"
)

// Deps bundles everything the handlers reach into.
type Deps struct {
	Polls     *polling.Simulator
	Extractor *extraction.Extractor
	Fetcher   *fetching.Fetcher
	Images    *images.Fetcher
	Products  storage.ProductRepository
	Runs      storage.PollRunRepository
	Monitor   *health.Monitor
}

// Server provides the HTTP API.
type Server struct {
	deps    Deps
	handler http.Handler
	server  *http.Server
	timeout time.Duration
	log     *slog.Logger
}

// NewServer creates the API server. timeout bounds one request end to
// end, poll and bulk-fetch calls included.
func NewServer(port int, timeout time.Duration, deps Deps) *Server {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	s := &Server{
		deps:    deps,
		timeout: timeout,
		log:     slog.Default().With("component", "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/polls", s.handleCreatePoll)
	mux.HandleFunc("GET /api/v1/polls/recent", s.handleRecentPolls)
	mux.HandleFunc("GET /api/v1/polls/{id}", s.handleGetPoll)
	mux.HandleFunc("POST /api/v1/extract", s.handleExtract)
	mux.HandleFunc("POST /api/v1/products/fetch", s.handleBulkFetch)
	mux.HandleFunc("GET /api/v1/products/{asin}", s.handleGetProduct)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleHealthDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = s.withRequestLog(s.withTimeout(mux))
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop drains in-flight requests and stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// errorResponse is the envelope every failed request carries.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Failed to encode response", "error", err)
	}
}

// writeError maps a failure onto the envelope: auth problems are 401,
// caller problems 400, everything else 500. Missing records are 404.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrProductNotFound) || errors.Is(err, storage.ErrPollRunNotFound) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	cls := retry.Classify(err)
	status := http.StatusInternalServerError
	switch cls.Kind {
	case retry.KindAuth:
		status = http.StatusUnauthorized
	case retry.KindClient:
		status = http.StatusBadRequest
	}

	resp := errorResponse{Error: cls.Message}
	if detail := err.Error(); detail != cls.Message {
		resp.Details = detail
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) clientError(w http.ResponseWriter, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	s.writeJSON(w, http.StatusBadRequest, resp)
}
