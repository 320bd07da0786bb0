// Package http exposes the engine's operational endpoints and the latest
// analysis results over HTTP.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sitewind/windstats/internal/pipeline"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ResultStore holds the most recent analysis run for serving. Safe for
// concurrent use; the pipeline publishes, handlers read.
type ResultStore struct {
	mu       sync.RWMutex
	analyses []pipeline.SiteAnalysis
	updated  time.Time
}

// Publish replaces the stored run.
func (s *ResultStore) Publish(analyses []pipeline.SiteAnalysis, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses = analyses
	s.updated = at
}

// Latest returns the stored run, or ok=false before the first publish.
func (s *ResultStore) Latest() ([]pipeline.SiteAnalysis, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.analyses == nil {
		return nil, time.Time{}, false
	}
	return s.analyses, s.updated, true
}

// Server exposes health, readiness, metrics, and analysis result endpoints.
type Server struct {
	httpServer *http.Server
	results    *ResultStore
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /v1/analyses routes.
func NewServer(addr string, ready ReadinessChecker, results *ResultStore, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		results: results,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/analyses", s.handleAnalyses)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleAnalyses(w http.ResponseWriter, _ *http.Request) {
	analyses, updated, ok := s.results.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no analysis run has completed yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generated_at": updated,
		"sites":        analyses,
	})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
