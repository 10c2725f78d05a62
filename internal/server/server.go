// Package server exposes the status endpoint for a batch in flight.
//
// The endpoint is an observability surface, not the product: /healthz for
// liveness, /progress for live run counters, /version for build info. It is
// off unless an address is configured.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/structbio/bcifpipe/internal/config"
	"github.com/structbio/bcifpipe/pkg/batch"
)

// CountsFunc supplies the current run counters.
type CountsFunc func() batch.Counts

// Server serves the status endpoint.
type Server struct {
	http   *http.Server
	logger *zap.Logger
}

// New builds a status server. counts may be nil when no run is active;
// /progress then reports zeros.
func New(cfg config.ServerConfig, counts CountsFunc, version, runID string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version})
	})
	r.Get("/progress", func(w http.ResponseWriter, _ *http.Request) {
		var c batch.Counts
		if counts != nil {
			c = counts()
		}
		writeJSON(w, http.StatusOK, struct {
			RunID string `json:"run_id"`
			batch.Counts
		}{RunID: runID, Counts: c})
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.Addr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start listens in a background goroutine and returns immediately.
// Listen failures are logged, not fatal: a broken status endpoint must
// never kill a batch.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status endpoint listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Warn("status endpoint failed", zap.Error(err))
		}
	}()
}

// Shutdown drains the server within timeout.
func (s *Server) Shutdown(ctx context.Context, timeout time.Duration) error {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.http.Shutdown(sctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
