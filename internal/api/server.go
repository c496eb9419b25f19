// Package api exposes the HTTP interface for the discovery service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/searchscout/searchscout/internal/metrics"
	"github.com/searchscout/searchscout/internal/orchestrator"
	"github.com/searchscout/searchscout/internal/pattern"
)

// Runner is the orchestrator surface the server depends on.
type Runner interface {
	Discover(ctx context.Context, domains []string) pattern.Report
	Verify(ctx context.Context, domains []string) pattern.Report
}

var _ Runner = (*orchestrator.Orchestrator)(nil)

// Server wires HTTP handlers to the orchestrator and pattern store.
type Server struct {
	router  chi.Router
	runner  Runner
	store   pattern.Store
	logger  *zap.Logger
	timeout time.Duration

	maxBatch int

	running atomic.Bool
	mu      sync.RWMutex
	last    *pattern.Report
}

// NewServer constructs a Server with middleware and routes. runTimeout
// bounds background batch runs; zero means one hour. maxBatch caps the
// domains accepted per request; zero means 100.
func NewServer(runner Runner, store pattern.Store, logger *zap.Logger, runTimeout time.Duration, maxBatch int) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runTimeout <= 0 {
		runTimeout = time.Hour
	}
	if maxBatch <= 0 {
		maxBatch = 100
	}
	s := &Server{
		runner:   runner,
		store:    store,
		logger:   logger,
		timeout:  runTimeout,
		maxBatch: maxBatch,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/discover", s.runBatch(pattern.ModeDiscover))
		r.Post("/verify", s.runBatch(pattern.ModeVerify))
		r.Get("/status", s.status)
		r.Get("/patterns/{domain}", s.getPattern)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type batchRequest struct {
	Domains []string `json:"domains"`
}

// runBatch starts a background run over the requested domains. Only one
// batch runs at a time; a second request gets 409 until it finishes.
func (s *Server) runBatch(mode pattern.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if len(req.Domains) == 0 {
			writeError(w, http.StatusBadRequest, "domains required")
			return
		}
		if len(req.Domains) > s.maxBatch {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("batch exceeds %d domains", s.maxBatch))
			return
		}
		if !s.running.CompareAndSwap(false, true) {
			writeError(w, http.StatusConflict, "a batch run is already in progress")
			return
		}

		go func() {
			defer s.running.Store(false)
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()
			var report pattern.Report
			if mode == pattern.ModeVerify {
				report = s.runner.Verify(ctx, req.Domains)
			} else {
				report = s.runner.Discover(ctx, req.Domains)
			}
			s.mu.Lock()
			s.last = &report
			s.mu.Unlock()
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":  "started",
			"mode":    string(mode),
			"domains": len(req.Domains),
		})
	}
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	resp := map[string]any{"running": s.running.Load()}
	if last != nil {
		resp["last_report"] = last
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getPattern(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "domain")
	domain, err := pattern.NormalizeDomain(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.store.FetchCurrent(r.Context(), domain)
	if err != nil {
		if errors.Is(err, pattern.ErrPatternNotFound) {
			writeError(w, http.StatusNotFound, "pattern not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch pattern")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
