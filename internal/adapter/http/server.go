// Package http serves the store-backed read API consumed by the map
// frontend: product indices, update flags, the code catalog, and rendered
// artifacts, plus health and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/nexrad-render-etl/internal/domain"
)

// maxFlagBody bounds the accepted POST /flag/ payload.
const maxFlagBody = 1 << 20

// Product names one (level, product) pair the API serves.
type Product struct {
	Level int
	Name  string
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ReadinessFunc adapts a function to the ReadinessChecker interface.
type ReadinessFunc func(ctx context.Context) error

func (f ReadinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

// Server exposes the read API over one store.
type Server struct {
	httpServer *http.Server
	store      domain.Store
	products   []Product
	logger     *slog.Logger
}

// NewServer creates an HTTP server routing the data endpoints plus
// /healthz, /readyz, and /metrics.
func NewServer(addr string, store domain.Store, products []Product, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:    store,
		products: products,
		logger:   logger,
	}

	mux.HandleFunc("GET /code/{$}", s.handleCodes)
	mux.HandleFunc("GET /flag/{$}", s.handleFlagGet)
	mux.HandleFunc("POST /flag/{$}", s.handleFlagPost)
	mux.HandleFunc("GET /list/{level}/{product}/{$}", s.handleList)
	mux.HandleFunc("GET /list-all/{$}", s.handleListAll)
	mux.HandleFunc("GET /data/{level}/{key}/{ext}", s.handleData)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

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

// handleCodes returns the Level 3 code catalog.
func (s *Server) handleCodes(w http.ResponseWriter, r *http.Request) {
	s.writeStoredJSON(w, r, domain.CatalogObjectKey)
}

// handleFlagGet returns the per-product update flags.
func (s *Server) handleFlagGet(w http.ResponseWriter, r *http.Request) {
	s.writeStoredJSON(w, r, domain.FlagsObjectKey)
}

// handleFlagPost replaces the flags object wholesale. Consumers use it to
// clear the dirty bits they have acted on.
func (s *Server) handleFlagPost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFlagBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable request body"})
		return
	}
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body is empty"})
		return
	}
	var flags domain.UpdateFlags
	if err := json.Unmarshal(body, &flags); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body is not a flags object"})
		return
	}
	if err := s.store.PutBytes(r.Context(), domain.FlagsObjectKey, body, "application/json"); err != nil {
		s.logger.Error("flag update failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

// handleList returns the index for one (level, product) pair.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(r.PathValue("level"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "level must be numeric"})
		return
	}
	s.writeStoredJSON(w, r, domain.ListObjectKey(level, r.PathValue("product")))
}

// handleListAll returns every configured product index keyed by product name.
func (s *Server) handleListAll(w http.ResponseWriter, r *http.Request) {
	all := make(map[string]json.RawMessage, len(s.products))
	for _, p := range s.products {
		raw, err := s.store.GetBytes(r.Context(), domain.ListObjectKey(p.Level, p.Name))
		if errors.Is(err, domain.ErrNotFound) {
			raw = []byte("{}")
		} else if err != nil {
			s.logger.Error("list read failed", "product", p.Name, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		all[p.Name] = raw
	}
	writeJSON(w, http.StatusOK, all)
}

// handleData streams one rendered artifact or its metadata sidecar.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	ext := r.PathValue("ext")
	contentType, ok := map[string]string{"png": "image/png", "json": "application/json"}[ext]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "extension must be png or json"})
		return
	}
	level, err := strconv.Atoi(r.PathValue("level"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "level must be numeric"})
		return
	}

	key := fmt.Sprintf("%s%s.%s", domain.ArtifactPrefix(level), r.PathValue("key"), ext)
	data, err := s.store.GetBytes(r.Context(), key)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such artifact"})
		return
	}
	if err != nil {
		s.logger.Error("artifact read failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data) //nolint:errcheck // response already committed
}

// writeStoredJSON relays a stored JSON object verbatim. Absent objects are
// served as an empty object, not an error, so consumers can poll before the
// first pipeline run completes.
func (s *Server) writeStoredJSON(w http.ResponseWriter, r *http.Request, key string) {
	raw, err := s.store.GetBytes(r.Context(), key)
	if errors.Is(err, domain.ErrNotFound) {
		raw = []byte("{}")
	} else if err != nil {
		s.logger.Error("object read failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw) //nolint:errcheck // best-effort relay
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
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
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
