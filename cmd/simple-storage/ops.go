package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-storage/pkg/simplestorage/cleanup"
	"github.com/tendant/simple-storage/pkg/simplestorage/config"
)

const readinessTimeout = 2 * time.Second

// Pinger reports whether the metadata database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CleanupRunner runs one cleanup pass on demand.
type CleanupRunner interface {
	RunOnce(ctx context.Context) (*cleanup.Result, error)
}

// OpsServer exposes health, readiness, metrics and a manual cleanup trigger.
type OpsServer struct {
	pinger   Pinger
	cleanup  CleanupRunner
	gatherer prometheus.Gatherer
	config   *config.ServerConfig
}

// NewOpsServer creates the ops endpoints
func NewOpsServer(pinger Pinger, runner CleanupRunner, gatherer prometheus.Gatherer, cfg *config.ServerConfig) *OpsServer {
	return &OpsServer{
		pinger:   pinger,
		cleanup:  runner,
		gatherer: gatherer,
		config:   cfg,
	}
}

// Routes sets up the HTTP routes
func (s *OpsServer) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/info", s.handleInfo)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Post("/admin/cleanup", s.handleCleanup)

	return r
}

func (s *OpsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *OpsServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	render.JSON(w, r, map[string]string{"status": "ready"})
}

func (s *OpsServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	backends := make([]map[string]string, 0, len(s.config.StorageBackends))
	for _, b := range s.config.StorageBackends {
		backends = append(backends, map[string]string{"name": b.Name, "type": b.Type})
	}
	render.JSON(w, r, map[string]any{
		"version":                   version,
		"environment":               s.config.Environment,
		"database_type":             s.config.DatabaseType,
		"default_storage_backend":   s.config.DefaultStorageBackend,
		"temporary_storage_backend": s.config.TemporaryStorageBackend,
		"storage_backends":          backends,
		"cleanup_interval":          s.config.CleanupInterval.String(),
		"temporary_ttl":             s.config.TemporaryTTL.String(),
		"events_enabled":            s.config.EnableEvents,
	})
}

func (s *OpsServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	result, err := s.cleanup.RunOnce(r.Context())
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": err.Error()})
		return
	}
	if result.Skipped {
		render.Status(r, http.StatusConflict)
	}
	render.JSON(w, r, map[string]any{
		"expired":  result.Expired,
		"purged":   result.Purged,
		"failed":   result.Failed,
		"skipped":  result.Skipped,
		"duration": result.Duration.String(),
	})
}
