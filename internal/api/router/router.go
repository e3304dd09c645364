// Package router provides HTTP routing configuration using Chi.
package router

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/remiblancher/primlab/internal/api/handler"
	"github.com/remiblancher/primlab/internal/api/service"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Config holds router configuration.
type Config struct {
	Version string
	Runs    *service.RunService
	Catalog *service.CatalogService
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health and metrics endpoints
	healthHandler := handler.NewHealthHandler(cfg.Version, cfg.Runs)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// OpenAPI document
	r.Get("/api/openapi.yaml", serveOpenAPISpec)

	runHandler := handler.NewRunHandler(cfg.Runs)
	catalogHandler := handler.NewCatalogHandler(cfg.Catalog)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/backends", catalogHandler.Backends)
		r.Get("/vectors", catalogHandler.Vectors)

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", runHandler.Start)
			r.Get("/latest", runHandler.Latest)
			r.Get("/latest/status", runHandler.Status)
		})
	})

	return r
}

// serveOpenAPISpec serves the OpenAPI specification file.
func serveOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapiSpec)
}
