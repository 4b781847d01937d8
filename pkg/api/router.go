// Package api provides HTTP API server components.
package api

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/goclaw/recall/config"
	"github.com/goclaw/recall/pkg/api/handlers"
	"github.com/goclaw/recall/pkg/api/middleware"
	"github.com/goclaw/recall/pkg/logger"

	_ "github.com/goclaw/recall/docs/swagger" // registers the OpenAPI document
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Memory serves the owner-scoped retrieval endpoints
	Memory *handlers.MemoryHandler

	// Retention serves the sweep endpoints
	Retention *handlers.RetentionHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.HTTPRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery())

	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.Timeout(cfg.Server.HTTP.RequestTimeout))

	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		if handlers.Memory != nil {
			r.Route("/owners/{owner}", func(r chi.Router) {
				r.Post("/memories", handlers.Memory.CreateMemory)
				r.Get("/memories", handlers.Memory.ListMemories)
				r.Get("/memories/{id}", handlers.Memory.GetMemory)
				r.Patch("/memories/{id}", handlers.Memory.UpdateMemory)
				r.Delete("/memories/{id}", handlers.Memory.DeleteMemory)

				r.Post("/search", handlers.Memory.Search)
				r.Post("/context", handlers.Memory.Context)
				r.Post("/summaries", handlers.Memory.StoreSummary)
				r.Get("/priorities", handlers.Memory.Priorities)
			})
		}

		if handlers.Retention != nil {
			r.Get("/retention", handlers.Retention.Status)
			r.Post("/retention/sweep", handlers.Retention.Sweep)
		}
	})

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}

	r.Get("/swagger/*", httpSwagger.WrapHandler)
}
