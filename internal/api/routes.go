package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes groups the handlers mounted by SetupRoutes. Webhook and Metrics
// may be nil.
type Routes struct {
	Handlers *Handlers
	Health   *HealthChecker
	Webhook  http.HandlerFunc
	Metrics  http.Handler
}

// SetupRoutes configures all API routes. Every endpoint except /metrics is
// served both at the root and under /api.
func SetupRoutes(rt Routes) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-HubSpot-Signature"},
		MaxAge:         300,
	}))

	mount := func(r chi.Router) {
		r.Get("/health", rt.Health.HandleHealth)
		r.Get("/health/live", rt.Health.HandleLiveness)
		r.Get("/health/ready", rt.Health.HandleReadiness)

		r.Route("/validate", func(r chi.Router) {
			r.Post("/email", rt.Handlers.ValidateEmail)
			r.Post("/batch", rt.Handlers.ValidateBatch)
			r.Get("/history", rt.Handlers.History)
		})

		if rt.Webhook != nil {
			// All methods reach the gateway so it can answer 405 itself.
			r.HandleFunc("/webhooks/hubspot", rt.Webhook)
		}
	}

	mount(r)
	r.Route("/api", mount)

	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics)
	}

	return r
}
