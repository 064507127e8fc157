/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/assemblies/*            Assemblies, ledger views, activity recording
  /api/purchase-order-lines/*  PO lines and reservation trimming
  /api/reservations            Reservation upserts
  /api/settings/*              Coverage tolerance configuration
  /api/health                  Liveness

SECURITY NOTE:
  No authentication middleware. Deployment fronts this with the platform's
  gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Assembly routes
		r.Route("/assemblies", func(r chi.Router) {
			r.Get("/", h.ListAssemblies)
			r.Post("/", h.CreateAssembly)
			r.Get("/{id}", h.GetAssembly)
			r.Get("/{id}/ledger", h.GetLedgerView)
			r.Get("/{id}/activities", h.GetActivities)
			r.Get("/{id}/materials", h.GetMaterialCoverage)
			r.Post("/{id}/activities/cut", h.RecordCut)
			r.Post("/{id}/activities/pack", h.RecordPack)
			r.Post("/{id}/activities/retain", h.RecordRetain)
			r.Post("/{id}/reconcile", h.Reconcile)
			r.Put("/{id}/external-steps", h.UpsertExternalStep)
			r.Post("/{id}/products/{productId}/settle", h.SettleReservations)
		})

		// Supply routes
		r.Route("/purchase-order-lines", func(r chi.Router) {
			r.Post("/", h.SavePurchaseOrderLine)
			r.Post("/{id}/trim", h.TrimReservations)
		})
		r.Post("/reservations", h.SaveReservation)

		// Settings routes
		r.Route("/settings", func(r chi.Router) {
			r.Get("/coverage-tolerance", h.GetToleranceSettings)
			r.Put("/coverage-tolerance", h.PutToleranceSettings)
		})

		r.Get("/health", h.Health)
	})

	return r
}
