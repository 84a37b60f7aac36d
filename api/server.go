/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        Client address behind proxies
  3. RequestLogger: slog request logging + Prometheus request metrics
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for a browser frontend

ROUTE GROUPS:
  /api/sections/*   Section ledgers (records, categories, summary, files)
  /healthz          Liveness
  /metrics          Prometheus exposition

SECURITY NOTE:
  No authentication middleware. The X-Ledger-User header is trusted as-is.

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
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", UserHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Method("GET", "/metrics", h.Metrics.Handler())

	r.Route("/api/sections", func(r chi.Router) {
		r.Get("/", h.ListSections)

		r.Route("/{section}", func(r chi.Router) {
			r.Get("/records", h.ListRecords)
			r.Post("/records", h.CreateRecord)
			r.Put("/records/{id}", h.UpdateRecord)
			r.Delete("/records/{id}", h.DeleteRecord)

			r.Get("/categories", h.ListCategories)
			r.Post("/categories", h.AddCategory)

			r.Get("/summary", h.GetSummary)

			r.Post("/import", h.ImportRecords)
			r.Get("/export", h.ExportRecords)
		})
	})

	return r
}
