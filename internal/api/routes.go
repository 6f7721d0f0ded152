package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// SetupRoutes builds the router. health may be nil.
func SetupRoutes(h *Handlers, health *HealthChecker, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = defaultOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/live", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns/{kind}", func(r chi.Router) {
			r.Post("/uploads", h.HandleUpload)
			r.Get("/reports", h.HandleListReports)
			r.Get("/reports/export", h.HandleExportReports)
			r.Get("/reports/{campaignName}", h.HandleGetReport)
			r.Get("/reports/{campaignName}/metrics", h.HandleMetrics)
			r.Get("/reports/{campaignName}/export", h.HandleExport)
		})
		r.Get("/uploads/{reportID}/progress", h.HandleProgress)
	})

	return r
}
