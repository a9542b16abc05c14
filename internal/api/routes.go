package api

import (
	"net/http"

	"stockpulse/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)
	r.Use(middleware.Timeout(cfg.AnalysisTimeout() + cfg.LLMTimeout()))
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)

	// Root routes
	r.Get("/", h.HandleIndex)
	r.Get("/index.html", h.HandleIndex)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(UserMiddleware)

		r.Get("/health", h.HandleHealth)
		r.Get("/search", h.HandleSearch)

		// Analysis
		r.Post("/analyze", h.HandleAnalyzeStock)
		r.Route("/stocks/{symbol}", func(r chi.Router) {
			r.Get("/quote", h.HandleGetQuote)
			r.Get("/analysis", h.HandleGetAnalysis)
			r.Post("/notify", h.HandleShareReport)
		})

		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", h.HandleGetWatchlist)
			r.Get("/summary", h.HandleWatchlistSummary)
			r.Post("/", h.HandleAddToWatchlist)
			r.Delete("/{symbol}", h.HandleRemoveFromWatchlist)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.HandleGetAlerts)
			r.Post("/", h.HandleCreateAlert)
			r.Delete("/{id}", h.HandleCancelAlert)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", h.HandleGetNotes)
			r.Post("/", h.HandleCreateNote)
			r.Put("/{id}", h.HandleUpdateNote)
			r.Delete("/{id}", h.HandleDeleteNote)
		})
	})

	return r
}
