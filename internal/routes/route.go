package routes

import (
	"net/http"

	"propsearch-bknd/internal/cache"
	"propsearch-bknd/internal/config"
	"propsearch-bknd/internal/database"
	"propsearch-bknd/internal/handlers"
	"propsearch-bknd/internal/logger"
	"propsearch-bknd/internal/metrics"
	mdlwr "propsearch-bknd/internal/middleware"
	"propsearch-bknd/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/uptrace/bun"
)

func NewRouter(db *bun.DB, c cache.Cache, cfg *config.Config, logr *logger.Logger) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// CORS middleware with config
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Link", "Retry-After"},
		MaxAge:         300,
	}))

	store := database.NewListingsStore(db)
	searchSvc := services.NewSearchService(store, c, cfg, logr.Logger)
	searchHandler := handlers.NewSearchHandler(searchSvc, logr.Logger)

	rateLimitMW := mdlwr.NewRateLimit(
		mdlwr.NewLocalLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		logr.Logger,
	)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("ok"))
		if err != nil {
			return
		}
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimitMW.Handler)

		r.Route("/properties", func(r chi.Router) {
			r.Get("/search", searchHandler.Search)
			r.Get("/search/drilldown", searchHandler.Drilldown)
			r.Get("/{id}", searchHandler.GetProperty)
		})
	})

	return r
}
