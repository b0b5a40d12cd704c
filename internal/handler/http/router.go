package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/shop-service/internal/metrics"
)

type Handlers struct {
	Users   *UserHandler
	Catalog *CatalogHandler
	Carts   *CartHandler
	Orders  *OrderHandler
}

// RouterConfig wires the handlers together. Authn rejects unauthenticated
// requests and stores the caller in the request context. Ping backs /health;
// when nil the service always reports healthy.
type RouterConfig struct {
	Handlers Handlers
	Authn    func(http.Handler) http.Handler
	Metrics  *metrics.Metrics
	Ping     func(ctx context.Context) error
}

func NewRouter(cfg RouterConfig) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware)
		router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	router.Get("/health", healthHandler(cfg.Ping))

	h := cfg.Handlers
	h.Users.RegisterRoutes(router, cfg.Authn)
	h.Catalog.RegisterRoutes(router, cfg.Authn)
	h.Carts.RegisterRoutes(router, cfg.Authn)
	h.Orders.RegisterRoutes(router, cfg.Authn)

	return router
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				log.Error().Err(err).Msg("Health check failed")
				respondWithError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
