package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vasiliy-maslov/shop-service/internal/auth"
	"github.com/vasiliy-maslov/shop-service/internal/cache"
	"github.com/vasiliy-maslov/shop-service/internal/cart"
	"github.com/vasiliy-maslov/shop-service/internal/catalog"
	"github.com/vasiliy-maslov/shop-service/internal/config"
	"github.com/vasiliy-maslov/shop-service/internal/db"
	handler "github.com/vasiliy-maslov/shop-service/internal/handler/http"
	"github.com/vasiliy-maslov/shop-service/internal/metrics"
	"github.com/vasiliy-maslov/shop-service/internal/order"
	"github.com/vasiliy-maslov/shop-service/internal/payment"
	"github.com/vasiliy-maslov/shop-service/internal/user"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log.Info().Msg("Shop service starting...")

	ctx := context.Background()

	if migrateOnStart {
		if err := db.Migrate(ctx, cfg.Postgres, true); err != nil {
			return err
		}
	}

	dbConn, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	catalogCache, closeCache := newCatalogCache(ctx, cfg)
	defer closeCache()

	txManager := db.NewTxManager(dbConn.Pool)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	m := metrics.New()

	catalogRepo := catalog.NewRepository(dbConn.Pool)
	orderRepo := order.NewRepository(dbConn.Pool)

	userService := user.NewService(user.NewRepository(dbConn.Pool), txManager, tokens)
	catalogService := catalog.NewService(catalogRepo, catalogCache)
	cartService := cart.NewService(cart.NewRepository(dbConn.Pool), catalogRepo, txManager)
	orderService := order.NewService(orderRepo, catalogRepo, userService, cartService, txManager, order.WithMetrics(m))
	paymentService := payment.NewService(payment.NewRepository(dbConn.Pool), orderRepo, txManager, m)

	router := handler.NewRouter(handler.RouterConfig{
		Handlers: handler.Handlers{
			Users:   handler.NewUserHandler(userService),
			Catalog: handler.NewCatalogHandler(catalogService),
			Carts:   handler.NewCartHandler(cartService),
			Orders:  handler.NewOrderHandler(orderService, paymentService),
		},
		Authn:   tokens.Middleware,
		Metrics: m,
		Ping:    dbConn.Pool.Ping,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}

// newCatalogCache returns a Redis-backed cache when REDIS_ADDR is set. An
// unreachable Redis is logged and replaced by a no-op cache.
func newCatalogCache(ctx context.Context, cfg *config.Config) (cache.Cache, func()) {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("Redis not configured, catalog cache disabled")
		return cache.Noop(), func() {}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, rdb, err := cache.NewRedis(pingCtx, cfg.Redis, cfg.App.Name)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, catalog cache disabled")
		return cache.Noop(), func() {}
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	return c, func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}
