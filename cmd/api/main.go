package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nvalerio/storefront-api/internal/config"
	"github.com/nvalerio/storefront-api/internal/postgres"
	"github.com/nvalerio/storefront-api/pkg/cache"
	"github.com/nvalerio/storefront-api/pkg/logging"
	"github.com/nvalerio/storefront-api/pkg/outbox"
	"github.com/nvalerio/storefront-api/pkg/shutdown"
	"github.com/nvalerio/storefront-api/pkg/tracing"

	authapp "github.com/nvalerio/storefront-api/internal/auth/application"
	authhttp "github.com/nvalerio/storefront-api/internal/auth/infrastructure/http"
	authpg "github.com/nvalerio/storefront-api/internal/auth/infrastructure/postgres"
	catalogapp "github.com/nvalerio/storefront-api/internal/catalog/application"
	cataloghttp "github.com/nvalerio/storefront-api/internal/catalog/infrastructure/http"
	catalogpg "github.com/nvalerio/storefront-api/internal/catalog/infrastructure/postgres"
	orderapp "github.com/nvalerio/storefront-api/internal/order/application"
	orderhttp "github.com/nvalerio/storefront-api/internal/order/infrastructure/http"
	orderkafka "github.com/nvalerio/storefront-api/internal/order/infrastructure/kafka"
	orderpg "github.com/nvalerio/storefront-api/internal/order/infrastructure/postgres"
)

func main() {
	log := logging.New()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg := config.Load()

	tp, err := tracing.Init(ctx, "storefront-api", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	// Postgres setup
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Error("pg migrate failed", "err", err)
		os.Exit(1)
	}

	// Redis product cache
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()
	productCache := cache.NewRedisCache(rdb, "catalog")

	// Kafka producer + outbox relay
	writer := orderkafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	outboxStore := orderpg.NewOutboxStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
	relay := outbox.NewRelay(log, outboxStore, dispatch, "storefront-relay-"+uuid.NewString())

	// Services
	authSvc := authapp.NewService(log, authpg.NewUserRepository(log, pool), authpg.NewTokenRepository(log, pool), cfg.TokenTTL)
	catalogRepo := catalogpg.NewRepository(log, pool)
	catalogSvc := catalogapp.NewService(log, catalogRepo, productCache, cfg.ProductCacheTTL)
	orderSvc := orderapp.NewService(log, orderpg.NewUnitOfWork(log, pool), orderpg.NewRepository(log, pool))

	// Handlers
	authH := authhttp.NewHandler(log, authSvc)
	catalogH := cataloghttp.NewHandler(log, catalogSvc)
	orderH := orderhttp.NewHandler(log, orderSvc, catalogRepo)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      newRouter(authH, catalogH, orderH),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("storefront-api shutdown complete")
}

func newRouter(authH *authhttp.Handler, catalogH *cataloghttp.Handler, orderH *orderhttp.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Post("/register", authH.Register)
	r.Post("/login", authH.Login)
	r.Get("/products", catalogH.List)
	r.Get("/products/{id}", catalogH.Get)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(authH.Authenticate)

		r.Post("/logout", authH.Logout)
		r.Get("/user", authH.CurrentUser)

		r.Get("/orders", orderH.List)
		r.Post("/orders", orderH.Create)
		r.Get("/orders/{id}", orderH.Get)

		// Admin only
		r.Group(func(r chi.Router) {
			r.Use(authhttp.RequireAdmin)

			r.Post("/products", catalogH.Create)
			r.Put("/products/{id}", catalogH.Update)
			r.Patch("/products/{id}", catalogH.Update)
			r.Delete("/products/{id}", catalogH.Delete)
		})
	})

	return r
}
