package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/freshmarket/storefront-backend/api/controllers"
	"github.com/freshmarket/storefront-backend/api/routes"
	"github.com/freshmarket/storefront-backend/internal/cart"
	"github.com/freshmarket/storefront-backend/internal/discounts"
	"github.com/freshmarket/storefront-backend/internal/orders"
	"github.com/freshmarket/storefront-backend/internal/pricing"
	products "github.com/freshmarket/storefront-backend/internal/products"
	"github.com/freshmarket/storefront-backend/pkg/auth/session"
	"github.com/freshmarket/storefront-backend/pkg/config"
	"github.com/freshmarket/storefront-backend/pkg/db"
	"github.com/freshmarket/storefront-backend/pkg/instance"
	"github.com/freshmarket/storefront-backend/pkg/logger"
	"github.com/freshmarket/storefront-backend/pkg/metrics"
	"github.com/freshmarket/storefront-backend/pkg/migrate"
	"github.com/freshmarket/storefront-backend/pkg/outbox"
	"github.com/freshmarket/storefront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Instance:    instance.GetID("local"),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api stopped with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	revocations, err := session.NewRevocations(redisClient)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svcs, err := buildServices(cfg, logg, dbClient, registry)
	if err != nil {
		return err
	}

	handler := routes.NewRouter(cfg, logg, routes.Infra{
		Readiness: []controllers.ReadinessCheck{
			{Name: "db", Ping: dbClient.Ping},
			{Name: "redis", Ping: redisClient.Ping},
		},
		Redis:          redisClient,
		Revocations:    revocations,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		HTTPMetrics:    metrics.NewHTTPMetrics(registry),
	}, svcs)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID("local"),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, reg prometheus.Registerer) (routes.Services, error) {
	conn := dbClient.DB()
	policy := pricing.PolicyFromConfig(cfg.Pricing)

	productRepo := products.NewRepository(conn)
	productService, err := products.NewService(productRepo)
	if err != nil {
		return routes.Services{}, err
	}

	cartRepo := cart.NewRepository(conn)
	cartService, err := cart.NewService(cartRepo, productRepo, productRepo, policy)
	if err != nil {
		return routes.Services{}, err
	}

	discountRepo := discounts.NewRepository(conn)
	validator, err := discounts.NewValidator(discountRepo, nil)
	if err != nil {
		return routes.Services{}, err
	}
	discountService, err := discounts.NewService(validator)
	if err != nil {
		return routes.Services{}, err
	}

	orderService, err := orders.NewService(orders.Deps{
		Tx:        dbClient,
		Orders:    orders.NewRepository(conn),
		Carts:     cartRepo,
		Catalog:   orders.NewCatalog(productRepo),
		Discounts: orders.NewDiscountLedger(validator, discountRepo),
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logg),
		Policy:    policy,
		Metrics:   metrics.NewOrderMetrics(reg),
		Logger:    logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Products:    productService,
		Cart:        cartService,
		Discounts:   discountService,
		Orders:      orderService,
		DeadLetters: outbox.NewDLQRepository(conn),
	}, nil
}
