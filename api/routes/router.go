package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/freshmarket/storefront-backend/api/controllers"
	"github.com/freshmarket/storefront-backend/api/middleware"
	"github.com/freshmarket/storefront-backend/internal/cart"
	"github.com/freshmarket/storefront-backend/internal/discounts"
	"github.com/freshmarket/storefront-backend/internal/orders"
	products "github.com/freshmarket/storefront-backend/internal/products"
	pkgauth "github.com/freshmarket/storefront-backend/pkg/auth"
	"github.com/freshmarket/storefront-backend/pkg/auth/session"
	"github.com/freshmarket/storefront-backend/pkg/config"
	"github.com/freshmarket/storefront-backend/pkg/enums"
	"github.com/freshmarket/storefront-backend/pkg/logger"
	"github.com/freshmarket/storefront-backend/pkg/metrics"
	"github.com/freshmarket/storefront-backend/pkg/redis"
)

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Products  products.Service
	Cart      cart.Service
	Discounts discounts.Service
	Orders    orders.Service
	// DeadLetters is optional; nil hides the outbox admin routes.
	DeadLetters controllers.DeadLetters
}

// Infra carries the shared infrastructure the router needs. Redis may be nil,
// which disables rate limiting and idempotency replay. Revocations may be nil,
// which disables the logout endpoint and the signed-out token check.
type Infra struct {
	Readiness      []controllers.ReadinessCheck
	Redis          *redis.Client
	Revocations    *session.Revocations
	MetricsHandler http.Handler
	HTTPMetrics    *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svcs Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, infra.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	passthrough := func(next http.Handler) http.Handler { return next }
	rateLimit := func(policy middleware.RateLimitPolicy) func(http.Handler) http.Handler {
		if infra.Redis == nil {
			return passthrough
		}
		return middleware.RateLimit(policy, infra.Redis, logg)
	}
	idempotent := func(ttl time.Duration) func(http.Handler) http.Handler {
		if infra.Redis == nil {
			return passthrough
		}
		return middleware.Idempotent(infra.Redis, ttl, logg)
	}
	previewPolicy := middleware.NewRateLimitPolicy("discount_preview", cfg.RateLimit.Window, cfg.RateLimit.DiscountPreview)
	trackingPolicy := middleware.NewRateLimitPolicy("order_tracking", cfg.RateLimit.Window, cfg.RateLimit.OrderTracking)

	var revocations session.Checker
	if infra.Revocations != nil {
		revocations = infra.Revocations
	}
	auth := middleware.Auth(pkgauth.NewVerifier(cfg.JWT), revocations, logg)
	cartSession := middleware.CartSession(cfg.Cart, !cfg.App.IsDev(), logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, infra.Readiness...))
	})
	if infra.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", infra.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.ListProducts(svcs.Products, logg))
		r.Get("/products/{productId}", controllers.GetProduct(svcs.Products, logg))
		r.Get("/wholesale-rates", controllers.ListWholesaleRates(svcs.Products, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Use(cartSession)
			r.Get("/", controllers.CartView(svcs.Cart, logg))
			r.Delete("/", controllers.CartClear(svcs.Cart, logg))
			r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
			r.Put("/items/{productId}", controllers.CartSetItem(svcs.Cart, logg))
		})

		if infra.Revocations != nil {
			r.With(auth).Post("/auth/logout", controllers.Logout(infra.Revocations, logg))
		}

		r.With(rateLimit(previewPolicy)).Post("/discounts/validate", controllers.DiscountPreview(svcs.Discounts, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(rateLimit(trackingPolicy)).Get("/track", controllers.TrackOrder(svcs.Orders, logg))

			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.With(cartSession, idempotent(middleware.OrderReplayTTL)).Post("/", controllers.PlaceOrder(svcs.Orders, logg))
				r.Get("/", controllers.ListMyOrders(svcs.Orders, logg))
				r.Get("/{orderId}", controllers.GetMyOrder(svcs.Orders, logg))
				r.With(idempotent(middleware.OrderReplayTTL)).Post("/{orderId}/cancel", controllers.CancelMyOrder(svcs.Orders, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.RequireRole(logg, enums.CustomerRoleAdmin))
		r.With(idempotent(middleware.AdminReplayTTL)).Patch("/orders/{orderId}/status", controllers.AdminUpdateOrderStatus(svcs.Orders, logg))
		if svcs.DeadLetters != nil {
			r.Get("/outbox/dead-letters", controllers.AdminListDeadLetters(svcs.DeadLetters, logg))
			r.Post("/outbox/dead-letters/{eventId}/requeue", controllers.AdminRequeueDeadLetter(svcs.DeadLetters, logg))
		}
	})

	return r
}
