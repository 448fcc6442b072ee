package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/settings"
	"github.com/angelmondragon/storefront-checkout/pkg/bigquery"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	bigqueryClient bigquery.Pinger,
	httpMetrics *metrics.HTTPMetrics,
	gatherer prometheus.Gatherer,
	settingsProvider settings.Provider,
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		rateLimitStore   middleware.RateLimitStore
	)
	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["db"] = dbP
	}
	if redisClient != nil {
		idempotencyStore = redisClient
		rateLimitStore = redisClient
		readiness["redis"] = redisClient
	}
	if bigqueryClient != nil {
		readiness["bigquery"] = bigqueryClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	ordersPolicy := middleware.NewRateLimitPolicy("orders", cfg.RateLimit.OrdersWindow, cfg.RateLimit.OrdersLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))

		r.Get("/checkout/settings", controllers.CheckoutSettings(settingsProvider, logg))

		r.Group(func(r chi.Router) {
			// Route patterns are resolved inside the group, which the
			// idempotency rules match against.
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.With(middleware.RateLimit(ordersPolicy, rateLimitStore, logg)).
				Post("/orders", controllers.CreateOrder(ordersSvc, settingsProvider, logg))

			r.Post("/payments", controllers.InitiatePayment(paymentsSvc, logg))
			r.Post("/payments/failures", controllers.ReportPaymentFailure(paymentsSvc, logg))
		})
	})

	return r
}
