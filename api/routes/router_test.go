package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/settings"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type countingOrders struct {
	calls int
}

func (c *countingOrders) CreateOrder(_ context.Context, header orders.OrderHeader, _ []pricing.CartLine) (*orders.Result, error) {
	c.calls++
	return &orders.Result{
		OrderID:     "42",
		OrderNumber: header.OrderNumber,
		Lines:       []orders.LineResult{{Outcome: orders.LineCreated, ItemID: "i1"}},
	}, nil
}

type stubPayments struct{}

func (stubPayments) Initiate(context.Context, payments.Request) (*payments.Result, error) {
	return &payments.Result{PaymentID: "pl_1", ConfirmationURL: "https://square.link/u/abc"}, nil
}

func (stubPayments) ReportFailure(context.Context, string, string, string) error {
	return nil
}

type routerFixture struct {
	handler http.Handler
	orders  *countingOrders
}

func newRouterFixture(t *testing.T, ordersLimit int) routerFixture {
	t.Helper()

	srv := miniredis.RunT(t)
	redisClient := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = redisClient.Close() })

	provider, err := settings.NewFileProvider("")
	if err != nil {
		t.Fatalf("NewFileProvider() error: %v", err)
	}

	cfg := &config.Config{
		App:       config.AppConfig{Env: "dev"},
		RateLimit: config.RateLimitConfig{OrdersWindow: time.Minute, OrdersLimit: ordersLimit},
	}
	reg := prometheus.NewRegistry()
	ordersSvc := &countingOrders{}
	handler := NewRouter(
		cfg,
		logger.Nop(),
		stubPinger{},
		redisClient,
		nil,
		metrics.NewHTTPMetrics(reg),
		reg,
		provider,
		ordersSvc,
		stubPayments{},
	)
	return routerFixture{handler: handler, orders: ordersSvc}
}

const orderBody = `{
  "order_number": "TS-250101001",
  "customer": {"name": "Ana", "phone": "+15550102000"},
  "delivery_method_id": "courier",
  "payment_method_id": "cash",
  "lines": [{"product_id": "p1", "product_name": "Tee", "quantity": 2, "unit_price_cents": 1000}]
}`

func postOrder(handler http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(orderBody))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	fx := newRouterFixture(t, 10)

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		fx.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestOrdersRequireIdempotencyKey(t *testing.T) {
	fx := newRouterFixture(t, 10)

	if rec := postOrder(fx.handler, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without key, got %d", rec.Code)
	}
	if fx.orders.calls != 0 {
		t.Fatalf("expected no order created")
	}
}

func TestOrdersReplayUnderSameKey(t *testing.T) {
	fx := newRouterFixture(t, 10)

	first := postOrder(fx.handler, "attempt-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	second := postOrder(fx.handler, "attempt-1")
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("expected identical replay body")
	}
	if fx.orders.calls != 1 {
		t.Fatalf("expected a single order, got %d", fx.orders.calls)
	}

	if rec := postOrder(fx.handler, "attempt-2"); rec.Code != http.StatusCreated {
		t.Fatalf("expected new attempt to create, got %d", rec.Code)
	}
	if fx.orders.calls != 2 {
		t.Fatalf("expected second order for new attempt, got %d", fx.orders.calls)
	}
}

func TestOrdersRateLimited(t *testing.T) {
	fx := newRouterFixture(t, 1)

	if rec := postOrder(fx.handler, "a"); rec.Code != http.StatusCreated {
		t.Fatalf("expected first order created, got %d", rec.Code)
	}
	if rec := postOrder(fx.handler, "b"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestPaymentsAndSettingsRoutes(t *testing.T) {
	fx := newRouterFixture(t, 10)

	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/checkout/settings", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("settings: expected 200, got %d", rec.Code)
	}

	body := `{"order_id":"42","order_number":"TS-250101001","amount_cents":2300,"customer":{"name":"Ana","phone":"+15550102000"},"return_url":"https://shop.test/done"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "pay-1")
	rec = httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("payments: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "https://square.link/u/abc") {
		t.Fatalf("expected confirmation url in body, got %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	fx := newRouterFixture(t, 10)

	fx.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/health/live") {
		t.Fatalf("expected route label in metrics output")
	}
}
