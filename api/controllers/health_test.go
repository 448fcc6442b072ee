package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/storefront-checkout/internal/settings"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

func TestHealthLive(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	rec := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Storefront-Env"); got != "dev" {
		t.Fatalf("unexpected env header %q", got)
	}
}

func TestHealthReady(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	tests := []struct {
		name   string
		deps   map[string]Pinger
		status int
	}{
		{name: "all healthy", deps: map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{}}, status: http.StatusOK},
		{name: "optional skipped", deps: map[string]Pinger{"db": stubPinger{}, "bigquery": nil}, status: http.StatusOK},
		{name: "redis down", deps: map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{err: errors.New("refused")}}, status: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		HealthReady(cfg, logger.Nop(), tt.deps).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		if rec.Code != tt.status {
			t.Fatalf("%s: expected %d, got %d", tt.name, tt.status, rec.Code)
		}
	}
}

func TestCheckoutSettingsServesCatalog(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	CheckoutSettings(defaultProvider(t), logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/checkout/settings", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var catalog settings.Catalog
	decodeData(t, rec.Body.Bytes(), &catalog)
	if catalog.FreeDeliveryThresholdCents != 5000 || len(catalog.DeliveryMethods) == 0 {
		t.Fatalf("unexpected catalog %+v", catalog)
	}
	if _, ok := catalog.PaymentMethod("card_online"); !ok {
		t.Fatalf("expected hosted method in catalog")
	}
}

func TestPingAllReportsEachDependency(t *testing.T) {
	t.Parallel()

	checks, failed := pingAll(context.Background(), map[string]Pinger{
		"db":     stubPinger{},
		"redis":  stubPinger{err: errors.New("refused")},
		"pubsub": nil,
	})
	if !failed {
		t.Fatalf("expected failure to be reported")
	}
	if checks["db"] != "ok" || checks["redis"] != "refused" {
		t.Fatalf("unexpected checks %v", checks)
	}
	if _, ok := checks["pubsub"]; ok {
		t.Fatalf("nil pinger should be skipped, got %v", checks)
	}
}
