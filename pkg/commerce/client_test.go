package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL + "/api"
	opts.HTTPClient = srv.Client()
	client, err := New(opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return client
}

func TestCreateOrderNormalizesNumericID(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"data":{"id":42,"attributes":{"orderNumber":"TS-250101001"}}}`))
	}, Options{APIToken: "service-token"})

	id, err := client.CreateOrder(context.Background(), map[string]any{"orderNumber": "TS-250101001"})
	if err != nil {
		t.Fatalf("CreateOrder() error: %v", err)
	}
	if id != "42" {
		t.Fatalf("expected id 42, got %q", id)
	}
	if gotAuth != "Bearer service-token" {
		t.Fatalf("expected service token, got %q", gotAuth)
	}
	data, ok := gotBody["data"].(map[string]any)
	if !ok || data["orderNumber"] != "TS-250101001" {
		t.Fatalf("expected payload wrapped in data, got %v", gotBody)
	}
}

func TestCustomerTokenOverridesServiceToken(t *testing.T) {
	t.Parallel()

	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":{"id":"abc"}}`))
	}, Options{APIToken: "service-token"})

	ctx := WithBearerToken(context.Background(), "customer-token")
	if _, err := client.CreateOrderItem(ctx, map[string]any{}); err != nil {
		t.Fatalf("CreateOrderItem() error: %v", err)
	}
	if gotAuth != "Bearer customer-token" {
		t.Fatalf("expected customer token, got %q", gotAuth)
	}
}

func TestRejectedRequestMapsToDependencyError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid key product"}}`))
	}, Options{})

	_, err := client.CreateOrderItem(context.Background(), map[string]any{"product": "1"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %s", code)
	}
}

func TestTimeoutIsReportedAsFailure(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, Options{Timeout: 20 * time.Millisecond})
	defer close(release)

	_, err := client.CreateOrder(context.Background(), map[string]any{})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeTimeout {
		t.Fatalf("expected timeout code, got %s (%v)", code, err)
	}
}

func TestBreakerIgnoresRejections(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}, Options{BreakerMaxFailures: 2})

	for i := 0; i < 5; i++ {
		_, _ = client.CreateOrderItem(context.Background(), map[string]any{})
	}
	if got := calls.Load(); got != 5 {
		t.Fatalf("expected every rejected call to reach the backend, got %d", got)
	}
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, Options{BreakerMaxFailures: 2, BreakerOpenTimeout: time.Minute})

	for i := 0; i < 5; i++ {
		_, _ = client.CreateOrder(context.Background(), map[string]any{})
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected breaker to stop calls after 2 failures, got %d", got)
	}

	_, err := client.CreateOrder(context.Background(), map[string]any{})
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeDependency {
		t.Fatalf("expected open breaker to surface as dependency error, got %s", code)
	}
}

func TestProductSizesReadsPopulatedRelation(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/products/7" || r.URL.Query().Get("populate") != "sizes" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"data":{"id":7,"attributes":{"sizes":{"data":[{"id":1,"attributes":{"value":"S"}},{"id":2,"attributes":{"value":"M"}}]}}}}`))
	}, Options{})

	sizes, err := client.ProductSizes(context.Background(), "7")
	if err != nil {
		t.Fatalf("ProductSizes() error: %v", err)
	}
	if len(sizes) != 2 || sizes[1].ID != "2" || sizes[1].Value != "M" {
		t.Fatalf("unexpected sizes %+v", sizes)
	}
}

func TestFindSizesFiltersByValue(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filters[value]"); got != "XL" {
			t.Errorf("expected filter XL, got %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"9","value":"XL"}]}`))
	}, Options{})

	sizes, err := client.FindSizes(context.Background(), "XL")
	if err != nil {
		t.Fatalf("FindSizes() error: %v", err)
	}
	if len(sizes) != 1 || sizes[0].ID != "9" {
		t.Fatalf("unexpected sizes %+v", sizes)
	}
}

func TestGetOrderPopulate(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("populate") != "items" {
			t.Errorf("expected populate=items, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"data":{"id":3,"items":[{"id":10},{"id":11}]}}`))
	}, Options{})

	rec, err := client.GetOrder(context.Background(), "3", "items")
	if err != nil {
		t.Fatalf("GetOrder() error: %v", err)
	}
	if got := len(rec.Relation("items")); got != 2 {
		t.Fatalf("expected 2 related items, got %d", got)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without base url")
	}
}
