package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/settings"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	defaultAPITimeout = 30 * time.Second
	idempotencyHeader = "Idempotency-Key"
	requestIDHeader   = "X-Request-Id"
	maxAPIBodyBytes   = 1 << 20
)

// OrderRequest is the immutable submission snapshot sent to the API.
type OrderRequest struct {
	OrderNumber      string             `json:"order_number"`
	Customer         orders.Customer    `json:"customer"`
	DeliveryMethodID string             `json:"delivery_method_id"`
	PaymentMethodID  string             `json:"payment_method_id"`
	DeliveryAddress  string             `json:"delivery_address,omitempty"`
	Notes            string             `json:"notes,omitempty"`
	PromoCode        string             `json:"promo_code,omitempty"`
	Lines            []pricing.CartLine `json:"lines"`
	Totals           pricing.Breakdown  `json:"totals"`
}

type LineSummary struct {
	Created  int `json:"created"`
	Degraded int `json:"degraded"`
	Dropped  int `json:"dropped"`
}

// OrderReceipt is the API's answer to a created order.
type OrderReceipt struct {
	OrderID       string            `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	Lines         LineSummary       `json:"lines"`
	Linked        bool              `json:"linked"`
	LinkStrategy  string            `json:"link_strategy,omitempty"`
	Verified      bool              `json:"verified"`
	PaymentStatus string            `json:"payment_status"`
	Totals        pricing.Breakdown `json:"totals"`
}

type PaymentLine struct {
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type PaymentRequest struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	AmountCents int64           `json:"amount_cents"`
	Customer    orders.Customer `json:"customer"`
	Description string          `json:"description,omitempty"`
	ReturnURL   string          `json:"return_url"`
	LineItems   []PaymentLine   `json:"line_items,omitempty"`
}

// PaymentRedirect carries the hosted checkout page the buyer is sent to.
type PaymentRedirect struct {
	PaymentID       string `json:"payment_id"`
	ConfirmationURL string `json:"confirmation_url"`
}

type PaymentFailure struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number,omitempty"`
	Reason      string `json:"reason"`
}

// APIClient calls the storefront API on behalf of the buyer. It also serves
// the checkout catalog, so it can back a settings.SessionProvider.
type APIClient struct {
	baseURL *url.URL
	token   string
	timeout time.Duration
	http    *http.Client
	logger  *logger.Logger
}

func NewAPIClient(cfg config.ClientConfig, httpClient *http.Client, logg *logger.Logger) (*APIClient, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if raw == "" {
		return nil, errors.New("api base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing api base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &APIClient{
		baseURL: base,
		token:   strings.TrimSpace(cfg.BearerToken),
		timeout: timeout,
		http:    httpClient,
		logger:  logg,
	}, nil
}

func (c *APIClient) Catalog(ctx context.Context) (*settings.Catalog, error) {
	var catalog settings.Catalog
	if err := c.call(ctx, http.MethodGet, "/api/v1/checkout/settings", "", nil, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

func (c *APIClient) CreateOrder(ctx context.Context, req OrderRequest, idempotencyKey string) (*OrderReceipt, error) {
	var receipt OrderReceipt
	if err := c.call(ctx, http.MethodPost, "/api/v1/orders", idempotencyKey, req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *APIClient) InitiatePayment(ctx context.Context, req PaymentRequest, idempotencyKey string) (*PaymentRedirect, error) {
	var redirect PaymentRedirect
	if err := c.call(ctx, http.MethodPost, "/api/v1/payments", idempotencyKey, req, &redirect); err != nil {
		return nil, err
	}
	return &redirect, nil
}

func (c *APIClient) ReportPaymentFailure(ctx context.Context, failure PaymentFailure, idempotencyKey string) error {
	return c.call(ctx, http.MethodPost, "/api/v1/payments/failures", idempotencyKey, failure, nil)
}

func (c *APIClient) call(ctx context.Context, method, path, idempotencyKey string, payload, dest any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s payload: %w", path, err)
		}
		body = bytes.NewReader(encoded)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	logCtx := c.logger.WithFields(ctx, map[string]any{
		"method":      method,
		"path":        path,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, fmt.Sprintf("%s %s timed out", method, path))
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s failed", method, path))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBodyBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, fmt.Sprintf("%s %s timed out", method, path))
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading api response")
	}
	logCtx = c.logger.WithFields(logCtx, map[string]any{
		"status":     resp.StatusCode,
		"request_id": resp.Header.Get(requestIDHeader),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp.StatusCode, raw)
		c.logger.Debug(c.logger.WithField(logCtx, "error", apiErr.Error()), "checkout.api.failed")
		return apiErr
	}
	c.logger.Debug(logCtx, "checkout.api.ok")

	if dest == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding api envelope")
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding api response")
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details any    `json:"details"`
		} `json:"error"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
		// Bare 5xx bodies come from proxies in front of the api, not from it.
		code := pkgerrors.CodeDependency
		if status < 500 {
			code = pkgerrors.CodeForStatus(status)
		}
		return pkgerrors.New(code, fmt.Sprintf("api returned %d", status)).
			WithDetails(map[string]any{"status": status})
	}
	details := map[string]any{"status": status}
	if envelope.RequestID != "" {
		details["request_id"] = envelope.RequestID
	}
	if envelope.Error.Details != nil {
		details["details"] = envelope.Error.Details
	}
	return pkgerrors.New(pkgerrors.Code(envelope.Error.Code), envelope.Error.Message).WithDetails(details)
}
