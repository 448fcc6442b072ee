package commerce

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

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	defaultTimeout      = 5 * time.Second
	maxErrorBodyBytes   = 2048
	breakerName         = "commerce"
	defaultMaxFailures  = 5
	defaultBreakerSleep = 30 * time.Second
)

var (
	errBaseURLRequired = errors.New("commerce base url is required")
	errIDMissing       = errors.New("commerce response did not include an id")
)

// Client talks to the headless commerce backend's REST surface. Every call
// carries its own timeout and runs through a circuit breaker; only transport
// errors and 5xx/429 responses count against the breaker.
type Client struct {
	baseURL *url.URL
	token   string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *logger.Logger
}

// Options configures a Client. HTTPClient defaults to an otelhttp-instrumented client.
type Options struct {
	BaseURL            string
	APIToken           string
	Timeout            time.Duration
	HTTPClient         *http.Client
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
	Logger             *logger.Logger
}

// NewClient builds a client from the service configuration.
func NewClient(cfg config.CommerceConfig, logg *logger.Logger) (*Client, error) {
	return New(Options{
		BaseURL:            cfg.BaseURL,
		APIToken:           cfg.APIToken,
		Timeout:            cfg.Timeout,
		BreakerMaxFailures: cfg.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
		Logger:             logg,
	})
}

func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errBaseURLRequired
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing commerce base url: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	maxFailures := opts.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	openTimeout := opts.BreakerOpenTimeout
	if openTimeout <= 0 {
		openTimeout = defaultBreakerSleep
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	c := &Client{
		baseURL: base,
		token:   strings.TrimSpace(opts.APIToken),
		timeout: timeout,
		http:    httpClient,
		logger:  logg,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "commerce.breaker.state_change")
		},
	})
	return c, nil
}

// CreateOrder posts an order header and returns the backend id.
func (c *Client) CreateOrder(ctx context.Context, attrs map[string]any) (string, error) {
	return c.create(ctx, "/orders", attrs)
}

// CreateOrderItem posts one line item and returns the backend id.
func (c *Client) CreateOrderItem(ctx context.Context, attrs map[string]any) (string, error) {
	return c.create(ctx, "/order-items", attrs)
}

// UpdateOrder sends a partial update for the order.
func (c *Client) UpdateOrder(ctx context.Context, orderID string, attrs map[string]any) error {
	path := "/orders/" + url.PathEscape(orderID)
	_, err := c.do(ctx, http.MethodPut, path, nil, map[string]any{"data": attrs})
	return err
}

// GetOrder reads an order, expanding the given relation when populate is set.
func (c *Client) GetOrder(ctx context.Context, orderID, populate string) (Record, error) {
	query := url.Values{}
	if populate != "" {
		query.Set("populate", populate)
	}
	body, err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), query, nil)
	if err != nil {
		return nil, err
	}
	return decodeRecord(body)
}

// ProductSizes returns the sizes associated with a product.
func (c *Client) ProductSizes(ctx context.Context, productID string) ([]Size, error) {
	query := url.Values{"populate": []string{"sizes"}}
	body, err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(productID), query, nil)
	if err != nil {
		return nil, err
	}
	product, err := decodeRecord(body)
	if err != nil {
		return nil, err
	}
	return sizesFrom(product.Relation("sizes")), nil
}

// FindSizes queries the global size catalog for an exact label.
func (c *Client) FindSizes(ctx context.Context, label string) ([]Size, error) {
	query := url.Values{"filters[value]": []string{label}}
	body, err := c.do(ctx, http.MethodGet, "/sizes", query, nil)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(body)
	if err != nil {
		return nil, err
	}
	return sizesFrom(records), nil
}

func (c *Client) create(ctx context.Context, path string, attrs map[string]any) (string, error) {
	body, err := c.do(ctx, http.MethodPost, path, nil, map[string]any{"data": attrs})
	if err != nil {
		return "", err
	}
	rec, err := decodeRecord(body)
	if err != nil {
		return "", err
	}
	id := rec.ID()
	if id == "" {
		return "", mapError(errIDMissing, http.MethodPost, path)
	}
	return id, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding commerce payload: %w", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(callCtx, method, path, query, encoded)
	})

	logCtx := c.logger.WithFields(ctx, map[string]any{
		"method":      method,
		"path":        path,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		mapped := mapError(err, method, path)
		c.logger.Debug(c.logger.WithField(logCtx, "error", mapped.Error()), "commerce.request.failed")
		return nil, mapped
	}
	c.logger.Debug(logCtx, "commerce.request.ok")
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, encoded []byte) ([]byte, error) {
	target := *c.baseURL
	target.Path = strings.TrimRight(target.Path, "/") + path
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if encoded != nil {
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("building commerce request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if encoded != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearerFor(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading commerce response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBodyBytes {
			body = body[:maxErrorBodyBytes]
		}
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) bearerFor(ctx context.Context) string {
	if token := BearerTokenFromContext(ctx); token != "" {
		return token
	}
	return c.token
}

func decodeRecord(body []byte) (Record, error) {
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := decodeJSON(body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Data == nil {
		return Record{}, nil
	}
	return Record(envelope.Data), nil
}

func decodeRecords(body []byte) ([]Record, error) {
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := decodeJSON(body, &envelope); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		out = append(out, Record(item))
	}
	return out, nil
}

func decodeJSON(body []byte, dest any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decoding commerce response: %w", err)
	}
	return nil
}
