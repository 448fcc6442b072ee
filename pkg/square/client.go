package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	defaultTimeout = 10 * time.Second
	linkKeyPrefix  = "sf-link"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errLocationRequired    = errors.New("square location id is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// paymentLinkCreator is the slice of the SDK the client drives.
type paymentLinkCreator interface {
	Create(ctx context.Context, request *sqcheckout.CreatePaymentLinkRequest, opts ...sqoption.RequestOption) (*sq.CreatePaymentLinkResponse, error)
}

// Client creates Square hosted checkout links for storefront orders.
type Client struct {
	links      paymentLinkCreator
	env        string
	locationID string
	currency   string
	timeout    time.Duration
	logg       *logger.Logger
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}
	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errLocationRequired
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURLs[env]),
		sqoption.WithToken(accessToken),
	)
	c := newClient(sdk.Checkout.PaymentLinks, env, locationID, cfg.Currency, cfg.Timeout, logg)
	logg.Info(logg.WithFields(ctx, map[string]any{"environment": env, "location_id": locationID}), "square.ready")
	return c, nil
}

func newClient(links paymentLinkCreator, env, locationID, currency string, timeout time.Duration, logg *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		links:      links,
		env:        env,
		locationID: locationID,
		currency:   currency,
		timeout:    timeout,
		logg:       logg,
	}
}

// CreatePaymentLink creates the hosted page the buyer is redirected to. A
// retried call with the same IdempotencyKey returns the same link.
func (c *Client) CreatePaymentLink(ctx context.Context, params PaymentLinkParams) (*PaymentLink, error) {
	if c == nil || c.links == nil {
		return nil, errAccessTokenRequired
	}
	if err := params.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment link request")
	}
	if strings.TrimSpace(params.Currency) == "" {
		params.Currency = c.currency
	}
	key := strings.TrimSpace(params.IdempotencyKey)
	if key == "" {
		key = linkKeyPrefix + "-" + uuid.NewString()
	}

	ctx = c.logg.WithFields(ctx, map[string]any{
		"order_id":     params.OrderID,
		"order_number": params.OrderNumber,
		"amount_cents": params.AmountCents,
		"buyer_email":  maskEmail(params.BuyerEmail),
		"square_env":   c.env,
	})

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.links.Create(callCtx, params.toSquareRequest(c.locationID, key))
	if err != nil {
		mapped := c.mapSquareError(err, "create payment link")
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			mapped = pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "square create payment link timed out")
		}
		c.logg.Error(ctx, "square.payment_link_failed", mapped)
		return nil, mapped
	}

	link := resp.GetPaymentLink()
	if link == nil || stringValue(link.GetURL()) == "" {
		return nil, pkgerrors.New(pkgerrors.CodePayment, "square returned no payment link url")
	}
	out := &PaymentLink{
		ID:      stringValue(link.GetID()),
		URL:     stringValue(link.GetURL()),
		OrderID: stringValue(link.GetOrderID()),
	}
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"payment_link_id": out.ID,
		"square_order_id": out.OrderID,
	}), "square.payment_link_created")
	return out, nil
}

// mapSquareError classifies a gateway failure from the buyer's side: problems
// with the merchant's own credentials or quota are dependency outages, a
// reused key is an idempotency conflict, and the rest are payment errors.
func (c *Client) mapSquareError(err error, op string) error {
	msg := "square " + op + " failed"
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodePayment, err, msg)
	}

	code := codeForStatus(apiErr.StatusCode)
	for _, sqErr := range squareErrors(apiErr) {
		switch {
		case sqErr.Code == sq.ErrorCodeIdempotencyKeyReused:
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, msg)
		case sqErr.Category == sq.ErrorCategoryAuthenticationError:
			code = pkgerrors.CodeDependency
		}
	}
	return pkgerrors.Wrap(code, err, msg).WithDetails(map[string]any{"square_status": apiErr.StatusCode})
}

// squareErrors decodes the {"errors":[...]} body the SDK keeps as the
// wrapped error text.
func squareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(inner.Error())), &payload); err != nil {
		return nil
	}
	out := payload.Errors[:0]
	for _, e := range payload.Errors {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return pkgerrors.CodeDependency
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return pkgerrors.CodeTimeout
	default:
		return pkgerrors.CodePayment
	}
}

// maskEmail keeps the domain and first letter for support lookups.
func maskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 1 {
		return ""
	}
	return email[:1] + "***" + email[at:]
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		return sandboxEnv, nil
	}
	if _, ok := baseURLs[env]; !ok {
		return "", errInvalidSquareEnv
	}
	return env, nil
}
