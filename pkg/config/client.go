package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ClientConfig drives the checkout CLI, which plays the browser's role
// against the storefront API.
type ClientConfig struct {
	APIBaseURL        string        `envconfig:"STOREFRONT_CLIENT_API_URL" default:"http://localhost:8080"`
	Timeout           time.Duration `envconfig:"STOREFRONT_CLIENT_TIMEOUT" default:"30s"`
	ReturnURL         string        `envconfig:"STOREFRONT_CLIENT_RETURN_URL" default:"http://localhost:3000/checkout/complete"`
	CartPath          string        `envconfig:"STOREFRONT_CLIENT_CART_PATH" default:"cart.json"`
	BearerToken       string        `envconfig:"STOREFRONT_CLIENT_BEARER_TOKEN"`
	OrderNumberPrefix string        `envconfig:"STOREFRONT_CLIENT_ORDER_PREFIX" default:"TS"`
	LogLevel          string        `envconfig:"STOREFRONT_LOG_LEVEL" default:"warn"`
}

func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("%s is required", EnvClientAPIURL)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvClientTimeout)
	}
	return &cfg, nil
}
