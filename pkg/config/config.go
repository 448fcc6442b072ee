package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Commerce     CommerceConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Commerce.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery is the duration above which audit ledger statements log at warn.
	SlowQuery time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"500ms"`
}

// UsesSQLite reports whether the audit ledger runs on the embedded sqlite driver.
func (db DBConfig) UsesSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies customer bearer tokens. An empty secret disables
// verification: tokens are still forwarded but no user relation is attached.
type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" default:"storefront"`
	// Audience, when set, is stamped on minted tokens and required on parse.
	Audience string        `envconfig:"STOREFRONT_JWT_AUDIENCE"`
	Leeway   time.Duration `envconfig:"STOREFRONT_JWT_LEEWAY" default:"30s"`
}

func (j JWTConfig) Enabled() bool {
	return strings.TrimSpace(j.Secret) != ""
}

type CommerceConfig struct {
	BaseURL         string        `envconfig:"STOREFRONT_COMMERCE_BASE_URL" required:"true"`
	APIToken        string        `envconfig:"STOREFRONT_COMMERCE_API_TOKEN"`
	Timeout         time.Duration `envconfig:"STOREFRONT_COMMERCE_TIMEOUT" default:"5s"`
	LineItemDelay   time.Duration `envconfig:"STOREFRONT_COMMERCE_LINE_ITEM_DELAY" default:"250ms"`
	LineItemWorkers int           `envconfig:"STOREFRONT_COMMERCE_LINE_ITEM_WORKERS" default:"1"`
	LinkFields      []string      `envconfig:"STOREFRONT_COMMERCE_LINK_FIELDS" default:"order_items,orderItems,items"`

	BreakerMaxFailures uint32        `envconfig:"STOREFRONT_COMMERCE_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"STOREFRONT_COMMERCE_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

func (c CommerceConfig) validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvCommerceTimeout)
	}
	if c.LineItemDelay < 0 {
		return fmt.Errorf("%s must not be negative", EnvCommerceLineItemDelay)
	}
	if c.LineItemWorkers < 1 {
		return fmt.Errorf("%s must be at least 1", EnvCommerceWorkers)
	}
	if len(c.LinkFields) == 0 {
		return fmt.Errorf("%s requires at least one field name", EnvCommerceLinkFields)
	}
	return nil
}

type SquareConfig struct {
	AccessToken string        `envconfig:"STOREFRONT_SQUARE_ACCESS_TOKEN"`
	Env         string        `envconfig:"STOREFRONT_SQUARE_ENV" default:"sandbox"`
	LocationID  string        `envconfig:"STOREFRONT_SQUARE_LOCATION_ID"`
	Currency    string        `envconfig:"STOREFRONT_SQUARE_CURRENCY" default:"USD"`
	Timeout     time.Duration `envconfig:"STOREFRONT_SQUARE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// Enabled reports whether hosted payments can be initiated.
func (s SquareConfig) Enabled() bool {
	return strings.TrimSpace(s.AccessToken) != "" && strings.TrimSpace(s.LocationID) != ""
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

func (g GCPConfig) Enabled() bool {
	return strings.TrimSpace(g.ProjectID) != ""
}

type PubSubConfig struct {
	NotificationTopic string        `envconfig:"STOREFRONT_PUBSUB_NOTIFICATION_TOPIC" default:"storefront-order-events"`
	PublishTimeout    time.Duration `envconfig:"STOREFRONT_PUBSUB_PUBLISH_TIMEOUT" default:"5s"`
	BatchDelay        time.Duration `envconfig:"STOREFRONT_PUBSUB_BATCH_DELAY" default:"50ms"`
	BatchCount        int           `envconfig:"STOREFRONT_PUBSUB_BATCH_COUNT" default:"50"`
}

type BigQueryConfig struct {
	Dataset               string `envconfig:"STOREFRONT_BIGQUERY_DATASET" default:"storefront"`
	CheckoutOutcomesTable string `envconfig:"STOREFRONT_BIGQUERY_CHECKOUT_TABLE" default:"checkout_outcomes"`
}

type CheckoutConfig struct {
	SettingsPath string `envconfig:"STOREFRONT_CHECKOUT_SETTINGS_PATH"`
}

type RateLimitConfig struct {
	OrdersWindow time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_ORDERS_WINDOW" default:"1m"`
	OrdersLimit  int           `envconfig:"STOREFRONT_RATE_LIMIT_ORDERS_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate     bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
	AnalyticsExport bool `envconfig:"STOREFRONT_FEATURE_ANALYTICS_EXPORT" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.UsesSQLite() {
		db.DSN = "file:storefront.db?cache=shared"
		return nil
	}
	return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, db.Driver)
}
