package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names shared by the binaries and tests.
const (
	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN    = "STOREFRONT_DB_DSN"
	EnvDBDriver = "STOREFRONT_DB_DRIVER"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvCommerceBaseURL       = "STOREFRONT_COMMERCE_BASE_URL"
	EnvCommerceAPIToken      = "STOREFRONT_COMMERCE_API_TOKEN"
	EnvCommerceTimeout       = "STOREFRONT_COMMERCE_TIMEOUT"
	EnvCommerceLineItemDelay = "STOREFRONT_COMMERCE_LINE_ITEM_DELAY"
	EnvCommerceWorkers       = "STOREFRONT_COMMERCE_LINE_ITEM_WORKERS"
	EnvCommerceLinkFields    = "STOREFRONT_COMMERCE_LINK_FIELDS"

	EnvSquareAccessToken = "STOREFRONT_SQUARE_ACCESS_TOKEN"
	EnvSquareEnv         = "STOREFRONT_SQUARE_ENV"
	EnvSquareLocationID  = "STOREFRONT_SQUARE_LOCATION_ID"

	EnvGCPProjectID            = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubNotificationTopic = "STOREFRONT_PUBSUB_NOTIFICATION_TOPIC"

	EnvSettingsPath = "STOREFRONT_CHECKOUT_SETTINGS_PATH"

	EnvClientAPIURL    = "STOREFRONT_CLIENT_API_URL"
	EnvClientTimeout   = "STOREFRONT_CLIENT_TIMEOUT"
	EnvClientReturnURL = "STOREFRONT_CLIENT_RETURN_URL"
	EnvClientToken     = "STOREFRONT_CLIENT_BEARER_TOKEN"
)
