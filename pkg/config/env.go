package config

const (
	EnvPrefix = "FRESHCART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

// Environment variable names referenced outside of struct tags.
const (
	EnvAppEnv   = "FRESHCART_APP_ENV"
	EnvPort     = "FRESHCART_APP_PORT"
	EnvLogLevel = "FRESHCART_LOG_LEVEL"

	EnvDBDSN    = "FRESHCART_DB_DSN"
	EnvDBDriver = "FRESHCART_DB_DRIVER"
	EnvDBHost   = "FRESHCART_DB_HOST"
	EnvDBPort   = "FRESHCART_DB_PORT"
	EnvDBUser   = "FRESHCART_DB_USER"
	EnvDBName   = "FRESHCART_DB_NAME"

	EnvRedisURL = "FRESHCART_REDIS_URL"

	EnvJWTSecret  = "FRESHCART_JWT_SECRET"
	EnvJWTIssuer  = "FRESHCART_JWT_ISSUER"
	EnvJWTExpMins = "FRESHCART_JWT_EXPIRATION_MINUTES"

	EnvShippingFee          = "FRESHCART_SHIPPING_FEE"
	EnvFreeShippingSubtotal = "FRESHCART_FREE_SHIPPING_SUBTOTAL"
	EnvFreeShippingQuantity = "FRESHCART_FREE_SHIPPING_QUANTITY"

	EnvGCPProjectID      = "FRESHCART_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "FRESHCART_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
