package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Pricing      PricingConfig
	Cart         CartConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FRESHCART_APP_ENV" required:"true"`
	Port         string `envconfig:"FRESHCART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FRESHCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FRESHCART_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated list of storefront origins.
	CORSOrigins []string `envconfig:"FRESHCART_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FRESHCART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FRESHCART_DB_DSN"`
	Driver string `envconfig:"FRESHCART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FRESHCART_DB_HOST"`
	LegacyPort     int    `envconfig:"FRESHCART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FRESHCART_DB_USER"`
	LegacyPassword string `envconfig:"FRESHCART_DB_PASSWORD"`
	LegacyName     string `envconfig:"FRESHCART_DB_NAME"`
	LegacySSLMode  string `envconfig:"FRESHCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FRESHCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FRESHCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FRESHCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FRESHCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which a statement is logged at warn level.
	SlowQuery time.Duration `envconfig:"FRESHCART_DB_SLOW_QUERY" default:"250ms"`
}

// IsSQLite reports whether the local sqlite driver was requested.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"FRESHCART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FRESHCART_REDIS_ADDR"`
	Password     string        `envconfig:"FRESHCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"FRESHCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FRESHCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FRESHCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FRESHCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FRESHCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FRESHCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FRESHCART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FRESHCART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FRESHCART_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PricingConfig holds the shipping policy. Amounts are decimal strings in store currency.
type PricingConfig struct {
	ShippingFee          string `envconfig:"FRESHCART_SHIPPING_FEE" default:"40"`
	FreeShippingSubtotal string `envconfig:"FRESHCART_FREE_SHIPPING_SUBTOTAL" default:"1000"`
	FreeShippingQuantity int    `envconfig:"FRESHCART_FREE_SHIPPING_QUANTITY" default:"20"`
}

// ShippingFeeAmount parses the flat shipping fee.
func (p PricingConfig) ShippingFeeAmount() decimal.Decimal {
	return parseAmount(p.ShippingFee)
}

// FreeShippingSubtotalAmount parses the subtotal threshold that waives shipping.
func (p PricingConfig) FreeShippingSubtotalAmount() decimal.Decimal {
	return parseAmount(p.FreeShippingSubtotal)
}

func (p PricingConfig) validate() error {
	for env, raw := range map[string]string{
		EnvShippingFee:          p.ShippingFee,
		EnvFreeShippingSubtotal: p.FreeShippingSubtotal,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		value, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s must be a decimal amount: %w", env, err)
		}
		if value.IsNegative() {
			return fmt.Errorf("%s must not be negative", env)
		}
	}
	return nil
}

func parseAmount(raw string) decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return value
}

type CartConfig struct {
	CookieName string        `envconfig:"FRESHCART_CART_COOKIE_NAME" default:"fc_cart"`
	TTL        time.Duration `envconfig:"FRESHCART_CART_TTL" default:"168h"`
}

type RateLimitConfig struct {
	Window          time.Duration `envconfig:"FRESHCART_RATE_LIMIT_WINDOW" default:"1m"`
	DiscountPreview int           `envconfig:"FRESHCART_RATE_LIMIT_DISCOUNT_PREVIEW" default:"20"`
	OrderTracking   int           `envconfig:"FRESHCART_RATE_LIMIT_ORDER_TRACKING" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FRESHCART_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"FRESHCART_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"FRESHCART_PUBSUB_ORDERS_TOPIC" default:"fc-order-events"`
	// Emulator points the client at a local Pub/Sub emulator (host:port).
	Emulator string `envconfig:"PUBSUB_EMULATOR_HOST"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FRESHCART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FRESHCART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FRESHCART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
