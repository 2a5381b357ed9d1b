package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Razorpay     RazorpayConfig
	Checkout     CheckoutConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CARTLOOP_APP_ENV" required:"true"`
	Port         string `envconfig:"CARTLOOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CARTLOOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARTLOOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CARTLOOP_DB_DSN"`
	Driver string `envconfig:"CARTLOOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CARTLOOP_DB_HOST"`
	LegacyPort     int    `envconfig:"CARTLOOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARTLOOP_DB_USER"`
	LegacyPassword string `envconfig:"CARTLOOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARTLOOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARTLOOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARTLOOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARTLOOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARTLOOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARTLOOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARTLOOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CARTLOOP_REDIS_ADDRESS"`
	Password     string        `envconfig:"CARTLOOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARTLOOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARTLOOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARTLOOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARTLOOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARTLOOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARTLOOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CARTLOOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CARTLOOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CARTLOOP_JWT_EXPIRATION_MINUTES" required:"true"`
}

// RazorpayConfig carries the provider credentials used for opening
// provider orders and verifying payment/webhook signatures.
type RazorpayConfig struct {
	KeyID         string `envconfig:"CARTLOOP_RAZORPAY_KEY_ID" required:"true"`
	KeySecret     string `envconfig:"CARTLOOP_RAZORPAY_KEY_SECRET" required:"true"`
	WebhookSecret string `envconfig:"CARTLOOP_RAZORPAY_WEBHOOK_SECRET" required:"true"`
	Currency      string `envconfig:"CARTLOOP_RAZORPAY_CURRENCY" default:"INR"`
}

// CheckoutConfig holds the pricing knobs applied during order
// assembly. Values are whole cents so totals stay in integer
// arithmetic end to end.
type CheckoutConfig struct {
	FreeShippingThresholdCents int     `envconfig:"CARTLOOP_FREE_SHIPPING_THRESHOLD_CENTS" default:"10000"`
	ShippingFlatCents          int     `envconfig:"CARTLOOP_SHIPPING_FLAT_CENTS" default:"999"`
	TaxRate                    float64 `envconfig:"CARTLOOP_TAX_RATE" default:"0.08"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CARTLOOP_AUTO_MIGRATE" default:"false"`
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
