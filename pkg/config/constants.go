package config

// EnvPrefix namespaces every environment variable consumed by the app.
const EnvPrefix = "CARTLOOP"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside envconfig tags.
const (
	EnvAppEnv     = "CARTLOOP_APP_ENV"
	EnvPort       = "CARTLOOP_APP_PORT"
	EnvDBDSN      = "CARTLOOP_DB_DSN"
	EnvDBHost     = "CARTLOOP_DB_HOST"
	EnvDBUser     = "CARTLOOP_DB_USER"
	EnvDBName     = "CARTLOOP_DB_NAME"
	EnvRedisURL   = "CARTLOOP_REDIS_URL"
	EnvJWTSecret  = "CARTLOOP_JWT_SECRET"
	EnvJWTIssuer  = "CARTLOOP_JWT_ISSUER"
	EnvJWTExpMins = "CARTLOOP_JWT_EXPIRATION_MINUTES"
	EnvRzpKeyID   = "CARTLOOP_RAZORPAY_KEY_ID"
	EnvRzpSecret  = "CARTLOOP_RAZORPAY_KEY_SECRET"
	EnvRzpWebhook = "CARTLOOP_RAZORPAY_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
