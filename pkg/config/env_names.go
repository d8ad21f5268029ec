package config

// EnvPrefix is passed to envconfig; individual fields carry fully qualified
// names so the prefix only matters for unannotated fields.
const EnvPrefix = "VELVETFEED"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (validation
// messages, tests).
const (
	EnvAppEnv                 = "VELVETFEED_APP_ENV"
	EnvPort                   = "VELVETFEED_APP_PORT"
	EnvBaseURL                = "VELVETFEED_APP_BASE_URL"
	EnvDBDSN                  = "VELVETFEED_DB_DSN"
	EnvDBHost                 = "VELVETFEED_DB_HOST"
	EnvDBUser                 = "VELVETFEED_DB_USER"
	EnvDBName                 = "VELVETFEED_DB_NAME"
	EnvRedisURL               = "VELVETFEED_REDIS_URL"
	EnvJWTSecret              = "VELVETFEED_JWT_SECRET"
	EnvJWTIssuer              = "VELVETFEED_JWT_ISSUER"
	EnvJWTExpMins             = "VELVETFEED_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "VELVETFEED_REFRESH_TOKEN_TTL_MINUTES"
	EnvAdminEmail             = "VELVETFEED_ADMIN_EMAIL"
	EnvWebhookSecret          = "VELVETFEED_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
