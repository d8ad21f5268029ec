package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Admin   AdminConfig
	Webhook WebhookConfig
	Mail    MailConfig
	Access  AccessConfig
}

// Load parses the process environment into a Config and validates the
// combinations that cannot be expressed with envconfig tags alone.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Webhook.validate(cfg.App); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VELVETFEED_APP_ENV" required:"true"`
	Port         string `envconfig:"VELVETFEED_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"VELVETFEED_APP_BASE_URL" default:"http://localhost:8080"`
	LogLevel     string `envconfig:"VELVETFEED_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VELVETFEED_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"VELVETFEED_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VELVETFEED_DB_DSN"`
	Driver string `envconfig:"VELVETFEED_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VELVETFEED_DB_HOST"`
	LegacyPort     int    `envconfig:"VELVETFEED_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VELVETFEED_DB_USER"`
	LegacyPassword string `envconfig:"VELVETFEED_DB_PASSWORD"`
	LegacyName     string `envconfig:"VELVETFEED_DB_NAME"`
	LegacySSLMode  string `envconfig:"VELVETFEED_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VELVETFEED_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VELVETFEED_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VELVETFEED_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VELVETFEED_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VELVETFEED_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VELVETFEED_REDIS_ADDR"`
	Password     string        `envconfig:"VELVETFEED_REDIS_PASSWORD"`
	DB           int           `envconfig:"VELVETFEED_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VELVETFEED_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VELVETFEED_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VELVETFEED_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VELVETFEED_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VELVETFEED_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"VELVETFEED_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"VELVETFEED_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"VELVETFEED_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"VELVETFEED_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

// AdminConfig carries the single operator identity. An empty email disables
// admin capability entirely; it must never match any visitor.
type AdminConfig struct {
	Email string `envconfig:"VELVETFEED_ADMIN_EMAIL"`
}

// HasAdminEmail reports whether an operator identity is configured at all.
func (a AdminConfig) HasAdminEmail() bool {
	return strings.TrimSpace(a.Email) != ""
}

// WebhookConfig holds the shared secret the payment provider presents on
// every delivery.
type WebhookConfig struct {
	Secret string `envconfig:"VELVETFEED_WEBHOOK_SECRET"`
}

func (w WebhookConfig) validate(app AppConfig) error {
	if strings.TrimSpace(w.Secret) == "" && app.IsProd() {
		return fmt.Errorf("%s is required in production", EnvWebhookSecret)
	}
	return nil
}

type MailConfig struct {
	SMTPHost    string `envconfig:"VELVETFEED_SMTP_HOST"`
	SMTPPort    int    `envconfig:"VELVETFEED_SMTP_PORT" default:"587"`
	SMTPUser    string `envconfig:"VELVETFEED_SMTP_USER"`
	SMTPPass    string `envconfig:"VELVETFEED_SMTP_PASS"`
	FromAddress string `envconfig:"VELVETFEED_MAIL_FROM" default:"no-reply@velvetfeed.app"`
	FromName    string `envconfig:"VELVETFEED_MAIL_FROM_NAME" default:"Velvetfeed"`
}

// AccessConfig tunes the access decision engine and its session guard.
type AccessConfig struct {
	LookupTimeout time.Duration `envconfig:"VELVETFEED_ACCESS_LOOKUP_TIMEOUT" default:"4s"`
	CacheTTL      time.Duration `envconfig:"VELVETFEED_ACCESS_CACHE_TTL" default:"30s"`
	// EnforceExpiry additionally requires a future expires_at on active
	// records. Off by default: the ledger is webhook-driven and a record
	// stays active until a later event says otherwise.
	EnforceExpiry bool          `envconfig:"VELVETFEED_ACCESS_ENFORCE_EXPIRY" default:"false"`
	MagicLinkTTL  time.Duration `envconfig:"VELVETFEED_ACCESS_MAGIC_LINK_TTL" default:"15m"`
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
