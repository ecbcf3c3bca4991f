package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix scopes every environment variable consumed by the platform.
const EnvPrefix = "afrimarket"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "AFRIMARKET_DB_DSN"
	EnvDBHost = "AFRIMARKET_DB_HOST"
	EnvDBUser = "AFRIMARKET_DB_USER"
	EnvDBName = "AFRIMARKET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	FedaPay       FedaPayConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cart          CartConfig
	Orders        OrdersConfig
	Notifications NotificationsConfig
	AuthRateLimit AuthRateLimitConfig
	Eventing      EventingConfig
	FeatureFlags  FeatureFlagsConfig
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
	Env          string `envconfig:"AFRIMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"AFRIMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AFRIMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AFRIMARKET_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"AFRIMARKET_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AFRIMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AFRIMARKET_DB_DSN"`
	Driver string `envconfig:"AFRIMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AFRIMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"AFRIMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AFRIMARKET_DB_USER"`
	LegacyPassword string `envconfig:"AFRIMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"AFRIMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"AFRIMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AFRIMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AFRIMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AFRIMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AFRIMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AFRIMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AFRIMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"AFRIMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"AFRIMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AFRIMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AFRIMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AFRIMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AFRIMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AFRIMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AFRIMARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AFRIMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AFRIMARKET_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenDays  int    `envconfig:"AFRIMARKET_JWT_REFRESH_TOKEN_DAYS" default:"30"`
}

// RefreshTokenTTL converts the configured refresh window into a duration.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(j.RefreshTokenDays) * 24 * time.Hour
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"AFRIMARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"AFRIMARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"AFRIMARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"AFRIMARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"AFRIMARKET_ARGON_KEY_LEN" default:"32"`
}

type FedaPayConfig struct {
	APIKey        string        `envconfig:"AFRIMARKET_FEDAPAY_API_KEY"`
	WebhookSecret string        `envconfig:"AFRIMARKET_FEDAPAY_WEBHOOK_SECRET"`
	Env           string        `envconfig:"AFRIMARKET_FEDAPAY_ENV" default:"sandbox"`
	CallbackURL   string        `envconfig:"AFRIMARKET_FEDAPAY_CALLBACK_URL"`
	Currency      string        `envconfig:"AFRIMARKET_FEDAPAY_CURRENCY" default:"XOF"`
	HTTPTimeout   time.Duration `envconfig:"AFRIMARKET_FEDAPAY_HTTP_TIMEOUT" default:"15s"`
}

// Environment returns the normalized FedaPay environment (sandbox/live).
func (f FedaPayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(f.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AFRIMARKET_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"AFRIMARKET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AFRIMARKET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic               string `envconfig:"AFRIMARKET_PUBSUB_ORDERS_TOPIC" default:"am-order-events"`
	OrdersSubscription        string `envconfig:"AFRIMARKET_PUBSUB_ORDERS_SUBSCRIPTION"`
	NotificationsTopic        string `envconfig:"AFRIMARKET_PUBSUB_NOTIFICATIONS_TOPIC" default:"am-notification-events"`
	NotificationsSubscription string `envconfig:"AFRIMARKET_PUBSUB_NOTIFICATIONS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AFRIMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AFRIMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AFRIMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"AFRIMARKET_OUTBOX_RETENTION_DAYS" default:"14"`
}

type CartConfig struct {
	GuestTTL time.Duration `envconfig:"AFRIMARKET_CART_GUEST_TTL" default:"168h"`
}

type OrdersConfig struct {
	PendingPaymentTTL time.Duration `envconfig:"AFRIMARKET_ORDERS_PENDING_TTL" default:"24h"`
}

type NotificationsConfig struct {
	RetentionDays int `envconfig:"AFRIMARKET_NOTIFICATIONS_RETENTION_DAYS" default:"90"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"AFRIMARKET_RL_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"AFRIMARKET_RL_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit    int           `envconfig:"AFRIMARKET_RL_LOGIN_EMAIL_LIMIT" default:"5"`
	RegisterWindow     time.Duration `envconfig:"AFRIMARKET_RL_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"AFRIMARKET_RL_REGISTER_IP_LIMIT" default:"10"`
	RegisterEmailLimit int           `envconfig:"AFRIMARKET_RL_REGISTER_EMAIL_LIMIT" default:"3"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"AFRIMARKET_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AFRIMARKET_AUTO_MIGRATE" default:"false"`
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
