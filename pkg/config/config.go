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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	CreditLock   CreditLockConfig
	RateLimit    RateLimitConfig
	Cron         CronConfig
	Eventing     EventingConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDENA_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDENA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ORDENA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDENA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDENA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDENA_DB_DSN"`
	Driver string `envconfig:"ORDENA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDENA_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDENA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDENA_DB_USER"`
	LegacyPassword string `envconfig:"ORDENA_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDENA_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDENA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDENA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDENA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDENA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDENA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDENA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORDENA_REDIS_ADDR"`
	Password     string        `envconfig:"ORDENA_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDENA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDENA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDENA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDENA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDENA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDENA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ORDENA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ORDENA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ORDENA_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ORDENA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ORDENA_AUTO_MIGRATE" default:"false"`
}

// CreditLockConfig tunes the relationship-row lock acquisition loop.
type CreditLockConfig struct {
	Attempts  int           `envconfig:"ORDENA_CREDIT_LOCK_ATTEMPTS" default:"3"`
	BaseDelay time.Duration `envconfig:"ORDENA_CREDIT_LOCK_BASE_DELAY" default:"100ms"`
}

// RateLimitConfig throttles mutating API traffic per client IP and per store.
type RateLimitConfig struct {
	Window     time.Duration `envconfig:"ORDENA_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit    int           `envconfig:"ORDENA_RATE_LIMIT_IP" default:"120"`
	StoreLimit int           `envconfig:"ORDENA_RATE_LIMIT_STORE" default:"60"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"ORDENA_CRON_INTERVAL" default:"5m"`
	ReservationTTL  time.Duration `envconfig:"ORDENA_CRON_RESERVATION_TTL" default:"72h"`
	RoutingTTL      time.Duration `envconfig:"ORDENA_CRON_ROUTING_TTL" default:"24h"`
	OutboxRetention time.Duration `envconfig:"ORDENA_CRON_OUTBOX_RETENTION" default:"720h"`
	SystemActorID   string        `envconfig:"ORDENA_CRON_SYSTEM_ACTOR_ID" default:"00000000-0000-0000-0000-000000000001"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"ORDENA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ORDENA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"ORDENA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ORDENA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic         string `envconfig:"ORDENA_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription  string `envconfig:"ORDENA_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	CreditTopic         string `envconfig:"ORDENA_PUBSUB_CREDIT_TOPIC" required:"true"`
	CreditSubscription  string `envconfig:"ORDENA_PUBSUB_CREDIT_SUBSCRIPTION" required:"true"`
	RoutingTopic        string `envconfig:"ORDENA_PUBSUB_ROUTING_TOPIC" required:"true"`
	RoutingSubscription string `envconfig:"ORDENA_PUBSUB_ROUTING_SUBSCRIPTION" required:"true"`
	DomainTopic         string `envconfig:"ORDENA_PUBSUB_DOMAIN_TOPIC"`
	DomainSubscription  string `envconfig:"ORDENA_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDENA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORDENA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORDENA_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
