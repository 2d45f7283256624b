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
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Square       SquareConfig
	Outbox       OutboxConfig
	Money        MoneyConfig
	Maintenance  MaintenanceConfig
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
	Env          string `envconfig:"MLS_APP_ENV" required:"true"`
	Port         string `envconfig:"MLS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MLS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MLS_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"MLS_LOG_FORMAT" default:"json"`
	// CORSOrigins lists the point-of-sale front ends allowed to call the API.
	CORSOrigins []string `envconfig:"MLS_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"MLS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MLS_DB_DSN"`
	Driver string `envconfig:"MLS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MLS_DB_HOST"`
	LegacyPort     int    `envconfig:"MLS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MLS_DB_USER"`
	LegacyPassword string `envconfig:"MLS_DB_PASSWORD"`
	LegacyName     string `envconfig:"MLS_DB_NAME"`
	LegacySSLMode  string `envconfig:"MLS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MLS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MLS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MLS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MLS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which a statement is logged as a warning.
	SlowQuery time.Duration `envconfig:"MLS_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL            string        `envconfig:"MLS_REDIS_URL" required:"true"`
	Address        string        `envconfig:"MLS_REDIS_ADDR"`
	Password       string        `envconfig:"MLS_REDIS_PASSWORD"`
	DB             int           `envconfig:"MLS_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"MLS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"MLS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"MLS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"MLS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"MLS_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"MLS_REDIS_IDEMPOTENCY_TTL" default:"24h"`
}

// RateLimitConfig bounds mutating requests per member within a fixed window.
type RateLimitConfig struct {
	Window time.Duration `envconfig:"MLS_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int           `envconfig:"MLS_RATE_LIMIT_LIMIT" default:"120"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MLS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MLS_AUTO_MIGRATE" default:"false"`
	CardTenders bool `envconfig:"MLS_FEATURE_CARD_TENDERS" default:"false"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"MLS_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MLS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MLS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MLS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic           string `envconfig:"MLS_PUBSUB_DOMAIN_TOPIC" default:"mls-domain-events"`
	DLQTopic              string `envconfig:"MLS_PUBSUB_DLQ_TOPIC" default:"mls-domain-events-dlq"`
	AnalyticsTopic        string `envconfig:"MLS_PUBSUB_ANALYTICS_TOPIC" default:"mls-sales-events"`
	AnalyticsSubscription string `envconfig:"MLS_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"mls-sales-events-analytics"`
}

type BigQueryConfig struct {
	Dataset    string `envconfig:"MLS_BIGQUERY_DATASET" default:"mylittlestore"`
	SalesTable string `envconfig:"MLS_BIGQUERY_SALES_TABLE" default:"sales_events"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"MLS_SQUARE_ACCESS_TOKEN"`
	Env           string `envconfig:"MLS_SQUARE_ENV" default:"sandbox"`
	LocationID    string `envconfig:"MLS_SQUARE_LOCATION_ID"`
	WebhookSecret string `envconfig:"MLS_SQUARE_WEBHOOK_SECRET"`
	// WebhookURL is the notification URL registered with Square; it is part
	// of the signed content.
	WebhookURL string `envconfig:"MLS_SQUARE_WEBHOOK_URL"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MLS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MLS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MLS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// MoneyConfig describes how stored minor-unit amounts are rendered.
type MoneyConfig struct {
	Currency string `envconfig:"MLS_MONEY_CURRENCY" default:"KRW"`
	Exponent int32  `envconfig:"MLS_MONEY_EXPONENT" default:"0"`
}

type MaintenanceConfig struct {
	Interval          time.Duration `envconfig:"MLS_MAINTENANCE_INTERVAL" default:"1h"`
	AbandonedEvery    time.Duration `envconfig:"MLS_MAINTENANCE_ABANDONED_ORDER_EVERY" default:"10m"`
	AbandonedOrderTTL time.Duration `envconfig:"MLS_MAINTENANCE_ABANDONED_ORDER_TTL" default:"12h"`
	OutboxRetention   time.Duration `envconfig:"MLS_MAINTENANCE_OUTBOX_RETENTION" default:"720h"`
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
