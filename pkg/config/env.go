package config

const EnvPrefix = "MLS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "MLS_APP_ENV"
	EnvPort      = "MLS_APP_PORT"
	EnvLogLevel  = "MLS_LOG_LEVEL"
	EnvLogFormat = "MLS_LOG_FORMAT"

	EnvDBDSN  = "MLS_DB_DSN"
	EnvDBHost = "MLS_DB_HOST"
	EnvDBPort = "MLS_DB_PORT"
	EnvDBUser = "MLS_DB_USER"
	EnvDBName = "MLS_DB_NAME"
	EnvDBPass = "MLS_DB_PASSWORD"

	EnvRedisURL = "MLS_REDIS_URL"

	EnvPubSubDomainTopic = "MLS_PUBSUB_DOMAIN_TOPIC"
	EnvMoneyCurrency     = "MLS_MONEY_CURRENCY"
	EnvMoneyExponent     = "MLS_MONEY_EXPONENT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
