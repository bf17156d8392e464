package config

// EnvPrefix is passed to envconfig; individual fields carry explicit names.
const EnvPrefix = "ORDENA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Canonical env var names, shared with tests and error messages.
const (
	EnvAppEnv   = "ORDENA_APP_ENV"
	EnvPort     = "ORDENA_APP_PORT"
	EnvLogLevel = "ORDENA_LOG_LEVEL"

	EnvDBDSN  = "ORDENA_DB_DSN"
	EnvDBHost = "ORDENA_DB_HOST"
	EnvDBUser = "ORDENA_DB_USER"
	EnvDBName = "ORDENA_DB_NAME"

	EnvRedisURL = "ORDENA_REDIS_URL"

	EnvJWTSecret  = "ORDENA_JWT_SECRET"
	EnvJWTIssuer  = "ORDENA_JWT_ISSUER"
	EnvJWTExpMins = "ORDENA_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "ORDENA_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic  = "ORDENA_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub    = "ORDENA_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPubSubCreditTopic  = "ORDENA_PUBSUB_CREDIT_TOPIC"
	EnvPubSubCreditSub    = "ORDENA_PUBSUB_CREDIT_SUBSCRIPTION"
	EnvPubSubRoutingTopic = "ORDENA_PUBSUB_ROUTING_TOPIC"
	EnvPubSubRoutingSub   = "ORDENA_PUBSUB_ROUTING_SUBSCRIPTION"
	EnvPubSubDomainTopic  = "ORDENA_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub    = "ORDENA_PUBSUB_DOMAIN_SUBSCRIPTION"

	EnvCreditLockAttempts  = "ORDENA_CREDIT_LOCK_ATTEMPTS"
	EnvCreditLockBaseDelay = "ORDENA_CREDIT_LOCK_BASE_DELAY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
