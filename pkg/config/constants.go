package config

const (
	EnvPrefix = "QUTT"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv               = "QUTT_APP_ENV"
	EnvLogLevel             = "QUTT_LOG_LEVEL"
	EnvAPIBaseURL           = "QUTT_API_BASE_URL"
	EnvAPITimeout           = "QUTT_API_TIMEOUT"
	EnvAuthRefreshCooldown  = "QUTT_AUTH_REFRESH_COOLDOWN"
	EnvAuthRefreshLeadTime  = "QUTT_AUTH_REFRESH_LEAD_TIME"
	EnvAuthRefreshMinDelay  = "QUTT_AUTH_REFRESH_MIN_DELAY"
	EnvStorageDriver        = "QUTT_STORAGE_DRIVER"
	EnvStorageSQLitePath    = "QUTT_STORAGE_SQLITE_PATH"
	EnvStorageEncryptionKey = "QUTT_STORAGE_ENCRYPTION_KEY"
	EnvRedisURL             = "QUTT_REDIS_URL"
	EnvRedisAddr            = "QUTT_REDIS_ADDR"
)
