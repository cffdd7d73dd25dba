package config

const (
	EnvPrefix = "CONTAINERFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "CONTAINERFLOW_APP_ENV"
	EnvPort     = "CONTAINERFLOW_APP_PORT"
	EnvLogLevel = "CONTAINERFLOW_LOG_LEVEL"

	EnvDBDSN      = "CONTAINERFLOW_DB_DSN"
	EnvDBHost     = "CONTAINERFLOW_DB_HOST"
	EnvDBUser     = "CONTAINERFLOW_DB_USER"
	EnvDBPassword = "CONTAINERFLOW_DB_PASSWORD"
	EnvDBName     = "CONTAINERFLOW_DB_NAME"
	EnvUseSQLite  = "CONTAINERFLOW_USE_SQLITE"

	EnvRedisURL = "CONTAINERFLOW_REDIS_URL"

	EnvERPBaseURL        = "CONTAINERFLOW_ERP_BASE_URL"
	EnvERPUsername       = "CONTAINERFLOW_ERP_USERNAME"
	EnvERPPassword       = "CONTAINERFLOW_ERP_PASSWORD"
	EnvERPRequestTimeout = "CONTAINERFLOW_ERP_REQUEST_TIMEOUT"
	EnvERPLookupInterval = "CONTAINERFLOW_ERP_LOOKUP_INTERVAL"

	EnvReconcileInterval = "CONTAINERFLOW_RECONCILE_INTERVAL"
	EnvRetentionHour     = "CONTAINERFLOW_RETENTION_HOUR"
	EnvRetentionDays     = "CONTAINERFLOW_HISTORY_RETENTION_DAYS"
	EnvPlantTimezone     = "CONTAINERFLOW_PLANT_TIMEZONE"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBPassword, EnvDBName}
