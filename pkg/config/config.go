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
	FeatureFlags FeatureFlagsConfig
	ERP          ERPConfig
	Scheduler    SchedulerConfig
	Retention    RetentionConfig
	Analytics    AnalyticsConfig
}

// Load reads the process environment. Missing connection parameters are
// returned as errors so the caller can refuse to start.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.ERP.validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.Analytics.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CONTAINERFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"CONTAINERFLOW_APP_PORT" default:"8000"`
	LogLevel     string `envconfig:"CONTAINERFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CONTAINERFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CONTAINERFLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CONTAINERFLOW_DB_DSN"`
	Driver string `envconfig:"CONTAINERFLOW_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CONTAINERFLOW_DB_HOST"`
	Port     int    `envconfig:"CONTAINERFLOW_DB_PORT" default:"5432"`
	User     string `envconfig:"CONTAINERFLOW_DB_USER"`
	Password string `envconfig:"CONTAINERFLOW_DB_PASSWORD"`
	Name     string `envconfig:"CONTAINERFLOW_DB_NAME"`
	SSLMode  string `envconfig:"CONTAINERFLOW_DB_SSLMODE" default:"require"`

	SQLitePath string `envconfig:"CONTAINERFLOW_SQLITE_PATH" default:"containerflow.db"`

	MaxOpenConns     int           `envconfig:"CONTAINERFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns     int           `envconfig:"CONTAINERFLOW_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime  time.Duration `envconfig:"CONTAINERFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime  time.Duration `envconfig:"CONTAINERFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	OperationTimeout time.Duration `envconfig:"CONTAINERFLOW_DB_OPERATION_TIMEOUT" default:"30s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CONTAINERFLOW_REDIS_URL"`
	Address      string        `envconfig:"CONTAINERFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"CONTAINERFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"CONTAINERFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CONTAINERFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CONTAINERFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CONTAINERFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CONTAINERFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CONTAINERFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CONTAINERFLOW_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CONTAINERFLOW_AUTO_MIGRATE" default:"false"`
}

type ERPConfig struct {
	BaseURL                  string        `envconfig:"CONTAINERFLOW_ERP_BASE_URL" required:"true"`
	Username                 string        `envconfig:"CONTAINERFLOW_ERP_USERNAME" required:"true"`
	Password                 string        `envconfig:"CONTAINERFLOW_ERP_PASSWORD" required:"true"`
	ContainerBySerialSource  int           `envconfig:"CONTAINERFLOW_ERP_CONTAINER_BY_SERIAL_SOURCE" default:"4619"`
	ProductionLocationSource int           `envconfig:"CONTAINERFLOW_ERP_PRODUCTION_LOCATION_SOURCE" default:"18120"`
	ContainersByPartSource   int           `envconfig:"CONTAINERFLOW_ERP_CONTAINERS_BY_PART_SOURCE" default:"8566"`
	ProductionLocationType   string        `envconfig:"CONTAINERFLOW_ERP_PRODUCTION_LOCATION_TYPE" default:"Production Storage_IN"`
	ExcludedLocationPrefix   string        `envconfig:"CONTAINERFLOW_ERP_EXCLUDED_LOCATION_PREFIX" default:"J-B"`
	RequestTimeout           time.Duration `envconfig:"CONTAINERFLOW_ERP_REQUEST_TIMEOUT" default:"60s"`
	LookupInterval           time.Duration `envconfig:"CONTAINERFLOW_ERP_LOOKUP_INTERVAL" default:"500ms"`
}

func (e ERPConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(e.BaseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", EnvERPBaseURL)
	}
	if e.RequestTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvERPRequestTimeout)
	}
	return nil
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `envconfig:"CONTAINERFLOW_RECONCILE_INTERVAL" default:"10m"`
	StartupDelay      time.Duration `envconfig:"CONTAINERFLOW_RECONCILE_STARTUP_DELAY" default:"5m"`
	RetentionHour     int           `envconfig:"CONTAINERFLOW_RETENTION_HOUR" default:"2"`
	RetentionMinute   int           `envconfig:"CONTAINERFLOW_RETENTION_MINUTE" default:"0"`
	TransitionTimeout time.Duration `envconfig:"CONTAINERFLOW_TRANSITION_TIMEOUT" default:"30s"`
	DistributedLock   bool          `envconfig:"CONTAINERFLOW_DISTRIBUTED_LOCK" default:"true"`
}

type RetentionConfig struct {
	Days int `envconfig:"CONTAINERFLOW_HISTORY_RETENTION_DAYS" default:"30"`
}

type AnalyticsConfig struct {
	Timezone       string `envconfig:"CONTAINERFLOW_PLANT_TIMEZONE" default:"Europe/Prague"`
	TestWorkcenter string `envconfig:"CONTAINERFLOW_TEST_WORKCENTER" default:"TEST"`
}

// Location resolves the plant timezone used for shifts and local display.
func (a AnalyticsConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(a.Timezone))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvPlantTimezone, err)
	}
	return loc, nil
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite || db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost:     db.Host,
		EnvDBUser:     db.User,
		EnvDBPassword: db.Password,
		EnvDBName:     db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.User, db.Password),
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
