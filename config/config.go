package config

import (
	"os"
	"strings"
	"time"
)

const (
	EnvLocal      = "LOCAL"
	EnvStage      = "STAGE"
	EnvProduction = "PRODUCTION"
	EnvConfigPath = "CONFIG_PATH"

	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var hostingEnv string

// NodeConfig is the connection target of a single pool.
type NodeConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	DBName     string `yaml:"dbname"`
	SSLMode    string `yaml:"sslmode"`
	SearchPath string `yaml:"search_path"`
	// DSN, when set, is used verbatim and the fields above are ignored.
	DSN string `yaml:"dsn"`
}

// PoolConfig bounds every pool built from a DataSourceConfig.
type PoolConfig struct {
	Min            int           `yaml:"min"`
	Max            int           `yaml:"max"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxLifetime    time.Duration `yaml:"max_lifetime"`
}

type DataSourceConfig struct {
	Driver           string        `yaml:"driver"`
	Write            NodeConfig    `yaml:"write"`
	Read             []NodeConfig  `yaml:"read"`
	Pool             PoolConfig    `yaml:"pool"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	LogSQL           bool          `yaml:"log_sql"`
}

type RedisConfig struct {
	// Addrs lists independent instances. The first one backs the worker-id
	// counter; all of them take part in lock quorum.
	Addrs          []string      `yaml:"addrs"`
	URL            string        `yaml:"url"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	PoolSize       int           `yaml:"pool_size"`
	MaxRetries     int           `yaml:"max_retries"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	MinRetryDelay  time.Duration `yaml:"min_retry_delay"`
	MaxRetryDelay  time.Duration `yaml:"max_retry_delay"`
}

type LockConfig struct {
	KeyPrefix   string  `yaml:"key_prefix"`
	DriftFactor float64 `yaml:"drift_factor"`
}

type SnowflakeConfig struct {
	Epoch     int64  `yaml:"epoch"`
	WorkerKey string `yaml:"worker_key"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Writer string `yaml:"writer"`
}

type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Provider       string `yaml:"provider"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
}

func GetDataSourceConfig(resolver *ConfigResolver) *DataSourceConfig {
	cfg := &DataSourceConfig{
		Driver: strings.ToLower(resolver.GetString("database.driver", "DB_DRIVER", DriverPostgres)),
		Write:  nodeFromResolver(resolver, "database.write", "DB"),
		Pool: PoolConfig{
			Min:            resolver.GetInt("database.pool.min", "DB_POOL_MIN", 10),
			Max:            resolver.GetInt("database.pool.max", "DB_POOL_MAX", 50),
			AcquireTimeout: resolver.GetDuration("database.pool.acquire_timeout", "DB_POOL_ACQUIRE_TIMEOUT", 3*time.Second),
			IdleTimeout:    resolver.GetDuration("database.pool.idle_timeout", "DB_POOL_IDLE_TIMEOUT", 30*time.Second),
			MaxLifetime:    resolver.GetDuration("database.pool.max_lifetime", "DB_POOL_MAX_LIFETIME", time.Hour),
		},
		StatementTimeout: resolver.GetDuration("database.statement_timeout", "DB_STATEMENT_TIMEOUT", 5*time.Second),
		LogSQL:           resolver.GetBool("database.log_sql", "DB_LOG_SQL", true),
	}

	for _, item := range resolver.GetMapSlice("database.read") {
		cfg.Read = append(cfg.Read, nodeFromResolver(resolver.Sub(item), "", ""))
	}
	// DB_READ_DSNS=dsn1;dsn2 covers env-only deployments.
	if len(cfg.Read) == 0 {
		if dsns := os.Getenv("DB_READ_DSNS"); dsns != "" {
			for _, dsn := range strings.Split(dsns, ";") {
				if dsn = strings.TrimSpace(dsn); dsn != "" {
					cfg.Read = append(cfg.Read, NodeConfig{DSN: dsn})
				}
			}
		}
	}
	return cfg
}

func nodeFromResolver(resolver *ConfigResolver, prefix, envPrefix string) NodeConfig {
	key := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "." + name
	}
	env := func(name string) string {
		if envPrefix == "" {
			return ""
		}
		return envPrefix + "_" + name
	}
	return NodeConfig{
		Host:       resolver.GetString(key("host"), env("HOST"), "localhost"),
		Port:       resolver.GetInt(key("port"), env("PORT"), 0),
		User:       resolver.GetString(key("user"), env("USER"), ""),
		Password:   resolver.GetString(key("password"), env("PASSWORD"), ""),
		DBName:     resolver.GetString(key("dbname"), env("NAME"), ""),
		SSLMode:    resolver.GetString(key("sslmode"), env("SSL_MODE"), "disable"),
		SearchPath: resolver.GetString(key("search_path"), env("SEARCH_PATH"), ""),
		DSN:        resolver.GetString(key("dsn"), env("DSN"), ""),
	}
}

func GetRedisConfig(resolver *ConfigResolver) *RedisConfig {
	return &RedisConfig{
		Addrs:          resolver.GetStringSlice("redis.addrs", "REDIS_ADDRS", []string{"localhost:6379"}),
		URL:            resolver.GetString("redis.url", "REDIS_URL", ""),
		Password:       resolver.GetString("redis.password", "REDIS_PASSWORD", ""),
		DB:             resolver.GetInt("redis.db", "REDIS_DB", 0),
		PoolSize:       resolver.GetInt("redis.pool_size", "REDIS_POOL_SIZE", 10),
		MaxRetries:     resolver.GetInt("redis.max_retries", "REDIS_MAX_RETRIES", 3),
		DialTimeout:    resolver.GetDuration("redis.dial_timeout", "REDIS_DIAL_TIMEOUT", 5*time.Second),
		CommandTimeout: resolver.GetDuration("redis.command_timeout", "REDIS_COMMAND_TIMEOUT", 5*time.Second),
		MinRetryDelay:  resolver.GetDuration("redis.min_retry_delay", "REDIS_MIN_RETRY_DELAY", 500*time.Millisecond),
		MaxRetryDelay:  resolver.GetDuration("redis.max_retry_delay", "REDIS_MAX_RETRY_DELAY", 2*time.Second),
	}
}

func GetLockConfig(resolver *ConfigResolver) *LockConfig {
	return &LockConfig{
		KeyPrefix:   resolver.GetString("lock.key_prefix", "LOCK_KEY_PREFIX", ""),
		DriftFactor: resolver.GetFloat("lock.drift_factor", "LOCK_DRIFT_FACTOR", 0.01),
	}
}

func GetSnowflakeConfig(resolver *ConfigResolver) *SnowflakeConfig {
	return &SnowflakeConfig{
		Epoch:     int64(resolver.GetInt("snowflake.epoch", "SNOWFLAKE_EPOCH", 1288834974657)),
		WorkerKey: resolver.GetString("snowflake.worker_key", "SNOWFLAKE_WORKER_KEY", "worker"),
	}
}

func GetLoggerConfig(resolver *ConfigResolver) *LoggerConfig {
	return &LoggerConfig{
		Level:  resolver.GetString("logger.level", "LOG_LEVEL", "info"),
		Format: resolver.GetString("logger.format", "LOG_FORMAT", "console"),
		Writer: resolver.GetString("logger.writer", "LOG_WRITER", "local"),
	}
}

func GetMetricsConfig(resolver *ConfigResolver) *MetricsConfig {
	return &MetricsConfig{
		Enabled:        resolver.GetBool("metrics.enabled", "METRICS_ENABLED", false),
		Provider:       resolver.GetString("metrics.provider", "METRICS_PROVIDER", "prometheus"),
		ServiceName:    resolver.GetString("metrics.service_name", "SERVICE_NAME", "datacore"),
		ServiceVersion: resolver.GetString("metrics.service_version", "SERVICE_VERSION", "dev"),
	}
}

func GetDefaultConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"config/config.yaml",
		"/etc/datacore/config.yaml",
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return "config.yaml"
}

func InitHostingEnv() {
	hostingEnv = os.Getenv("HOSTING_ENV")
	if hostingEnv == "" {
		hostingEnv = EnvLocal
	}
}

func IsLocalEnv() bool {
	return hostingEnv == EnvLocal
}

func IsProductionEnv() bool {
	return hostingEnv == EnvProduction
}

func GetHostingEnv() string {
	return hostingEnv
}
