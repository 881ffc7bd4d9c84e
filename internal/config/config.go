package config

import "time"

type Config struct {
	Service     *ServiceConfig
	Postgres    *PostgresConfig
	Redis       *RedisConfig
	Snowflake   *SnowflakeConfig
	Translate   *TranslateConfig
	Archive     *ArchiveConfig
	Logger      *LoggerConfig
	Tracer      *TracerConfig
	SecretToken string
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

// SnowflakeConfig points at the remote unique-id service.
type SnowflakeConfig struct {
	URL     string
	Timeout time.Duration
}

// TranslateConfig points at the optional text translation service. When URL
// is empty, translation is disabled and query results pass through verbatim.
type TranslateConfig struct {
	URL     string
	Timeout time.Duration
}

// ArchiveConfig controls how long archived messages are retained before the
// purge worker removes them for good.
type ArchiveConfig struct {
	Retention     time.Duration
	PurgeInterval time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Address string
}
