// Package config provides centralized configuration management for the
// ingestion service. Settings come from environment variables with defaults
// and are validated on startup so a bad deployment fails before any run starts.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Ingest   IngestConfig
	Source   SourceConfig
	Security SecurityConfig
	Lock     LockConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for active runs (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the connection string (required).
	// Supports both DATABASE_URL and DB_URL env vars for compatibility.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// Driver selects the store implementation: postgres or mysql (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies the embedded schema on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// IngestConfig holds pipeline run settings.
type IngestConfig struct {
	// SourcePath is the nutrition CSV to ingest (default: data/food_db.csv)
	SourcePath string `env:"INGEST_SOURCE_PATH" default:"data/food_db.csv"`

	// ChunkSize is the number of records committed per transaction (default: 1000)
	ChunkSize int `env:"INGEST_CHUNK_SIZE" default:"1000"`

	// Timeout bounds a single run; checked at chunk boundaries (default: 30m)
	Timeout time.Duration `env:"INGEST_TIMEOUT" default:"30m"`

	// MaxWaitTime is how long a new run waits for the active one to finish (default: 5s)
	MaxWaitTime time.Duration `env:"INGEST_MAX_WAIT_TIME" default:"5s"`

	// ScheduleInterval triggers periodic runs; zero disables the scheduler (default: 0s)
	ScheduleInterval time.Duration `env:"INGEST_SCHEDULE_INTERVAL" default:"0s"`
}

// SourceConfig describes where the food fields live in each input line.
type SourceConfig struct {
	// Columns overrides the 8 positional indices, comma-separated, in the order
	// code,name,category,servingSize,calories,protein,fat,carbohydrate.
	Columns []string `env:"SOURCE_COLUMNS"`

	// LayoutFile is an optional YAML layout; SOURCE_COLUMNS wins when both are set.
	LayoutFile string `env:"SOURCE_LAYOUT_FILE"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey protects the run trigger endpoints (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers are honored
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LockConfig configures the optional Redis run lock shared by all replicas.
// An empty RedisAddr leaves only the in-process limiter.
type LockConfig struct {
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" default:"0"`
	Key           string        `env:"LOCK_KEY" default:"nutriload:ingest"`
	TTL           time.Duration `env:"LOCK_TTL" default:"30s"`
}

// Enabled reports whether a Redis lock is configured.
func (c *LockConfig) Enabled() bool {
	return c.RedisAddr != ""
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
