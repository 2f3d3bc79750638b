// Package config loads service configuration from the environment.
// Values fall back to tag defaults and are validated once at startup.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Import   ImportConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig

	// Aliases holds extra column headers per import field, read from the
	// optional YAML file named by CONFIG_FILE.
	Aliases map[string][]string `yaml:"aliases"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including in-flight commits.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is applied by middleware to every request except commit.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects the inventory persistence backend.
type StoreConfig struct {
	// Driver is one of postgres, sqlite, memory (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres"`

	// SQLitePath is the database file used when Driver is sqlite.
	SQLitePath string `env:"STORE_SQLITE_PATH" default:"inventory.db"`

	// AutoMigrate applies embedded migrations on startup (default: true)
	AutoMigrate bool `env:"STORE_AUTO_MIGRATE" default:"true"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds preview and commit limits.
type ImportConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// MaxRows caps rows per preview (default: 10000)
	MaxRows int `env:"IMPORT_MAX_ROWS" default:"10000"`

	// PreviewTTL is how long a built preview stays committable (default: 30m)
	PreviewTTL time.Duration `env:"IMPORT_PREVIEW_TTL" default:"30m"`

	// SweepInterval is how often expired in-memory previews are dropped.
	SweepInterval time.Duration `env:"IMPORT_SWEEP_INTERVAL" default:"1m"`

	// MaxConcurrentCommits is the number of commits allowed to run at once.
	MaxConcurrentCommits int `env:"IMPORT_MAX_CONCURRENT_COMMITS" default:"4"`

	// MaxWaitTime is how long a commit waits for a free slot.
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"10s"`

	// CommitTimeout is how long a commit request waits before the commit
	// continues in the background.
	CommitTimeout time.Duration `env:"IMPORT_COMMIT_TIMEOUT" default:"45s"`

	// OwnerLock serializes commits for one owner (default: true)
	OwnerLock bool `env:"IMPORT_OWNER_LOCK" default:"true"`

	// LockTTL is the expiry of a distributed owner lock.
	LockTTL time.Duration `env:"IMPORT_LOCK_TTL" default:"15m"`

	// NormalizeStates rewrites full US state names to postal codes.
	NormalizeStates bool `env:"IMPORT_NORMALIZE_STATES" default:"true"`
}

// RedisConfig enables the shared preview store and owner locks.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" default:"false"`
	Addr     string `env:"REDIS_ADDR" default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" default:"0"`
	Prefix   string `env:"REDIS_KEY_PREFIX" default:"inventory:import:"`
}

// KafkaConfig enables import event publishing.
type KafkaConfig struct {
	Enabled      bool          `env:"KAFKA_ENABLED" default:"false"`
	Brokers      []string      `env:"KAFKA_BROKERS"`
	Topic        string        `env:"KAFKA_TOPIC" default:"inventory.imports"`
	WriteTimeout time.Duration `env:"KAFKA_WRITE_TIMEOUT" default:"10s"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit applies to preview and commit endpoints (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
	RequireAPIKey  bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys        []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
