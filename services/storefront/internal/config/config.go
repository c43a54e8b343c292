package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/EcommerceGo/pkg/config"
)

const defaultSessionSecret = "storefront-session-secret-change-me"

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"3000"`

	// Backend REST API
	APIBaseURL    string        `env:"API_BASE_URL" envDefault:"http://localhost:8080/api/v1"`
	APITimeout    time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	APIMaxRetries int           `env:"API_MAX_RETRIES" envDefault:"2"`

	// Image relay
	RelayAllowedHosts       []string      `env:"RELAY_ALLOWED_HOSTS" envDefault:"localhost,127.0.0.1" envSeparator:","`
	RelayFetchTimeout       time.Duration `env:"RELAY_FETCH_TIMEOUT" envDefault:"10s"`
	RelayMaxRedirects       int           `env:"RELAY_MAX_REDIRECTS" envDefault:"5"`
	RelayMaxBodyBytes       int64         `env:"RELAY_MAX_BODY_BYTES" envDefault:"15728640"`
	RelayInsecureSkipVerify bool          `env:"RELAY_INSECURE_SKIP_VERIFY" envDefault:"false"`
	RelayUserAgent          string        `env:"RELAY_USER_AGENT" envDefault:"EcommerceGo-Storefront-ImageRelay/1.0"`
	RelayRateLimitRPS       int           `env:"RELAY_RATE_LIMIT_RPS" envDefault:"50"`
	RelayRateLimitBurst     int           `env:"RELAY_RATE_LIMIT_BURST" envDefault:"100"`
	RelayTrustForwardedFor  bool          `env:"RELAY_TRUST_FORWARDED_FOR" envDefault:"false"`

	// Durable client storage
	StorageDriver        string        `env:"STORAGE_DRIVER" envDefault:"redis"`
	StorageTTLHours      int           `env:"STORAGE_TTL_HOURS" envDefault:"720"`
	StoragePurgeInterval time.Duration `env:"STORAGE_PURGE_INTERVAL" envDefault:"15m"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"ecommerce"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"ecommerce_secret"`
	PostgresDB   string `env:"STOREFRONT_DB_NAME" envDefault:"storefront_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool tuning
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"30"`
	SlowQueryThresholdMs  int   `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Circuit breaker for backend API calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"3"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.6"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Browser sessions
	SessionSecret   string        `env:"SESSION_SECRET" envDefault:"storefront-session-secret-change-me"`
	SessionTTLHours int           `env:"SESSION_TTL_HOURS" envDefault:"720"`
	SessionIdleTTL  time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	CookieSecure    bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	LoginPath       string        `env:"LOGIN_PATH" envDefault:"/login"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.RelayInsecureSkipVerify && c.IsProduction() {
		return fmt.Errorf("RELAY_INSECURE_SKIP_VERIFY must not be enabled in production")
	}
	if c.Environment != "development" && c.SessionSecret == defaultSessionSecret {
		return fmt.Errorf("SESSION_SECRET must be changed from default value in %s environment", c.Environment)
	}
	switch c.StorageDriver {
	case StorageMemory, StorageRedis, StoragePostgres:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of memory, redis, postgres, got %q", c.StorageDriver)
	}
	if c.RelayMaxRedirects < 0 {
		return fmt.Errorf("RELAY_MAX_REDIRECTS must not be negative, got %d", c.RelayMaxRedirects)
	}
	if c.RelayFetchTimeout <= 0 {
		return fmt.Errorf("RELAY_FETCH_TIMEOUT must be positive, got %s", c.RelayFetchTimeout)
	}
	if c.RelayMaxBodyBytes <= 0 {
		return fmt.Errorf("RELAY_MAX_BODY_BYTES must be positive, got %d", c.RelayMaxBodyBytes)
	}
	if c.RelayRateLimitRPS <= 0 || c.RelayRateLimitBurst <= 0 {
		return fmt.Errorf("RELAY_RATE_LIMIT_RPS and RELAY_RATE_LIMIT_BURST must be positive")
	}
	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive, got %d", c.SessionTTLHours)
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive, got %s", c.SessionIdleTTL)
	}
	if c.StorageTTLHours < 0 {
		return fmt.Errorf("STORAGE_TTL_HOURS must not be negative, got %d", c.StorageTTLHours)
	}
	if c.StorageDriver == StoragePostgres && c.StoragePurgeInterval <= 0 {
		return fmt.Errorf("STORAGE_PURGE_INTERVAL must be positive, got %s", c.StoragePurgeInterval)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %f", c.CBFailureRatio)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if !strings.HasPrefix(c.LoginPath, "/") {
		return fmt.Errorf("LOGIN_PATH must be an absolute path, got %q", c.LoginPath)
	}
	return nil
}

// StorageTTL returns the durable storage entry lifetime. Zero disables expiry.
func (c *Config) StorageTTL() time.Duration {
	return time.Duration(c.StorageTTLHours) * time.Hour
}

// SessionTTL returns the session cookie lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
