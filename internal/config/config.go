package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	pkgconfig "github.com/evotags/evotags/pkg/config"
	"github.com/evotags/evotags/pkg/database"
	"github.com/evotags/evotags/pkg/tracing"
)

// ServiceName labels logs, metrics and traces.
const ServiceName = "evotags"

// Auth modes.
const (
	AuthModeSigned    = "signed"
	AuthModeDevBypass = "dev_bypass"
)

// Config holds all configuration for the service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"3000"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// PostgreSQL
	PostgresHost     string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string        `env:"POSTGRES_USER" envDefault:"evotags"`
	PostgresPass     string        `env:"POSTGRES_PASSWORD" envDefault:"evotags"`
	PostgresDB       string        `env:"POSTGRES_DB" envDefault:"evotags"`
	PostgresSSL      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns       int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns       int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQueryMS      int           `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`
	MigrateOnStartup bool          `env:"MIGRATE_ON_STARTUP" envDefault:"true"`

	// Redis feed cache
	RedisHost        string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort        int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	FeedCacheEnabled bool          `env:"FEED_CACHE_ENABLED" envDefault:"true"`
	FeedCacheTTL     time.Duration `env:"FEED_CACHE_TTL" envDefault:"30s"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Telegram
	TelegramBotToken  string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIURL    string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	WebAppURL         string        `env:"WEBAPP_URL"`
	BotPollingEnabled bool          `env:"BOT_POLLING_ENABLED" envDefault:"true"`
	BotPollTimeout    time.Duration `env:"BOT_POLL_TIMEOUT" envDefault:"30s"`
	NotifyTimeout     time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
	NotifyRatePerSec  float64       `env:"NOTIFY_RATE_PER_SEC" envDefault:"25"`

	// Credential verification
	AuthMode       string        `env:"AUTH_MODE" envDefault:"signed"`
	InitDataMaxAge time.Duration `env:"INIT_DATA_MAX_AGE" envDefault:"0s"`

	// AdminEnabledRaw is empty when unset; AdminEnabled resolves the default.
	AdminEnabledRaw string `env:"ADMIN_ENABLED"`

	// Per-client write throttle; 0 disables it.
	WriteRateLimitRPS   float64 `env:"WRITE_RATE_LIMIT_RPS" envDefault:"2"`
	WriteRateLimitBurst int     `env:"WRITE_RATE_LIMIT_BURST" envDefault:"10"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Tracing
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads .env (if present) and the environment, then validates.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads .env (if present) and the environment without cross-field
// validation. Maintenance commands that never serve traffic use it.
func Parse() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load evotags config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field rules.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.InitDataMaxAge < 0 {
		return errors.New("INIT_DATA_MAX_AGE must not be negative")
	}
	if c.FeedCacheTTL <= 0 {
		return errors.New("FEED_CACHE_TTL must be positive")
	}
	if c.NotifyTimeout <= 0 {
		return errors.New("NOTIFY_TIMEOUT must be positive")
	}
	if c.NotifyRatePerSec < 0 || c.WriteRateLimitRPS < 0 || c.WriteRateLimitBurst < 0 {
		return errors.New("rate limits must not be negative")
	}

	switch c.AuthMode {
	case AuthModeSigned:
		if c.TelegramBotToken == "" {
			return errors.New("TELEGRAM_BOT_TOKEN is required when AUTH_MODE=signed")
		}
	case AuthModeDevBypass:
		if c.IsProduction() {
			return errors.New("AUTH_MODE=dev_bypass is not allowed in production")
		}
		if c.TelegramBotToken != "" {
			return errors.New("AUTH_MODE=dev_bypass cannot be combined with TELEGRAM_BOT_TOKEN")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q (want %q or %q)", c.AuthMode, AuthModeSigned, AuthModeDevBypass)
	}

	if c.BotEnabled() {
		u, err := url.Parse(c.WebAppURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return errors.New("WEBAPP_URL must be an absolute https URL when the bot is enabled")
		}
	}

	if c.AdminEnabledRaw != "" {
		if _, err := strconv.ParseBool(c.AdminEnabledRaw); err != nil {
			return fmt.Errorf("invalid ADMIN_ENABLED %q: %w", c.AdminEnabledRaw, err)
		}
	}
	// Admin routes carry no authentication of their own.
	if c.IsProduction() && c.AdminEnabled() {
		return errors.New("ADMIN_ENABLED=true is not allowed in production")
	}
	return nil
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// BotEnabled reports whether the update listener should run.
func (c *Config) BotEnabled() bool {
	return c.BotPollingEnabled && c.TelegramBotToken != ""
}

// AdminEnabled returns ADMIN_ENABLED, defaulting to true only in development.
func (c *Config) AdminEnabled() bool {
	if c.AdminEnabledRaw == "" {
		return c.Environment == "development"
	}
	v, _ := strconv.ParseBool(c.AdminEnabledRaw)
	return v
}

// Postgres returns the pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBConnLifetime,
		MaxConnIdleTime: c.DBConnIdleTime,
	}
}

// Redis returns the cache client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:        c.RedisHost,
		Port:        c.RedisPort,
		Password:    c.RedisPassword,
		DB:          c.RedisDB,
		DialTimeout: 2 * time.Second,
	}
}

// Tracing returns the OpenTelemetry configuration.
func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTelEndpoint,
		Insecure:       c.OTelInsecure,
		SampleRate:     c.OTelSampleRate,
		Enabled:        c.OTelEnabled,
	}
}

// SlowQueryThreshold returns the slow query log threshold.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryMS) * time.Millisecond
}
