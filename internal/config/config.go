// Package config loads process configuration from config.yaml, LIVSAFE_*
// environment variables and the conventional secret variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"

	AuditMongo    = "mongo"
	AuditPostgres = "postgres"
	AuditNone     = "none"

	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"

	EnvDevelopment = "development"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Storage   StorageConfig   `mapstructure:"storage"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Security  SecurityConfig  `mapstructure:"security"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Grading   GradingConfig   `mapstructure:"grading"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Audit     AuditConfig     `mapstructure:"audit"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BodyLimit       int64         `mapstructure:"body_limit"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

func (c ServerConfig) Development() bool {
	return c.Environment == EnvDevelopment
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Transactions   bool          `mapstructure:"transactions"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
}

type SecurityConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	Backend  string        `mapstructure:"backend"`
	RedisURL string        `mapstructure:"redis_url"`
}

type UploadConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

type GradingConfig struct {
	// Endpoint selects the remote grader. Empty uses the random grader.
	Endpoint   string        `mapstructure:"endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
}

type AssistantConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        uint64        `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type AuditConfig struct {
	Driver        string `mapstructure:"driver"`
	DatabaseURL   string `mapstructure:"database_url"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type AnalyticsConfig struct {
	// Timezone is an IANA name. "Local" uses the server's zone.
	Timezone string `mapstructure:"timezone"`
}

// Location resolves Timezone. Call after Load has validated it.
func (c AnalyticsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// secrets are read from their conventional unprefixed variables and take
// precedence over the file.
type secrets struct {
	MongoURI      string `envconfig:"MONGODB_URI"`
	JWTSecret     string `envconfig:"JWT_SECRET"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	AuditDatabase string `envconfig:"AUDIT_DATABASE_URL"`
	RedisURL      string `envconfig:"REDIS_URL"`
	SMTPPassword  string `envconfig:"SMTP_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.environment", "production")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.body_limit", 10<<20)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "livsafe")
	v.SetDefault("mongo.connect_timeout", "10s")
	v.SetDefault("mongo.transactions", false)

	v.SetDefault("storage.driver", StorageMongo)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "720h")

	v.SetDefault("security.bcrypt_cost", 12)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "15m")
	v.SetDefault("rate_limit.backend", RateLimitMemory)
	v.SetDefault("rate_limit.redis_url", "")

	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_bytes", 10<<20)

	v.SetDefault("grading.endpoint", "")
	v.SetDefault("grading.timeout", "30s")
	v.SetDefault("grading.max_retries", 2)

	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.model", "gemini-1.5-flash")
	v.SetDefault("assistant.base_url", "")
	v.SetDefault("assistant.timeout", "30s")
	v.SetDefault("assistant.max_retries", 2)
	v.SetDefault("assistant.requests_per_second", 2.0)

	v.SetDefault("audit.driver", AuditMongo)
	v.SetDefault("audit.database_url", "")
	v.SetDefault("audit.retention_days", 365)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "no-reply@livsafe.local")

	v.SetDefault("analytics.timezone", "Local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads config.yaml from paths (default "." and "./config"). The file is
// optional; every key has a default and can be overridden by LIVSAFE_<SECTION>_<KEY>.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("LIVSAFE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var s secrets
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	cfg.applySecrets(s)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applySecrets(s secrets) {
	overlay := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}
	overlay(&c.Mongo.URI, s.MongoURI)
	overlay(&c.JWT.Secret, s.JWTSecret)
	overlay(&c.Assistant.APIKey, s.GeminiAPIKey)
	overlay(&c.Audit.DatabaseURL, s.AuditDatabase)
	overlay(&c.RateLimit.RedisURL, s.RedisURL)
	overlay(&c.SMTP.Password, s.SMTPPassword)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required (set JWT_SECRET)")
	}
	if c.Security.BcryptCost < 10 {
		return fmt.Errorf("security.bcrypt_cost must be at least 10, got %d", c.Security.BcryptCost)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}

	durations := map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.request_timeout":  c.Server.RequestTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"mongo.connect_timeout":   c.Mongo.ConnectTimeout,
		"jwt.expiry":              c.JWT.Expiry,
		"rate_limit.window":       c.RateLimit.Window,
		"grading.timeout":         c.Grading.Timeout,
		"assistant.timeout":       c.Assistant.Timeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", key)
		}
	}

	if _, err := time.LoadLocation(c.Analytics.Timezone); err != nil {
		return fmt.Errorf("invalid analytics.timezone %q: %w", c.Analytics.Timezone, err)
	}

	switch c.Storage.Driver {
	case StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Audit.Driver {
	case AuditMongo, AuditNone:
	case AuditPostgres:
		if c.Audit.DatabaseURL == "" {
			return errors.New("audit.database_url is required for the postgres audit driver")
		}
	default:
		return fmt.Errorf("unknown audit.driver %q", c.Audit.Driver)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return errors.New("rate_limit.requests must be positive")
		}
		switch c.RateLimit.Backend {
		case RateLimitMemory:
		case RateLimitRedis:
			if c.RateLimit.RedisURL == "" {
				return errors.New("rate_limit.redis_url is required for the redis backend")
			}
		default:
			return fmt.Errorf("unknown rate_limit.backend %q", c.RateLimit.Backend)
		}
	}

	if c.Upload.MaxBytes <= 0 || c.Server.BodyLimit <= 0 {
		return errors.New("upload.max_bytes and server.body_limit must be positive")
	}
	return nil
}
