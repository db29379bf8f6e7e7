// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Mail drivers.
const (
	MailSMTP = "smtp"
	MailHTTP = "http"
	MailLog  = "log"
)

// Config is the full process configuration.
type Config struct {
	Env        string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr   string `env:"GRPC_ADDR"`
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:5173"`

	MaxBodyBytes    int64 `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	HashConcurrency int   `env:"HASH_CONCURRENCY"`

	Store  StoreConfig
	Tokens TokenConfig
	Mail   MailConfig
	Log    LogConfig

	MigrationsDir string `env:"MIGRATIONS_DIR"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"false"`
}

// StoreConfig selects the persistence backends.
type StoreConfig struct {
	Driver        string `env:"STORE_DRIVER" envDefault:"postgres"`
	SessionDriver string `env:"SESSION_DRIVER"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// TokenConfig configures JWT signing.
type TokenConfig struct {
	AccessSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET"`
	Issuer        string        `env:"TOKEN_ISSUER" envDefault:"admin-platform"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
}

// MailConfig selects and configures the outbound mail gateway.
type MailConfig struct {
	Driver       string `env:"MAIL_DRIVER" envDefault:"log"`
	From         string `env:"MAIL_FROM"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	HTTPEndpoint string `env:"MAIL_HTTP_ENDPOINT"`
	HTTPToken    string `env:"MAIL_HTTP_TOKEN"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads .env when present, parses the environment and applies
// defaults. It does not validate; call Validate before use.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize normalizes values loaded from the environment.
func (c *Config) Sanitize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.AppBaseURL = strings.TrimRight(strings.TrimSpace(c.AppBaseURL), "/")
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Store.SessionDriver = strings.ToLower(strings.TrimSpace(c.Store.SessionDriver))
	if c.Store.SessionDriver == "" {
		c.Store.SessionDriver = c.Store.Driver
	}
	c.Mail.Driver = strings.ToLower(strings.TrimSpace(c.Mail.Driver))
	if c.Mail.From == "" {
		c.Mail.From = c.Mail.SMTPUser
	}
	if c.HashConcurrency <= 0 {
		c.HashConcurrency = runtime.NumCPU()
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
}

// IsDevelopment reports whether APP_ENV selects development behavior.
func (c *Config) IsDevelopment() bool {
	return c.Env == "" || c.Env == "development" || c.Env == "dev"
}

// Validate checks that the configuration is usable and returns every
// problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Tokens.AccessSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	if c.Tokens.RefreshSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if c.Tokens.AccessSecret != "" && c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	switch c.Store.SessionDriver {
	case DriverPostgres:
		if c.Store.Driver != DriverPostgres {
			errs = append(errs, errors.New("SESSION_DRIVER=postgres requires STORE_DRIVER=postgres"))
		}
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when SESSION_DRIVER=redis"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_DRIVER %q", c.Store.SessionDriver))
	}

	switch c.Mail.Driver {
	case MailSMTP:
		if c.Mail.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required when MAIL_DRIVER=smtp"))
		}
		if c.Mail.From == "" {
			errs = append(errs, errors.New("MAIL_FROM or SMTP_USER is required when MAIL_DRIVER=smtp"))
		}
	case MailHTTP:
		if c.Mail.HTTPEndpoint == "" {
			errs = append(errs, errors.New("MAIL_HTTP_ENDPOINT is required when MAIL_DRIVER=http"))
		}
	case MailLog:
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_DRIVER %q", c.Mail.Driver))
	}

	if c.RunMigrations && c.Store.Driver != DriverPostgres {
		errs = append(errs, errors.New("RUN_MIGRATIONS requires STORE_DRIVER=postgres"))
	}

	return errors.Join(errs...)
}
