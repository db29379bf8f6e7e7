package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Config{
		Store:  StoreConfig{Driver: DriverMemory},
		Tokens: TokenConfig{AccessSecret: "a-secret", RefreshSecret: "r-secret", AccessTTL: time.Minute, RefreshTTL: time.Hour},
		Mail:   MailConfig{Driver: MailLog},
	}
	cfg.Sanitize()
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "access")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh")
	t.Setenv("DATABASE_URL", "postgres://localhost/admin")
	t.Setenv("APP_BASE_URL", "https://app.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "https://app.example.com", cfg.AppBaseURL)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, DriverPostgres, cfg.Store.SessionDriver)
	assert.Equal(t, 15*time.Minute, cfg.Tokens.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Tokens.RefreshTTL)
	assert.Equal(t, "admin-platform", cfg.Tokens.Issuer)
	assert.Equal(t, MailLog, cfg.Mail.Driver)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Positive(t, cfg.HashConcurrency)
	assert.True(t, cfg.IsDevelopment())
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("SESSION_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("HASH_CONCURRENCY", "2")
	t.Setenv("MAIL_DRIVER", "smtp")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USER", "mailer@example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, DriverRedis, cfg.Store.SessionDriver)
	assert.Equal(t, 3, cfg.Store.RedisDB)
	assert.Equal(t, 5*time.Minute, cfg.Tokens.AccessTTL)
	assert.Equal(t, 2, cfg.HashConcurrency)
	assert.Equal(t, "mailer@example.com", cfg.Mail.From)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing access secret", mutate: func(c *Config) { c.Tokens.AccessSecret = "" }, wantErr: "ACCESS_TOKEN_SECRET is required"},
		{name: "same secrets", mutate: func(c *Config) { c.Tokens.RefreshSecret = c.Tokens.AccessSecret }, wantErr: "must differ"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store.Driver = DriverPostgres }, wantErr: "DATABASE_URL is required"},
		{name: "unknown store", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: "unknown STORE_DRIVER"},
		{name: "redis without addr", mutate: func(c *Config) { c.Store.SessionDriver = DriverRedis }, wantErr: "REDIS_ADDR is required"},
		{name: "pg sessions on memory store", mutate: func(c *Config) { c.Store.SessionDriver = DriverPostgres }, wantErr: "requires STORE_DRIVER=postgres"},
		{name: "smtp without host", mutate: func(c *Config) { c.Mail.Driver = MailSMTP; c.Mail.From = "x@example.com" }, wantErr: "SMTP_HOST is required"},
		{name: "http without endpoint", mutate: func(c *Config) { c.Mail.Driver = MailHTTP }, wantErr: "MAIL_HTTP_ENDPOINT is required"},
		{name: "unknown mail", mutate: func(c *Config) { c.Mail.Driver = "pigeon" }, wantErr: "unknown MAIL_DRIVER"},
		{name: "migrations on memory", mutate: func(c *Config) { c.RunMigrations = true }, wantErr: "RUN_MIGRATIONS requires"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Config{Store: StoreConfig{Driver: "x", SessionDriver: "y"}, Mail: MailConfig{Driver: "z"}}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"ACCESS_TOKEN_SECRET", "REFRESH_TOKEN_SECRET", "STORE_DRIVER", "SESSION_DRIVER", "MAIL_DRIVER"} {
		assert.Contains(t, err.Error(), want)
	}
}
