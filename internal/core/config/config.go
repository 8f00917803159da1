package config

import (
	"time"

	"github.com/vietddude/apiguard/internal/core/domain"
	redisclient "github.com/vietddude/apiguard/internal/infra/redis"
	"github.com/vietddude/apiguard/internal/infra/storage/postgres"
	"github.com/vietddude/apiguard/internal/session"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	API      APIConfig          `yaml:"api"`
	Retry    RetryConfig        `yaml:"retry"`
	Session  SessionConfig      `yaml:"session"`
	Errors   ErrorsConfig       `yaml:"errors"`
	Server   ServerConfig       `yaml:"server"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// APIConfig describes the backend the client talks to.
type APIConfig struct {
	BaseURL         string `yaml:"base_url"`
	UserAgent       string `yaml:"user_agent"`
	CookieClearPath string `yaml:"cookie_clear_path"`
	HomePath        string `yaml:"home_path"`
}

// RetryConfig holds the default retry policy.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	OverallTimeout time.Duration `yaml:"overall_timeout"`
}

// Storage backends for persistent session keys.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// SessionConfig holds what a teardown clears and where it lives.
type SessionConfig struct {
	CookieNames     []string      `yaml:"cookie_names"`
	CookiePaths     []string      `yaml:"cookie_paths"`
	PersistentKeys  []string      `yaml:"persistent_keys"`
	Databases       []string      `yaml:"databases"`
	NotificationTTL time.Duration `yaml:"notification_ttl"`
	WaitTimeout     time.Duration `yaml:"wait_timeout"`
	ServerTimeout   time.Duration `yaml:"server_timeout"`
	Storage         string        `yaml:"storage"`   // memory, redis
	CacheDir        string        `yaml:"cache_dir"` // on-disk cache databases
	TokenKey        string        `yaml:"token_key"`
}

// ErrorsConfig holds the error counter settings.
type ErrorsConfig struct {
	Threshold int           `yaml:"threshold"`
	Window    time.Duration `yaml:"window"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // auto, json, text
}

// RetryPolicy converts the retry section into a policy.
func (c *AppConfig) RetryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts:    c.Retry.MaxAttempts,
		BaseDelay:      c.Retry.BaseDelay,
		MaxDelay:       c.Retry.MaxDelay,
		OverallTimeout: c.Retry.OverallTimeout,
	}.WithDefaults()
}

// TeardownConfig converts the api and session sections into a teardown
// configuration.
func (c *AppConfig) TeardownConfig() session.Config {
	return session.Config{
		BaseURL:         c.API.BaseURL,
		CookieClearPath: c.API.CookieClearPath,
		HomePath:        c.API.HomePath,
		CookieNames:     c.Session.CookieNames,
		CookiePaths:     c.Session.CookiePaths,
		PersistentKeys:  c.Session.PersistentKeys,
		Databases:       c.Session.Databases,
		ServerTimeout:   c.Session.ServerTimeout,
		NotificationTTL: c.Session.NotificationTTL,
		WaitTimeout:     c.Session.WaitTimeout,
	}
}
