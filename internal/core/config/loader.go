package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/apiguard/internal/errs"
	"github.com/vietddude/apiguard/internal/session"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = "apiguard/1.0"
	}

	def := session.DefaultConfig()
	if cfg.API.CookieClearPath == "" {
		cfg.API.CookieClearPath = def.CookieClearPath
	}
	if cfg.API.HomePath == "" {
		cfg.API.HomePath = def.HomePath
	}
	if cfg.Session.CookieNames == nil {
		cfg.Session.CookieNames = def.CookieNames
	}
	if cfg.Session.CookiePaths == nil {
		cfg.Session.CookiePaths = def.CookiePaths
	}
	if cfg.Session.PersistentKeys == nil {
		cfg.Session.PersistentKeys = def.PersistentKeys
	}
	if cfg.Session.Databases == nil {
		cfg.Session.Databases = def.Databases
	}
	if cfg.Session.NotificationTTL == 0 {
		cfg.Session.NotificationTTL = def.NotificationTTL
	}
	if cfg.Session.WaitTimeout == 0 {
		cfg.Session.WaitTimeout = def.WaitTimeout
	}
	if cfg.Session.ServerTimeout == 0 {
		cfg.Session.ServerTimeout = def.ServerTimeout
	}
	if cfg.Session.Storage == "" {
		cfg.Session.Storage = StorageMemory
	}
	if cfg.Session.TokenKey == "" {
		cfg.Session.TokenKey = "auth_token"
	}

	if cfg.Errors.Threshold == 0 {
		cfg.Errors.Threshold = errs.DefaultThreshold
	}
	if cfg.Errors.Window == 0 {
		cfg.Errors.Window = errs.DefaultWindow
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "auto"
	}
}

// Validate rejects settings that cannot be wired.
func (c *AppConfig) Validate() error {
	switch c.Session.Storage {
	case StorageMemory:
	case StorageRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("session.storage is redis but redis.url is empty")
		}
	default:
		return fmt.Errorf("unknown session.storage %q", c.Session.Storage)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must not be negative")
	}
	switch c.Logging.Format {
	case "auto", "json", "text":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	return nil
}
