// Package config loads medtrax settings from .env files and the environment using Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds client and stub-server configuration.
type Config struct {
	// APIURL is the portal backend base URL.
	APIURL string `mapstructure:"MEDTRAX_API_URL"`
	// PortalURL is the web portal, opened from the TUI for pages it does not render.
	PortalURL string `mapstructure:"MEDTRAX_PORTAL_URL"`
	// Store selects the token store backend: file, memory or redis.
	Store string `mapstructure:"MEDTRAX_STORE"`
	// StoreDir holds session.json for the file backend and the default log file.
	StoreDir string `mapstructure:"MEDTRAX_STORE_DIR"`

	RedisAddr     string `mapstructure:"MEDTRAX_REDIS_ADDR"`
	RedisPassword string `mapstructure:"MEDTRAX_REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"MEDTRAX_REDIS_DB"`
	RedisPrefix   string `mapstructure:"MEDTRAX_REDIS_PREFIX"`

	// HTTPTimeout is the blanket timeout applied to every API call (e.g. "30s").
	HTTPTimeout string `mapstructure:"MEDTRAX_HTTP_TIMEOUT"`

	LogLevel  string `mapstructure:"MEDTRAX_LOG_LEVEL"`
	LogFormat string `mapstructure:"MEDTRAX_LOG_FORMAT"`
	// LogFile is where logs go; empty means <StoreDir>/medtrax.log, "-" means stderr.
	LogFile string `mapstructure:"MEDTRAX_LOG_FILE"`

	// Stub backend (serve-stub) settings.
	StubAddr           string `mapstructure:"MEDTRAX_STUB_ADDR"`
	StubSigningKey     string `mapstructure:"MEDTRAX_STUB_SIGNING_KEY"`
	StubAccessTTL      string `mapstructure:"MEDTRAX_STUB_ACCESS_TTL"`
	StubRefreshTTL     string `mapstructure:"MEDTRAX_STUB_REFRESH_TTL"`
	StubAllowedOrigins string `mapstructure:"MEDTRAX_STUB_ALLOWED_ORIGINS"`
}

var keys = []string{
	"MEDTRAX_API_URL", "MEDTRAX_PORTAL_URL", "MEDTRAX_STORE", "MEDTRAX_STORE_DIR",
	"MEDTRAX_REDIS_ADDR", "MEDTRAX_REDIS_PASSWORD", "MEDTRAX_REDIS_DB", "MEDTRAX_REDIS_PREFIX",
	"MEDTRAX_HTTP_TIMEOUT", "MEDTRAX_LOG_LEVEL", "MEDTRAX_LOG_FORMAT", "MEDTRAX_LOG_FILE",
	"MEDTRAX_STUB_ADDR", "MEDTRAX_STUB_SIGNING_KEY", "MEDTRAX_STUB_ACCESS_TTL",
	"MEDTRAX_STUB_REFRESH_TTL", "MEDTRAX_STUB_ALLOWED_ORIGINS",
}

// Load reads the given .env files (default ".env"; missing files are ignored),
// then builds and validates Config from the environment via Viper. Variables
// already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	v := viper.New()
	for _, k := range keys {
		_ = v.BindEnv(k) //nolint:errcheck // only fails on empty key
	}

	v.SetDefault("MEDTRAX_API_URL", "http://localhost:8000")
	v.SetDefault("MEDTRAX_PORTAL_URL", "http://localhost:5173")
	v.SetDefault("MEDTRAX_STORE", StoreFile)
	v.SetDefault("MEDTRAX_STORE_DIR", defaultStoreDir())
	v.SetDefault("MEDTRAX_REDIS_ADDR", "localhost:6379")
	v.SetDefault("MEDTRAX_REDIS_DB", 0)
	v.SetDefault("MEDTRAX_REDIS_PREFIX", "")
	v.SetDefault("MEDTRAX_HTTP_TIMEOUT", "30s")
	v.SetDefault("MEDTRAX_LOG_LEVEL", "info")
	v.SetDefault("MEDTRAX_LOG_FORMAT", "json")
	v.SetDefault("MEDTRAX_LOG_FILE", "")
	v.SetDefault("MEDTRAX_STUB_ADDR", ":8000")
	v.SetDefault("MEDTRAX_STUB_SIGNING_KEY", "medtrax-dev-signing-key")
	v.SetDefault("MEDTRAX_STUB_ACCESS_TTL", "5m")
	v.SetDefault("MEDTRAX_STUB_REFRESH_TTL", "168h")
	v.SetDefault("MEDTRAX_STUB_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields that would otherwise fail later at use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("config: MEDTRAX_API_URL must be set")
	}
	switch c.Store {
	case StoreFile, StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("config: MEDTRAX_STORE must be file, memory or redis, got %q", c.Store)
	}
	if c.Store == StoreFile && c.StoreDir == "" {
		return errors.New("config: MEDTRAX_STORE_DIR must be set for the file store")
	}
	if c.Store == StoreRedis && c.RedisAddr == "" {
		return errors.New("config: MEDTRAX_REDIS_ADDR must be set for the redis store")
	}
	if d, err := time.ParseDuration(c.HTTPTimeout); err != nil || d <= 0 {
		return fmt.Errorf("config: MEDTRAX_HTTP_TIMEOUT must be a positive duration, got %q", c.HTTPTimeout)
	}
	return nil
}

// Timeout parses HTTPTimeout. Returns 30s if unset or invalid.
func (c *Config) Timeout() time.Duration {
	return parseDuration(c.HTTPTimeout, 30*time.Second)
}

// AccessTTL parses StubAccessTTL. Returns 5m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.StubAccessTTL, 5*time.Minute)
}

// RefreshTTL parses StubRefreshTTL. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.StubRefreshTTL, 168*time.Hour)
}

// AllowedOrigins returns the stub CORS origins from the comma-separated config.
func (c *Config) AllowedOrigins() []string {
	if c == nil || c.StubAllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.StubAllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LogPath resolves where logs should be written. "-" means stderr.
func (c *Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(c.StoreDir, "medtrax.log")
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// defaultStoreDir returns ~/.medtrax, or .medtrax when the home dir is unknown.
func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".medtrax"
	}
	return filepath.Join(home, ".medtrax")
}
