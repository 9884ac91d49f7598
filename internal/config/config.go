// Package config loads proxy configuration from command-line flags, environment variables and a .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/maproxy/maproxy/internal/validation"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Data     DataConfig
	Server   ServerConfig
	Cache    CacheConfig
	Browser  BrowserConfig
	Upstream UpstreamConfig
	Debug    DebugConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `env:"ENV" validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Dir   string `env:"LOG_DIR"` // daily log files; defaults to {data}/logs, "-" disables
}

// DataConfig holds the base directory everything else defaults under.
type DataConfig struct {
	BasePath string `env:"DATA_PATH" validate:"required"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `env:"SERVER_HOST" validate:"required"`
	Port         string        `env:"SERVER_PORT" validate:"required,numeric"`
	PublicURL    string        `env:"PUBLIC_URL" validate:"required,http_url"` // base of URLs handed back to the tagging client
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" validate:"gt=0"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// CacheConfig holds cache store configuration.
type CacheConfig struct {
	Backend string        `env:"CACHE_BACKEND" validate:"oneof=badger bolt sqlite memory"`
	Path    string        `env:"CACHE_PATH"` // directory for badger, file for bolt and sqlite
	TTL     time.Duration `env:"CACHE_TTL" validate:"gt=0"`

	SweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" validate:"gt=0"`
}

// BrowserConfig holds automation session configuration.
type BrowserConfig struct {
	Engine          string        `env:"BROWSER_ENGINE" validate:"oneof=firefox chromium webkit"`
	Headless        bool          `env:"BROWSER_HEADLESS"`
	Install         bool          `env:"BROWSER_INSTALL"` // download driver and browser on startup
	DefaultTimeout  time.Duration `env:"BROWSER_DEFAULT_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `env:"BROWSER_IDLE_TIMEOUT" validate:"gt=0"`
	MonitorInterval time.Duration `env:"BROWSER_MONITOR_INTERVAL" validate:"gt=0"`
}

// UpstreamConfig holds settings for the scraped site.
type UpstreamConfig struct {
	BaseURL         string        `env:"UPSTREAM_BASE_URL" validate:"required,http_url"`
	ScrapeTimeout   time.Duration `env:"UPSTREAM_SCRAPE_TIMEOUT" validate:"gt=0"`
	PreloadTimeout  time.Duration `env:"UPSTREAM_PRELOAD_TIMEOUT" validate:"gt=0"`
	SettleDelay     time.Duration `env:"UPSTREAM_SETTLE_DELAY" validate:"gte=0"`
	PreloadRetries  int           `env:"UPSTREAM_PRELOAD_RETRIES" validate:"gte=1"`
	PreloadBackoff  time.Duration `env:"UPSTREAM_PRELOAD_BACKOFF" validate:"gte=0"`
	RequestsPerSec  float64       `env:"UPSTREAM_RPS" validate:"gt=0"`
	Burst           int           `env:"UPSTREAM_BURST" validate:"gte=1"`
	BreakerFailures int           `env:"UPSTREAM_BREAKER_FAILURES" validate:"gte=1"`
	BreakerCooldown time.Duration `env:"UPSTREAM_BREAKER_COOLDOWN" validate:"gt=0"`
}

// DebugConfig controls the debug dump files.
type DebugConfig struct {
	Enabled bool   `env:"DEBUG_DUMP"`
	Path    string `env:"DEBUG_PATH"`
}

// LoadConfig loads configuration from os.Args.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("maproxy", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logDir := fs.String("log-dir", "", "Directory for daily log files (- disables)")
	dataPath := fs.String("data-path", "", "Base path for cache, logs and debug dumps")
	host := fs.String("host", "", "Listen host (default: localhost)")
	port := fs.String("port", "", "Listen port (default: 5000)")
	publicURL := fs.String("public-url", "", "Base URL written into result links (default: http://<host>:<port>)")
	cacheBackend := fs.String("cache-backend", "", "Cache backend: badger, bolt, sqlite, memory (default: badger)")
	cachePath := fs.String("cache-path", "", "Cache location (default: {data}/ma_cache.*)")
	cacheTTL := fs.String("cache-ttl", "", "Cache entry lifetime (default: 360h)")
	engine := fs.String("browser", "", "Browser engine: firefox, chromium, webkit (default: firefox)")
	headless := fs.String("headless", "", "Run the browser headless (default: true)")
	install := fs.String("install-browser", "", "Install the automation driver and browser at startup (default: false)")
	idle := fs.String("browser-idle-timeout", "", "Close the browser after this much inactivity (default: 15m)")
	debugDump := fs.String("debug-dump", "", "Write debug dump files (default: false)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env is fine; existing environment variables always win.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: strings.ToLower(getConfigValue(*logLevel, "LOG_LEVEL", "info")),
			Dir:   getConfigValue(*logDir, "LOG_DIR", ""),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Host:      getConfigValue(*host, "SERVER_HOST", "localhost"),
			Port:      getConfigValue(*port, "SERVER_PORT", "5000"),
			PublicURL: getConfigValue(*publicURL, "PUBLIC_URL", ""),
		},
		Cache: CacheConfig{
			Backend: getConfigValue(*cacheBackend, "CACHE_BACKEND", "badger"),
			Path:    getConfigValue(*cachePath, "CACHE_PATH", ""),
		},
		Browser: BrowserConfig{
			Engine:   getConfigValue(*engine, "BROWSER_ENGINE", "firefox"),
			Headless: getBoolConfigValue(*headless, "BROWSER_HEADLESS", true),
			Install:  getBoolConfigValue(*install, "BROWSER_INSTALL", false),
		},
		Upstream: UpstreamConfig{
			BaseURL:         strings.TrimRight(getConfigValue("", "UPSTREAM_BASE_URL", "https://www.metal-archives.com"), "/"),
			PreloadRetries:  getIntConfigValue("", "UPSTREAM_PRELOAD_RETRIES", 3),
			Burst:           getIntConfigValue("", "UPSTREAM_BURST", 3),
			BreakerFailures: getIntConfigValue("", "UPSTREAM_BREAKER_FAILURES", 5),
		},
		Debug: DebugConfig{
			Enabled: getBoolConfigValue(*debugDump, "DEBUG_DUMP", false),
			Path:    getConfigValue("", "DEBUG_PATH", ""),
		},
	}

	rps, err := getFloatConfigValue("", "UPSTREAM_RPS", 1)
	if err != nil {
		return nil, err
	}
	cfg.Upstream.RequestsPerSec = rps

	durations := []struct {
		dst        *time.Duration
		flagValue  string
		envKey     string
		defaultVal string
	}{
		{&cfg.Server.ReadTimeout, "", "SERVER_READ_TIMEOUT", "15s"},
		// Uncached album lookups drive a real browser and routinely exceed a minute.
		{&cfg.Server.WriteTimeout, "", "SERVER_WRITE_TIMEOUT", "180s"},
		{&cfg.Server.IdleTimeout, "", "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Cache.TTL, *cacheTTL, "CACHE_TTL", "360h"},
		{&cfg.Cache.SweepInterval, "", "CACHE_SWEEP_INTERVAL", "1h"},
		{&cfg.Browser.DefaultTimeout, "", "BROWSER_DEFAULT_TIMEOUT", "15s"},
		{&cfg.Browser.IdleTimeout, *idle, "BROWSER_IDLE_TIMEOUT", "15m"},
		{&cfg.Browser.MonitorInterval, "", "BROWSER_MONITOR_INTERVAL", "60s"},
		{&cfg.Upstream.ScrapeTimeout, "", "UPSTREAM_SCRAPE_TIMEOUT", "60s"},
		{&cfg.Upstream.PreloadTimeout, "", "UPSTREAM_PRELOAD_TIMEOUT", "10s"},
		{&cfg.Upstream.SettleDelay, "", "UPSTREAM_SETTLE_DELAY", "3s"},
		{&cfg.Upstream.PreloadBackoff, "", "UPSTREAM_PRELOAD_BACKOFF", "5s"},
		{&cfg.Upstream.BreakerCooldown, "", "UPSTREAM_BREAKER_COOLDOWN", "2m"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.defaultVal)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = "http://" + cfg.Server.Addr()
	}
	cfg.Server.PublicURL = strings.TrimRight(cfg.Server.PublicURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	v := validation.New()
	for _, section := range []any{c.App, c.Logger, c.Data, c.Server, c.Cache, c.Browser, c.Upstream} {
		if err := v.Validate(section); err != nil {
			return errors.New(validation.Summary(err))
		}
	}

	if c.Browser.MonitorInterval > c.Browser.IdleTimeout {
		return fmt.Errorf("BROWSER_MONITOR_INTERVAL (%s) must not exceed BROWSER_IDLE_TIMEOUT (%s)",
			c.Browser.MonitorInterval, c.Browser.IdleTimeout)
	}

	if u, err := url.Parse(c.Server.PublicURL); err != nil || u.Host == "" {
		return fmt.Errorf("invalid PUBLIC_URL: %q", c.Server.PublicURL)
	}

	return nil
}

// LogDir returns the directory for daily log files, or "" when disabled.
func (c *Config) LogDir() string {
	if c.Logger.Dir == "-" {
		return ""
	}
	return c.Logger.Dir
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandPaths resolves the data directory and everything that defaults beneath it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	base, err := expandPath(c.Data.BasePath, filepath.Join(homeDir, ".maproxy"))
	if err != nil {
		return err
	}
	c.Data.BasePath = base

	cacheDefault := filepath.Join(base, defaultCacheName(c.Cache.Backend))
	if c.Cache.Path, err = expandPath(c.Cache.Path, cacheDefault); err != nil {
		return err
	}

	if c.Logger.Dir != "-" {
		if c.Logger.Dir, err = expandPath(c.Logger.Dir, filepath.Join(base, "logs")); err != nil {
			return err
		}
	}

	if c.Debug.Path, err = expandPath(c.Debug.Path, filepath.Join(base, "debug")); err != nil {
		return err
	}

	return nil
}

func defaultCacheName(backend string) string {
	switch backend {
	case "bolt":
		return "ma_cache.bolt"
	case "sqlite":
		return "ma_cache.sqlite"
	default:
		return "ma_cache.db"
	}
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) (float64, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return result, nil
}
