// Package config loads chaintrail settings from an optional .env file, an
// optional YAML file and the environment, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brojonat/chaintrail/service/ledger"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session backends.
const (
	BackendFile   = "file"
	BackendPebble = "pebble"
)

// DefaultPath is the YAML file read when no --config flag is given.
const DefaultPath = "chaintrail.yaml"

// Config holds all application configuration.
type Config struct {
	// Ledger configuration
	Network        string        `yaml:"network"`
	EsploraURL     string        `yaml:"esplora_url"`
	RequestDelay   time.Duration `yaml:"request_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RecentTxCount  int           `yaml:"recent_tx_count"`

	// Session storage
	SessionBackend string `yaml:"session_backend"`
	SessionDir     string `yaml:"session_dir"`
	PebblePath     string `yaml:"pebble_path"`

	// Logging and metrics
	ErrorLogFile  string `yaml:"error_log_file"`
	ErrorLogMaxKB int64  `yaml:"error_log_max_kb"`
	LogLevel      string `yaml:"log_level"`
	MetricsAddr   string `yaml:"metrics_addr"`
	NoColor       bool   `yaml:"no_color"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Network:        "mainnet",
		RequestDelay:   2 * time.Second,
		RequestTimeout: 30 * time.Second,
		RecentTxCount:  5,
		SessionBackend: BackendFile,
		SessionDir:     ".",
		PebblePath:     "./data/sessions",
		ErrorLogFile:   "chaintrail_errors.log",
		ErrorLogMaxKB:  1024,
		LogLevel:       "warn",
	}
}

// Load reads .env (if present), the YAML file at path (if present) and then
// environment overrides. All validation errors are reported together.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	var errs []error
	errs = append(errs, cfg.loadEnv()...)
	if cfg.EsploraURL == "" {
		cfg.EsploraURL = ledger.DefaultEsploraURL(cfg.Network)
	}
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func loadDotEnv(name string) error {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(name)
}

func (c *Config) loadFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) loadEnv() []error {
	var errs []error

	c.Network = getEnvOrDefault("CHAINTRAIL_NETWORK", c.Network)
	c.EsploraURL = getEnvOrDefault("ESPLORA_URL", c.EsploraURL)
	c.SessionBackend = getEnvOrDefault("SESSION_BACKEND", c.SessionBackend)
	c.SessionDir = getEnvOrDefault("SESSION_DIR", c.SessionDir)
	c.PebblePath = getEnvOrDefault("PEBBLE_PATH", c.PebblePath)
	c.ErrorLogFile = getEnvOrDefault("ERROR_LOG_FILE", c.ErrorLogFile)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.MetricsAddr = getEnvOrDefault("METRICS_ADDR", c.MetricsAddr)

	// NO_COLOR follows the no-color.org convention: any non-empty value.
	if os.Getenv("NO_COLOR") != "" {
		c.NoColor = true
	}

	if d, err := parseDuration("REQUEST_DELAY", c.RequestDelay); err != nil {
		errs = append(errs, err)
	} else {
		c.RequestDelay = d
	}
	if d, err := parseDuration("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		errs = append(errs, err)
	} else {
		c.RequestTimeout = d
	}
	if n, err := parseInt("RECENT_TX_COUNT", c.RecentTxCount); err != nil {
		errs = append(errs, err)
	} else {
		c.RecentTxCount = n
	}
	if n, err := parseInt("ERROR_LOG_MAX_KB", int(c.ErrorLogMaxKB)); err != nil {
		errs = append(errs, err)
	} else {
		c.ErrorLogMaxKB = int64(n)
	}

	return errs
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ledger.NetworkParams(c.Network); err != nil {
		errs = append(errs, fmt.Errorf("network: %w", err))
	}
	if c.EsploraURL == "" {
		errs = append(errs, fmt.Errorf("EsploraURL is required"))
	}
	if c.RequestDelay < 0 {
		errs = append(errs, fmt.Errorf("RequestDelay cannot be negative"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RequestTimeout must be positive"))
	}
	if c.RecentTxCount < 1 {
		errs = append(errs, fmt.Errorf("RecentTxCount must be at least 1"))
	}
	switch c.SessionBackend {
	case BackendFile:
	case BackendPebble:
		if c.PebblePath == "" {
			errs = append(errs, fmt.Errorf("PebblePath is required for the pebble backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session backend %q", c.SessionBackend))
	}
	if c.ErrorLogMaxKB < 1 {
		errs = append(errs, fmt.Errorf("ErrorLogMaxKB must be at least 1"))
	}

	return errors.Join(errs...)
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or keeps the current value.
func parseDuration(key string, current time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return current, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or keeps the current value.
func parseInt(key string, current int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return current, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
