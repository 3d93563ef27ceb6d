// Package config loads the harvester configuration from a YAML file, .env
// files and the environment.
//
// Loading order, later steps winning:
//
//  1. .env.local then .env (or only the file named by ENV_FILE)
//  2. the YAML file
//  3. defaults for every unset field
//  4. environment variables named by `env` struct tags
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration of a run.
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	Browser   BrowserConfig   `yaml:"browser"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Database  DatabaseConfig  `yaml:"database"`
	Logs      LogsConfig      `yaml:"logs"`
	Transform TransformConfig `yaml:"transform"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AccountConfig identifies the scraping account. Credentials only come from
// the environment.
type AccountConfig struct {
	// Handle is the account whose followers are harvested. Defaults to
	// Username.
	Handle   string `yaml:"handle" env:"X_ACCOUNT"`
	Username string `yaml:"-" env:"X_USERNAME"`
	Password string `yaml:"-" env:"X_PASSWORD"`
	Contact  string `yaml:"-" env:"X_CONTACT"`
}

// BrowserConfig controls the browser session and page readiness.
type BrowserConfig struct {
	BaseURL      string        `yaml:"base_url" env:"X_BASE_URL"`
	Headed       bool          `yaml:"headed"`
	ProxyURL     string        `yaml:"proxy" env:"X_PROXY"`
	ProfileDir   string        `yaml:"profile_dir" env:"FFPROFILEPATH"`
	NavTimeout   time.Duration `yaml:"nav_timeout"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
	LoginTimeout time.Duration `yaml:"login_timeout"`
	ListTimeout  time.Duration `yaml:"list_timeout"`
	SettleMin    time.Duration `yaml:"settle_min"`
	SettleMax    time.Duration `yaml:"settle_max"`
}

// RuntimeConfig controls concurrency, retries and filtering.
type RuntimeConfig struct {
	MaxParallel      int           `yaml:"max_parallel" env:"MAX_PARALLEL"`
	MaxRetries       int           `yaml:"max_retries" env:"MAX_RETRIES"`
	BackoffBase      time.Duration `yaml:"backoff_base"`
	BackoffIncrement time.Duration `yaml:"backoff_increment"`
	// FilterPolicy is "boundary" or "difference".
	FilterPolicy string `yaml:"filter_policy"`
	// FailureMode is "collect" or "suppress".
	FailureMode string `yaml:"failure_mode"`
	SkipKnown   bool   `yaml:"skip_known"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host         string `yaml:"host" env:"PG_HOST"`
	Port         int    `yaml:"port" env:"PG_PORT"`
	User         string `yaml:"user" env:"PG_USER"`
	Password     string `yaml:"-" env:"PG_PASSWORD"`
	Name         string `yaml:"name" env:"PG_DATABASE"`
	SSLMode      string `yaml:"sslmode" env:"PG_SSLMODE"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// LogsConfig selects log verbosity and encoding.
type LogsConfig struct {
	Debug bool `yaml:"debug" env:"LOG_DEBUG"`
	JSON  bool `yaml:"json" env:"LOG_JSON"`
}

// TransformConfig tunes markup parsing.
type TransformConfig struct {
	// Locales are tried for month names after English, e.g. "fr_FR".
	Locales []string `yaml:"locales" env:"X_LOCALES"`
}

// MetricsConfig enables the node-exporter textfile.
type MetricsConfig struct {
	// TextfilePath is written after each run when set.
	TextfilePath string `yaml:"textfile_path" env:"METRICS_TEXTFILE"`
}

// Default values.
const (
	DefaultBaseURL          = "https://x.com"
	DefaultNavTimeout       = 30 * time.Second
	DefaultReadyTimeout     = 30 * time.Second
	DefaultLoginTimeout     = 20 * time.Second
	DefaultListTimeout      = 10 * time.Second
	DefaultSettleMin        = 5 * time.Second
	DefaultSettleMax        = 6 * time.Second
	DefaultMaxParallel      = 3
	DefaultMaxRetries       = 3
	DefaultBackoffBase      = 2 * time.Second
	DefaultBackoffIncrement = 2 * time.Second
	DefaultFilterPolicy     = "boundary"
	DefaultFailureMode      = "collect"
	DefaultDBHost           = "localhost"
	DefaultDBPort           = 5432
	DefaultDBUser           = "postgres"
	DefaultDBName           = "watchdxg"
	DefaultSSLMode          = "disable"
	DefaultMaxOpenConns     = 10
)

// Load reads path, applies defaults and environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFiles loads ENV_FILE when set, otherwise .env.local then .env.
// Missing files are ignored. godotenv never overrides variables already
// set, so .env.local wins over .env.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	if c.Account.Handle == "" {
		c.Account.Handle = c.Account.Username
	}

	b := &c.Browser
	if b.BaseURL == "" {
		b.BaseURL = DefaultBaseURL
	}
	setDuration(&b.NavTimeout, DefaultNavTimeout)
	setDuration(&b.ReadyTimeout, DefaultReadyTimeout)
	setDuration(&b.LoginTimeout, DefaultLoginTimeout)
	setDuration(&b.ListTimeout, DefaultListTimeout)
	switch {
	case b.SettleMin == 0 && b.SettleMax == 0:
		b.SettleMin, b.SettleMax = DefaultSettleMin, DefaultSettleMax
	case b.SettleMax == 0:
		b.SettleMax = max(b.SettleMin, DefaultSettleMax)
	}

	r := &c.Runtime
	if r.MaxParallel == 0 {
		r.MaxParallel = DefaultMaxParallel
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = DefaultMaxRetries
	}
	setDuration(&r.BackoffBase, DefaultBackoffBase)
	setDuration(&r.BackoffIncrement, DefaultBackoffIncrement)
	if r.FilterPolicy == "" {
		r.FilterPolicy = DefaultFilterPolicy
	}
	if r.FailureMode == "" {
		r.FailureMode = DefaultFailureMode
	}

	d := &c.Database
	if d.Host == "" {
		d.Host = DefaultDBHost
	}
	if d.Port == 0 {
		d.Port = DefaultDBPort
	}
	if d.User == "" {
		d.User = DefaultDBUser
	}
	if d.Name == "" {
		d.Name = DefaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = DefaultSSLMode
	}
	if d.MaxOpenConns == 0 {
		d.MaxOpenConns = DefaultMaxOpenConns
	}
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}
