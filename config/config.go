package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Expiry rules understood by the lifecycle service.
const (
	ExpiryRuleLegacy = "legacy"
	ExpiryRuleLapsed = "lapsed"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// LifecycleConfig controls the server status machine and the sweeper that drives it.
type LifecycleConfig struct {
	SweepEnabled         bool          `yaml:"sweep_enabled"`
	SweepIntervalSeconds int           `yaml:"sweep_interval_seconds"`
	SweepInterval        time.Duration `yaml:"-"` // Ignored by YAML parser
	SettleMinSeconds     int           `yaml:"settle_min_seconds"`
	SettleMaxSeconds     int           `yaml:"settle_max_seconds"`
	ExpiryRule           string        `yaml:"expiry_rule"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Lifecycle.SweepIntervalSeconds <= 0 {
		cfg.Lifecycle.SweepIntervalSeconds = 5
	}
	cfg.Lifecycle.SweepInterval = time.Duration(cfg.Lifecycle.SweepIntervalSeconds) * time.Second

	if cfg.Lifecycle.SettleMinSeconds <= 0 {
		cfg.Lifecycle.SettleMinSeconds = 5
	}
	if cfg.Lifecycle.SettleMaxSeconds <= 0 {
		cfg.Lifecycle.SettleMaxSeconds = 15
	}
	if cfg.Lifecycle.SettleMaxSeconds < cfg.Lifecycle.SettleMinSeconds {
		return fmt.Errorf("lifecycle.settle_max_seconds (%d) is below settle_min_seconds (%d)",
			cfg.Lifecycle.SettleMaxSeconds, cfg.Lifecycle.SettleMinSeconds)
	}

	switch cfg.Lifecycle.ExpiryRule {
	case "":
		cfg.Lifecycle.ExpiryRule = ExpiryRuleLegacy
	case ExpiryRuleLegacy, ExpiryRuleLapsed:
	default:
		return fmt.Errorf("unknown lifecycle.expiry_rule %q", cfg.Lifecycle.ExpiryRule)
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	return nil
}

// Default returns a configuration with every default applied, as if loaded from an empty file.
func Default() *Config {
	var cfg Config
	// The zero config only fails validation on bad input, which it has none of.
	_ = cfg.applyDefaults()
	return &cfg
}
