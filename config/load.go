package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"trade-mirror-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string                  `yaml:"env"`
	Identity  IdentityConfig          `yaml:"identity"`
	Collector CollectorConfig         `yaml:"collector"`
	Venue     VenueConfig             `yaml:"venue"`
	Sync      SyncConfig              `yaml:"sync"`
	Logging   logger.Config           `yaml:"logging"`
	Metrics   MetricsConfig           `yaml:"metrics"`
	Symbols   map[string]SymbolConfig `yaml:"symbols"`
}

// IdentityConfig identifies this mirror instance in every snapshot header.
type IdentityConfig struct {
	ID   int64  `yaml:"id"`
	Mode string `yaml:"mode"` // "Sender" or "Receiver"
}

// CollectorConfig points at the remote collector endpoint.
type CollectorConfig struct {
	BaseURL             string `yaml:"baseURL"`
	Enabled             bool   `yaml:"enabled"`
	TimeoutSeconds      int    `yaml:"timeoutSeconds"`
	ProbeTimeoutSeconds int    `yaml:"probeTimeoutSeconds"`
}

// VenueConfig points at the external position/history source.
type VenueConfig struct {
	BaseURL        string `yaml:"baseURL"`
	APIKey         string `yaml:"apiKey"`
	AccountID      int64  `yaml:"accountId"`
	StreamURL      string `yaml:"streamURL"` // optional ws endpoint for change ticks
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// SyncConfig controls the reconciliation cadence and history scan bounds.
type SyncConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds"`
	MaxDealsScan    int `yaml:"maxDealsScan"`
	LookbackDays    int `yaml:"lookbackDays"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the metrics server
}

// SymbolConfig 保存品种的报价精度（快照里价格字段的小数位来源）。
type SymbolConfig struct {
	Digits int `yaml:"digits"`
}

// Interval returns the sync cadence as a duration.
func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// Lookback returns the history window as a duration.
func (s SyncConfig) Lookback() time.Duration {
	return time.Duration(s.LookbackDays) * 24 * time.Hour
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("MIRROR_COLLECTOR_URL"); v != "" {
		cfg.Collector.BaseURL = v
	}
	if v := os.Getenv("MIRROR_VENUE_API_KEY"); v != "" {
		cfg.Venue.APIKey = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Identity.ID <= 0 {
		return errors.New("identity.id must be > 0")
	}
	if cfg.Identity.Mode != "Sender" && cfg.Identity.Mode != "Receiver" {
		return fmt.Errorf("identity.mode must be Sender or Receiver, got %q", cfg.Identity.Mode)
	}
	if cfg.Collector.Enabled && cfg.Collector.BaseURL == "" {
		return errors.New("collector.baseURL is required when reporting is enabled")
	}
	if cfg.Collector.TimeoutSeconds < 0 || cfg.Collector.ProbeTimeoutSeconds < 0 {
		return errors.New("collector timeouts must be >= 0")
	}
	if cfg.Venue.BaseURL == "" {
		return errors.New("venue.baseURL is required")
	}
	if cfg.Venue.TimeoutSeconds < 0 {
		return errors.New("venue.timeoutSeconds must be >= 0")
	}
	if cfg.Sync.IntervalSeconds <= 0 {
		return errors.New("sync.intervalSeconds must be > 0")
	}
	if cfg.Sync.MaxDealsScan <= 0 {
		return errors.New("sync.maxDealsScan must be > 0")
	}
	if cfg.Sync.LookbackDays <= 0 {
		return errors.New("sync.lookbackDays must be > 0")
	}
	for sym, sc := range cfg.Symbols {
		if sc.Digits < 0 {
			return fmt.Errorf("symbol %s digits must be >= 0", sym)
		}
	}
	return nil
}
