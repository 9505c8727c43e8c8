package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
env: dev
identity:
  id: 1
  mode: Sender
collector:
  baseURL: http://127.0.0.1:5000
  enabled: true
  timeoutSeconds: 10
  probeTimeoutSeconds: 3
venue:
  baseURL: https://api.test
  apiKey: foo
  timeoutSeconds: 10
sync:
  intervalSeconds: 5
  maxDealsScan: 100
  lookbackDays: 7
logging:
  level: info
  outputs: [stdout]
  format: json
symbols:
  EURUSD:
    digits: 5
  XAUUSD:
    digits: 2
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "dev" || cfg.Identity.ID != 1 || cfg.Identity.Mode != "Sender" {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	if cfg.Symbols["XAUUSD"].Digits != 2 {
		t.Fatalf("symbol digits not parsed: %+v", cfg.Symbols)
	}
	if cfg.Sync.Interval().Seconds() != 5 {
		t.Fatalf("unexpected interval: %v", cfg.Sync.Interval())
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	t.Setenv("MIRROR_COLLECTOR_URL", "http://collector.internal:5000")
	t.Setenv("MIRROR_VENUE_API_KEY", "env-key")
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Collector.BaseURL != "http://collector.internal:5000" {
		t.Fatalf("collector override not applied: %+v", cfg.Collector)
	}
	if cfg.Venue.APIKey != "env-key" {
		t.Fatalf("venue override not applied: %+v", cfg.Venue)
	}
}

func TestValidate(t *testing.T) {
	err := Validate(AppConfig{})
	if err == nil {
		t.Fatalf("expected error for empty config")
	}
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Identity.Mode = "Relay"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestValidateRequiresCollectorURLWhenEnabled(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Collector.BaseURL = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for enabled collector without baseURL")
	}
	cfg.Collector.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled collector should not require baseURL: %v", err)
	}
}
