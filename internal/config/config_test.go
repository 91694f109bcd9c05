package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func validConfigYAML(exchangesDir string) string {
	return `
exchanges_dir: "` + exchangesDir + `"
bus:
  signal_slot_bytes: 1024
  event_slot_bytes: 4096
  signals_topic: "signals"
  events_topic: "events/trading"
  commands_topic: "engine/commands"
  responses_topic: "engine/responses"
signal:
  max_age: 100ms
  default_position_cap: "100"
risk:
  max_position_per_symbol: "100"
  max_global_exposure: "100000"
  max_daily_loss: "5000"
executor:
  concurrent_send_count: 2
  order_timeout: 2s
  max_retry_attempts: 3
logging:
  level: info
  format: text
`
}

func TestLoadAndValidateValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", validConfigYAML(dir))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
	if cfg.Signal.MaxAge != 100*time.Millisecond {
		t.Fatalf("expected 100ms max age, got %v", cfg.Signal.MaxAge)
	}
	if cfg.Executor.OrderTimeout != 2*time.Second {
		t.Fatalf("expected 2s order timeout, got %v", cfg.Executor.OrderTimeout)
	}
}

func TestValidateRejectsMissingExchangesDir(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", validConfigYAML(""))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validate error for missing exchanges_dir")
	}
}

func TestValidateRejectsMissingGlobalExposure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
exchanges_dir: "`+dir+`"
bus:
  signal_slot_bytes: 1024
  event_slot_bytes: 4096
signal:
  max_age: 100ms
  default_position_cap: "100"
risk:
  max_position_per_symbol: "100"
executor:
  concurrent_send_count: 2
  order_timeout: 2s
  max_retry_attempts: 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validate error for missing risk.max_global_exposure")
	}
}

func TestEnvOverridesExchangesDir(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", validConfigYAML("/placeholder"))

	t.Setenv("TC_EXCHANGES_DIR", dir)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.ExchangesDir != dir {
		t.Fatalf("expected env override to win, got %q", cfg.ExchangesDir)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	lc := LoggingConfig{Level: "bogus"}
	if lc.ParseLevel().String() != "INFO" {
		t.Fatalf("expected default info level, got %v", lc.ParseLevel())
	}
}
