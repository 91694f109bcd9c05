package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level per-process settings file. All three cmd/
// entrypoints share this shape; a given process only reads the sections it
// needs (§6: "Configuration... under a configurable directory").
type Config struct {
	ExchangesDir string         `mapstructure:"exchanges_dir"`
	Bus          BusConfig      `mapstructure:"bus"`
	Signal       SignalConfig   `mapstructure:"signal"`
	Risk         RiskConfig     `mapstructure:"risk"`
	Executor     ExecutorConfig `mapstructure:"executor"`
	Logging      LoggingConfig  `mapstructure:"logging"`
}

// BusConfig describes the shared-memory bus topics (§6). The bus itself is
// an external collaborator; this only carries the handle parameters a
// process needs to attach to it.
type BusConfig struct {
	SignalSlotBytes int    `mapstructure:"signal_slot_bytes"`
	EventSlotBytes  int    `mapstructure:"event_slot_bytes"`
	SignalsTopic    string `mapstructure:"signals_topic"`
	EventsTopic     string `mapstructure:"events_topic"`
	CommandsTopic   string `mapstructure:"commands_topic"`
	ResponsesTopic  string `mapstructure:"responses_topic"`
}

// SignalConfig tunes the pre-pipeline's staleness and sizing checks (§4.9 in
// spec terms, C9 here).
type SignalConfig struct {
	MaxAge             time.Duration `mapstructure:"max_age"`
	DefaultPositionCap string        `mapstructure:"default_position_cap"`
	PersistInterval    time.Duration `mapstructure:"persist_interval"`
}

// RiskConfig mirrors the teacher's RiskConfig shape, retargeted at the
// control plane's per-symbol/global exposure limits instead of market-maker
// kill-switch thresholds.
type RiskConfig struct {
	MaxPositionPerSymbol string        `mapstructure:"max_position_per_symbol"`
	MaxGlobalExposure    string        `mapstructure:"max_global_exposure"`
	MaxDailyLoss         string        `mapstructure:"max_daily_loss"`
	CooldownAfterVeto    time.Duration `mapstructure:"cooldown_after_veto"`
}

// ExecutorConfig tunes C13's fan-out/retry behavior.
type ExecutorConfig struct {
	ConcurrentSendCount int           `mapstructure:"concurrent_send_count"`
	OrderTimeout        time.Duration `mapstructure:"order_timeout"`
	MaxRetryAttempts    int           `mapstructure:"max_retry_attempts"`
	DedupSweepInterval  time.Duration `mapstructure:"dedup_sweep_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads cfg from a YAML file; sensitive fields (exchange API secrets)
// are sourced from TC_* environment variables rather than the file, mirroring
// the teacher's POLY_* override pattern.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if dir := os.Getenv("TC_EXCHANGES_DIR"); dir != "" {
		cfg.ExchangesDir = dir
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges, in the teacher's
// Validate style (one fmt.Errorf per failing field, first failure wins).
func (c *Config) Validate() error {
	if c.ExchangesDir == "" {
		return fmt.Errorf("exchanges_dir is required")
	}
	if c.Bus.SignalSlotBytes <= 0 {
		return fmt.Errorf("bus.signal_slot_bytes must be > 0")
	}
	if c.Bus.EventSlotBytes <= 0 {
		return fmt.Errorf("bus.event_slot_bytes must be > 0")
	}
	if c.Signal.MaxAge <= 0 {
		return fmt.Errorf("signal.max_age must be > 0")
	}
	if c.Signal.DefaultPositionCap == "" {
		return fmt.Errorf("signal.default_position_cap is required")
	}
	if c.Risk.MaxPositionPerSymbol == "" {
		return fmt.Errorf("risk.max_position_per_symbol is required")
	}
	if c.Risk.MaxGlobalExposure == "" {
		return fmt.Errorf("risk.max_global_exposure is required")
	}
	if c.Executor.ConcurrentSendCount <= 0 {
		return fmt.Errorf("executor.concurrent_send_count must be > 0")
	}
	if c.Executor.OrderTimeout <= 0 {
		return fmt.Errorf("executor.order_timeout must be > 0")
	}
	if c.Executor.MaxRetryAttempts <= 0 {
		return fmt.Errorf("executor.max_retry_attempts must be > 0")
	}
	return nil
}

// ParseLevel maps the config string to an slog.Level, defaulting to Info for
// unrecognized values, following the teacher's cmd/bot/main.go parseLogLevel.
func (c LoggingConfig) ParseLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
