package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"order-guard-go/infrastructure/logger"
	"order-guard-go/tracker"
)

const (
	BackendFile   = "file"
	BackendPebble = "pebble"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string                  `yaml:"env"`
	Storage   StorageConfig           `yaml:"storage"`
	Log       logger.Config           `yaml:"log"`
	Metrics   MetricsConfig           `yaml:"metrics"`
	Alert     AlertConfig             `yaml:"alert"`
	RulesFile string                  `yaml:"rulesFile"`
	Symbols   map[string]SymbolConfig `yaml:"symbols"`
}

// StorageConfig 订单历史快照的存储位置。
type StorageConfig struct {
	Backend  string `yaml:"backend"`  // file 或 pebble
	Dir      string `yaml:"dir"`      // file: 快照目录；pebble: 数据库目录
	Capacity int    `yaml:"capacity"` // 每个交易对保留的记录数，0 使用默认值
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 为空则不启动 /metrics
}

type AlertConfig struct {
	ThrottleSeconds int `yaml:"throttleSeconds"`
}

// SymbolConfig 交易对的静态 Global 规则与精度/名义限制（来自 exchangeInfo）。
type SymbolConfig struct {
	TickSize    string     `yaml:"tickSize"`
	StepSize    string     `yaml:"stepSize"`
	MinQty      string     `yaml:"minQty"`
	MaxQty      string     `yaml:"maxQty"`
	MinNotional string     `yaml:"minNotional"`
	Global      []RuleSpec `yaml:"global"`
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
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides deployment fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("GUARD_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("GUARD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GUARD_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return cfg, Validate(cfg)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendFile
	}
	if cfg.Storage.Capacity == 0 {
		cfg.Storage.Capacity = tracker.DefaultCapacity
	}
	defaults := logger.DefaultConfig()
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Level
	}
	if len(cfg.Log.Outputs) == 0 {
		cfg.Log.Outputs = defaults.Outputs
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Format
	}
	if cfg.Alert.ThrottleSeconds == 0 {
		cfg.Alert.ThrottleSeconds = 300
	}
}

// ThrottleInterval 同一告警的最小间隔。
func (c AlertConfig) ThrottleInterval() time.Duration {
	return time.Duration(c.ThrottleSeconds) * time.Second
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	switch cfg.Storage.Backend {
	case BackendFile, BackendPebble:
	default:
		return fmt.Errorf("storage.backend %q must be %s or %s", cfg.Storage.Backend, BackendFile, BackendPebble)
	}
	if cfg.Storage.Dir == "" {
		return errors.New("storage.dir is required (or GUARD_STORAGE_DIR)")
	}
	if cfg.Storage.Capacity < 0 {
		return errors.New("storage.capacity must be >= 0")
	}
	if cfg.Alert.ThrottleSeconds < 0 {
		return errors.New("alert.throttleSeconds must be >= 0")
	}
	if len(cfg.Symbols) == 0 {
		return errors.New("symbols config is required")
	}
	for sym, sc := range cfg.Symbols {
		if len(sc.Global) == 0 {
			return fmt.Errorf("symbol %s requires at least one global rule", sym)
		}
		if _, err := sc.GlobalRules(); err != nil {
			return fmt.Errorf("symbol %s: %w", sym, err)
		}
		if _, err := sc.Constraints(); err != nil {
			return fmt.Errorf("symbol %s: %w", sym, err)
		}
	}
	return nil
}
