package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/loomworks/loom/equilibrium"
)

// Config is the complete configuration of the orchestration core.
type Config struct {
	// Log configures structured logging.
	Log LogConfig `yaml:"log"`
	// Engine configures the workflow registry.
	Engine EngineConfig `yaml:"engine"`
	// Selector configures the equilibrium selector.
	Selector equilibrium.Config `yaml:"selector"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format"`
}

// EngineConfig tunes workflow execution.
type EngineConfig struct {
	// DefaultStepTimeout applies to steps with no timeout of their own.
	DefaultStepTimeout time.Duration `yaml:"default_step_timeout"`
	// MaxHistoryEntries bounds the execution history store.
	MaxHistoryEntries int `yaml:"max_history_entries"`
	// MaxConcurrentSteps bounds steps in flight per execution; 0 = unbounded.
	MaxConcurrentSteps int `yaml:"max_concurrent_steps"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Engine: EngineConfig{
			DefaultStepTimeout: 30 * time.Second,
			MaxHistoryEntries:  100,
			MaxConcurrentSteps: 0,
		},
		Selector: equilibrium.DefaultConfig(),
	}
}

// Load builds a Config from defaults, an optional YAML file, and environment
// overrides. An empty path skips the file layer; a missing file is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays LOOM_-prefixed environment variables.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("LOOM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOOM_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LOOM_STEP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse LOOM_STEP_TIMEOUT: %w", err)
		}
		cfg.Engine.DefaultStepTimeout = d
	}
	if v := os.Getenv("LOOM_MAX_HISTORY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse LOOM_MAX_HISTORY: %w", err)
		}
		cfg.Engine.MaxHistoryEntries = n
	}
	if v := os.Getenv("LOOM_MAX_CONCURRENT_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse LOOM_MAX_CONCURRENT_STEPS: %w", err)
		}
		cfg.Engine.MaxConcurrentSteps = n
	}
	return nil
}

// Validate checks for values no component can run with.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.Engine.DefaultStepTimeout <= 0 {
		return fmt.Errorf("default_step_timeout must be positive, got %s", c.Engine.DefaultStepTimeout)
	}
	if c.Engine.MaxHistoryEntries <= 0 {
		return fmt.Errorf("max_history_entries must be positive, got %d", c.Engine.MaxHistoryEntries)
	}
	if c.Engine.MaxConcurrentSteps < 0 {
		return fmt.Errorf("max_concurrent_steps must not be negative, got %d", c.Engine.MaxConcurrentSteps)
	}
	return nil
}

// BuildLogger constructs a zap logger from the log configuration.
func (c LogConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", c.Level, err)
	}

	var zc zap.Config
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
