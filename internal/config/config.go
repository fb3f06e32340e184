// Package config loads the rules engine configuration from a YAML file with
// MAGE_RULES_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// MAGE_RULES_LOGGING_LEVEL.
const EnvPrefix = "MAGE_RULES"

// Config holds all configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Damage  DamageConfig  `mapstructure:"damage"`
	Combat  CombatConfig  `mapstructure:"combat"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig holds trigger detection settings.
type EngineConfig struct {
	UseTriggerIndex    bool `mapstructure:"use_trigger_index"`
	VerifyTriggerIndex bool `mapstructure:"verify_trigger_index"`
}

// DamageConfig holds damage projection settings.
type DamageConfig struct {
	MaxReplacementIterations int `mapstructure:"max_replacement_iterations"`
}

// CombatConfig holds combat declaration settings.
type CombatConfig struct {
	AutoOrderBlockers bool `mapstructure:"auto_order_blockers"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Engine:  EngineConfig{UseTriggerIndex: true},
		Damage:  DamageConfig{MaxReplacementIterations: 100},
		Combat:  CombatConfig{AutoOrderBlockers: true},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("engine.use_trigger_index", d.Engine.UseTriggerIndex)
	v.SetDefault("engine.verify_trigger_index", d.Engine.VerifyTriggerIndex)
	v.SetDefault("damage.max_replacement_iterations", d.Damage.MaxReplacementIterations)
	v.SetDefault("combat.auto_order_blockers", d.Combat.AutoOrderBlockers)
}

// Load reads the configuration at path. An empty path loads defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid logging.format %q", c.Logging.Format)
	}
	if c.Damage.MaxReplacementIterations <= 0 {
		return errors.New("damage.max_replacement_iterations must be positive")
	}
	return nil
}
