// Package config handles configuration loading for navi.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/navihq/navi/internal/state"
)

// Config holds all configuration for navi.
type Config struct {
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	State        StateConfig        `mapstructure:"state"`
	Server       ServerConfig       `mapstructure:"server"`
}

// OrchestratorConfig holds the tree-wide limits.
type OrchestratorConfig struct {
	// MaxDepth is the maximum session tree depth.
	MaxDepth int `mapstructure:"max_depth"`
	// MaxConcurrent caps active sessions per root tree.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// ArchiveDelay is how long a delivered session stays visible before
	// archival.
	ArchiveDelay time.Duration `mapstructure:"archive_delay"`
	// DebugLog is an optional path for the orchestrator debug log.
	DebugLog string `mapstructure:"debug_log"`
}

// StateConfig holds persistence settings.
type StateConfig struct {
	// DBPath is the SQLite database location.
	DBPath string `mapstructure:"db_path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Listen is the bind address.
	Listen string `mapstructure:"listen"`
	// AuthToken, when set, is required as a bearer token on every request.
	AuthToken string `mapstructure:"auth_token"`
}

// UserConfigDir returns the navi config directory under XDG config.
func UserConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "navi")
}

// Load reads configuration with the following precedence:
// 1. Environment variables (NAVI_ prefix)
// 2. Project config (./navi.yaml)
// 3. User config (~/.config/navi/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(UserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if _, err := os.Stat("navi.yaml"); err == nil {
		projectViper := viper.New()
		projectViper.SetConfigFile("navi.yaml")
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("NAVI")
	v.AutomaticEnv()
	v.BindEnv("server.auth_token", "NAVI_AUTH_TOKEN")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("orchestrator.max_depth", 5)
	v.SetDefault("orchestrator.max_concurrent", 8)
	v.SetDefault("orchestrator.archive_delay", 5*time.Second)
	v.SetDefault("orchestrator.debug_log", "")
	v.SetDefault("state.db_path", state.DefaultDBPath())
	v.SetDefault("server.listen", "127.0.0.1:7431")
	v.SetDefault("server.auth_token", "")
}
