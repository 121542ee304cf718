package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/navihq/navi/internal/config"
	"github.com/navihq/navi/internal/state"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Create ~/.config/navi/config.yaml with the default settings
so they can be edited in place.

Examples:
  navi init          # Write the starter config
  navi init --force  # Overwrite an existing config`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

// starterConfig mirrors config.Config with yaml tags and comments baked
// into the marshaled output via field order.
type starterConfig struct {
	Orchestrator struct {
		MaxDepth      int           `yaml:"max_depth"`
		MaxConcurrent int           `yaml:"max_concurrent"`
		ArchiveDelay  time.Duration `yaml:"archive_delay"`
		DebugLog      string        `yaml:"debug_log"`
	} `yaml:"orchestrator"`
	State struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"state"`
	Server struct {
		Listen    string `yaml:"listen"`
		AuthToken string `yaml:"auth_token"`
	} `yaml:"server"`
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := config.UserConfigDir()
	path := filepath.Join(dir, "config.yaml")

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var sc starterConfig
	sc.Orchestrator.MaxDepth = 5
	sc.Orchestrator.MaxConcurrent = 8
	sc.Orchestrator.ArchiveDelay = 5 * time.Second
	sc.State.DBPath = state.DefaultDBPath()
	sc.Server.Listen = "127.0.0.1:7431"

	data, err := yaml.Marshal(&sc)
	if err != nil {
		return fmt.Errorf("marshaling starter config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	color.Green("wrote %s", path)
	return nil
}
