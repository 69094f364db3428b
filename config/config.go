// Package config holds simulator configuration loaded from TOML, following
// the teacher's nested-struct-with-defaults pattern
// (_examples/lookbusy1344-arm_emulator/config).
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// appName names the subdirectory this simulator's config and log files live
// under, within the OS's conventional per-user config directory.
const appName = "pipeline-sim"

// Config represents the simulator's tunable settings.
type Config struct {
	// Execution settings.
	Execution struct {
		MaxCycles   uint64 `toml:"max_cycles"`
		DefaultMode string `toml:"default_mode"` // FS, NF, or WF
		EnableTrace bool   `toml:"enable_trace"`
	} `toml:"execution"`

	// Display settings for the final-state report and summary window.
	Display struct {
		ColorOutput  bool   `toml:"color_output"`
		NumberFormat string `toml:"number_format"` // hex, dec
	} `toml:"display"`

	// Trace settings for the per-cycle log emitted under --debug.
	Trace struct {
		OutputFile string `toml:"output_file"`
		MaxEntries int    `toml:"max_entries"`
	} `toml:"trace"`

	// TUI settings for the live pipeline latch viewer.
	TUI struct {
		RefreshEveryCycle bool `toml:"refresh_every_cycle"`
		HistoryRows       int  `toml:"history_rows"`
	} `toml:"tui"`
}

// DefaultConfig returns a configuration with the simulator's default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Execution.MaxCycles = 200_000
	cfg.Execution.DefaultMode = "WF"
	cfg.Execution.EnableTrace = false

	cfg.Display.ColorOutput = true
	cfg.Display.NumberFormat = "hex"

	cfg.Trace.OutputFile = "trace.log"
	cfg.Trace.MaxEntries = 100_000

	cfg.TUI.RefreshEveryCycle = true
	cfg.TUI.HistoryRows = 20

	return cfg
}

// baseDir resolves the OS's per-user config directory (honoring
// XDG_CONFIG_HOME on Linux, AppData on Windows, Library/Application Support
// on macOS via the standard library) and appends appName, creating it if
// needed. The fallback on any resolution failure is the current directory.
func baseDir(sub string) string {
	root, err := os.UserConfigDir()
	if err != nil {
		return sub
	}
	dir := filepath.Join(root, appName)
	if sub != "" {
		dir = filepath.Join(dir, sub)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return sub
	}
	return dir
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	dir := baseDir("")
	if dir == "" {
		return "config.toml"
	}
	return filepath.Join(dir, "config.toml")
}

// GetLogPath returns the platform-specific log directory path.
func GetLogPath() string {
	dir := baseDir("logs")
	if dir == "" {
		return "logs"
	}
	return dir
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file. A missing file is
// not an error: it yields the default configuration.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo encodes the config to TOML and writes it to path in one shot,
// creating the parent directory first.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config directory for %s: %w", path, err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil { // #nosec G304 -- user config file path
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
