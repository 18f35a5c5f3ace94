package sifzz

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultInstallURL is where the installer fetches script packs from
const DefaultInstallURL = "https://raw.githubusercontent.com/stuffzez/sifzz/main/modules"

// UserConfig is the per-user settings file, ~/.sifzz/config.yaml
type UserConfig struct {
	Debug           bool     `yaml:"debug"`
	LogFormat       string   `yaml:"log_format"`
	DebugCategories []string `yaml:"debug_categories"`
	ModuleDir       string   `yaml:"module_dir"`
	InstallURL      string   `yaml:"install_url"`
	Extensions      []string `yaml:"extensions"`
	HTTPTimeout     float64  `yaml:"http_timeout"`
	TermBackground  string   `yaml:"term_background"`
}

// DefaultUserConfig returns the settings used when no file exists
func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		LogFormat:      "text",
		ModuleDir:      "modules",
		InstallURL:     DefaultInstallURL,
		Extensions:     []string{"math", "file", "web", "sound"},
		HTTPTimeout:    10,
		TermBackground: "auto",
	}
}

const defaultConfigFile = `# Sifzz configuration
# This file is automatically created on first run

# Print debug output (same as -d)
debug: false

# "text" for readable messages, "json" for one JSON object per line
log_format: text

# Debug categories to show; empty means all
# parse, command, variable, list, math, flow, eval, io, module, system, net, sound, gui
debug_categories: []

# Directory holding script packs (*.yaml); relative to the working directory
module_dir: modules

# Where "sifzz -i NAME" downloads NAME.yaml from
install_url: https://raw.githubusercontent.com/stuffzez/sifzz/main/modules

# Built-in packs to load, in order
extensions: [math, file, web, sound]

# Seconds before web requests give up
http_timeout: 10

# Terminal background for REPL prompt colors: auto, dark, light
term_background: auto
`

// ConfigDir returns ~/.sifzz, or "" when there is no home directory
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sifzz")
}

// DefaultConfigPath returns ~/.sifzz/config.yaml
func DefaultConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// LoadUserConfig reads the settings file at path, creating it with defaults
// when it does not exist yet. An empty path yields the defaults.
func LoadUserConfig(path string) (*UserConfig, error) {
	cfg := DefaultUserConfig()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr == nil {
			_ = os.WriteFile(path, []byte(defaultConfigFile), 0o644)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *UserConfig) validate() error {
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	switch c.LogFormat {
	case "":
		c.LogFormat = "text"
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}

	c.TermBackground = strings.ToLower(strings.TrimSpace(c.TermBackground))
	switch c.TermBackground {
	case "":
		c.TermBackground = "auto"
	case "auto", "dark", "light":
	default:
		return fmt.Errorf("term_background must be auto, dark or light, got %q", c.TermBackground)
	}

	for _, name := range c.DebugCategories {
		if _, ok := ParseCategory(name); !ok {
			return fmt.Errorf("unknown debug category %q", name)
		}
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout must not be negative")
	}
	return nil
}

// EngineConfig derives the interpreter settings
func (c *UserConfig) EngineConfig() *Config {
	cfg := DefaultConfig()
	cfg.Debug = c.Debug
	cfg.LogFormat = c.LogFormat
	for _, name := range c.DebugCategories {
		if cat, ok := ParseCategory(name); ok {
			cfg.DebugCategories = append(cfg.DebugCategories, cat)
		}
	}
	return cfg
}

// ParseCategory maps a category name to its LogCategory
func ParseCategory(name string) (LogCategory, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, cat := range AllCategories {
		if string(cat) == name {
			return cat, true
		}
	}
	return CatNone, false
}
