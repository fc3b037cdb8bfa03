package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	// explicit path takes priority
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the importer cannot run with.
func (c *Config) Validate() error {
	switch c.Export.Format {
	case FormatGLTF, FormatYAML:
	default:
		return fmt.Errorf("unknown export format %q", c.Export.Format)
	}
	if c.Import.Workers < 1 {
		return fmt.Errorf("import workers must be at least 1, got %d", c.Import.Workers)
	}
	if _, err := filepath.Match(c.Tags.Pattern, ""); err != nil {
		return fmt.Errorf("tags pattern %q: %w", c.Tags.Pattern, err)
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./h4lights.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "H4Lights")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "H4Lights")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "h4lights")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "h4lights")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
