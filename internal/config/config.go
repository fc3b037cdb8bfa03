// Package config handles importer configuration loading and management.
package config

import "github.com/Faultbox/h4lights/pkg/formats"

// Config holds all importer settings.
type Config struct {
	Tags    TagsConfig    `yaml:"tags"`
	Import  ImportConfig  `yaml:"import"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// TagsConfig locates lighting info tags.
type TagsConfig struct {
	// BaseDirectory is where batch selection starts. Empty means the
	// current directory.
	BaseDirectory string `yaml:"base_directory"`
	Pattern       string `yaml:"pattern"` // glob matched against file names
}

// ImportConfig holds batch import settings.
type ImportConfig struct {
	Workers int `yaml:"workers"` // files decoded concurrently
}

// ExportConfig selects the scene output.
type ExportConfig struct {
	Format string `yaml:"format"` // "gltf" or "yaml"
	// Output is the scene path. Empty means DefaultOutputName with the
	// format's extension.
	Output string `yaml:"output"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Export formats.
const (
	FormatGLTF = "gltf"
	FormatYAML = "yaml"
)

// DefaultPattern matches lighting info tags.
const DefaultPattern = "*" + formats.LightingInfoExt

// DefaultOutputName is the scene file name used when no output is set.
const DefaultOutputName = "lights"

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Tags: TagsConfig{
			BaseDirectory: "",
			Pattern:       DefaultPattern,
		},
		Import: ImportConfig{
			Workers: 4,
		},
		Export: ExportConfig{
			Format: FormatGLTF,
			Output: "",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// TagsDir returns the base directory, falling back to the current directory.
func (c *Config) TagsDir() string {
	if c.Tags.BaseDirectory == "" {
		return "."
	}
	return c.Tags.BaseDirectory
}

// OutputPath returns the export path, deriving the extension from the format
// when no output is configured.
func (c *Config) OutputPath() string {
	if c.Export.Output != "" {
		return c.Export.Output
	}
	if c.Export.Format == FormatYAML {
		return DefaultOutputName + ".yaml"
	}
	return DefaultOutputName + ".gltf"
}
