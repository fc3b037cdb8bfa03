package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagTagsDir = flag.String("tags-dir", "", "Base directory for tag files")
	flagWorkers = flag.Int("workers", 0, "Files decoded concurrently")
	flagFormat  = flag.String("format", "", "Export format (gltf, yaml)")
	flagOut     = flag.String("out", "", "Export output path")
	flagLogFile = flag.String("log-file", "", "Write logs to this file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagTagsDir != "" {
		cfg.Tags.BaseDirectory = *flagTagsDir
	}
	if *flagWorkers > 0 {
		cfg.Import.Workers = *flagWorkers
	}
	if *flagFormat != "" {
		cfg.Export.Format = *flagFormat
	}
	if *flagOut != "" {
		cfg.Export.Output = *flagOut
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
}
