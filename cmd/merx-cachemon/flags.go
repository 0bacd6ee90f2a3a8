package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath       string
	LogLevel         string
	LogFormat        string
	SnapshotInterval time.Duration
	ShutdownTimeout  time.Duration
	ShowVersion      bool
	Validate         bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config", "",
		"Path to YAML configuration file (defaults to MERX_CONFIG_FILE)")
	flag.StringVar(&cfg.ConfigPath, "c", "",
		"Path to YAML configuration file (shorthand)")
	flag.StringVar(&cfg.LogLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFormat, "log-format", "json",
		"Log format: json or text")
	flag.DurationVar(&cfg.SnapshotInterval, "snapshot-interval", 30*time.Second,
		"Interval between cache statistics snapshots")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 10*time.Second,
		"Graceful shutdown timeout")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", appName)
		fmt.Fprintf(os.Stderr, "Runs a Merx cache instance and reports its health and statistics.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	return cfg
}
