package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/godedup/internal/config"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// DefaultConfigFile is read when present; it is not required.
const DefaultConfigFile = "godedup.yaml"

// CLI flags that override config file values
var (
	cfgFile       string
	logLevel      string
	logFormat     string
	algorithm     string
	bufferSize    int
	quarantineDir string
)

var rootCmd = &cobra.Command{
	Use:   "godedup",
	Short: "Content-based duplicate file finder",
	Long: `Find files with identical content under a directory tree and move the
redundant copies into a quarantine folder, leaving one copy of each in place.

Features:
  - SHA-256 (or SHA-512) content hashing with bounded memory
  - Deterministic keeper choice (first, oldest, newest, shortest-path)
  - Collision-safe quarantine names (file_1.txt, file_2.txt, ...)
  - Dry-run planning and JSON reports
  - Per-root run lock against concurrent runs`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", DefaultConfigFile,
		"Path to configuration file (optional)")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Hashing overrides
	rootCmd.PersistentFlags().StringVar(&algorithm, "algorithm", "",
		"Override hash algorithm (sha256, sha512)")
	rootCmd.PersistentFlags().IntVar(&bufferSize, "buffer-size", 0,
		"Override read buffer size in bytes")

	rootCmd.PersistentFlags().StringVar(&quarantineDir, "quarantine-dir", "",
		"Override quarantine directory name under the root")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel      string
	LogFormat     string
	Algorithm     string
	BufferSize    int
	QuarantineDir string
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:      logLevel,
		LogFormat:     logFormat,
		Algorithm:     algorithm,
		BufferSize:    bufferSize,
		QuarantineDir: quarantineDir,
	}
}

// loadConfig reads the configuration file, applies the global flag
// overrides followed by extra, and validates the result. The file only has
// to exist when --config was given explicitly.
func loadConfig(cmd *cobra.Command, extra config.Overrides) (*config.Config, error) {
	configFile := GetConfigFile()
	required := cmd.Flags().Changed("config")

	cfg, err := config.LoadOptional(configFile, required)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	o := GetCLIOverrides()
	extra.LogLevel = o.LogLevel
	extra.LogFormat = o.LogFormat
	extra.Algorithm = o.Algorithm
	extra.BufferSize = o.BufferSize
	extra.QuarantineDir = o.QuarantineDir
	cfg.ApplyOverrides(extra)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
