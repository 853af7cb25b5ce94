package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/godedup/internal/config"
	"github.com/dbsmedya/godedup/internal/hasher"
	"github.com/dbsmedya/godedup/internal/logger"
	"github.com/dbsmedya/godedup/internal/report"
	"github.com/dbsmedya/godedup/internal/scanner"
)

var validateCmd = &cobra.Command{
	Use:   "validate [root]",
	Short: "Validate configuration and check the root directory",
	Long: `Validate loads the configuration file (if any), applies command line
overrides and checks the result.

Checks performed:
  - Configuration syntax and allowed values
  - Quarantine directory is a plain directory name
  - Root directory exists and is a directory (when given)

Example:
  godedup validate --config godedup.yaml ~/Pictures`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	var root string
	if len(args) > 0 {
		root = args[0]
	}

	cfg, err := loadConfig(cmd, config.Overrides{Root: root})
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	source := GetConfigFile()
	if ok, _ := afero.Exists(fs, source); !ok {
		source = "(defaults)"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n=== Configuration Validation ===\n")
	fmt.Fprintf(out, "Config file: %s\n", source)
	fmt.Fprintf(out, "Algorithm: %s\n", cfg.Hashing.Algorithm)
	fmt.Fprintf(out, "Buffer size: %s\n", report.FormatSize(int64(cfg.Hashing.BufferSize)))
	fmt.Fprintf(out, "Quarantine dir: %s\n", cfg.Scan.QuarantineDir)
	fmt.Fprintf(out, "Follow symlinks: %v\n", cfg.Scan.FollowSymlinks)
	fmt.Fprintf(out, "Keep: %s\n", cfg.Relocation.Keep)
	fmt.Fprintf(out, "Verify moves: %v\n", cfg.Relocation.Verify)
	fmt.Fprintf(out, "Logging: %s/%s\n", cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Scan.Root != "" {
		h, err := hasher.New(fs, hasher.Algorithm(cfg.Hashing.Algorithm), cfg.Hashing.BufferSize)
		if err != nil {
			return err
		}
		sc, err := scanner.New(fs, h, scanner.Options{}, logger.NewNop())
		if err != nil {
			return err
		}
		if err := sc.ValidateRoot(cfg.Scan.Root); err != nil {
			return fmt.Errorf("root check failed: %w", err)
		}
		fmt.Fprintf(out, "Root: %s (ok)\n", cfg.Scan.Root)
	}

	fmt.Fprintf(out, "\nConfiguration is valid.\n")
	return nil
}
