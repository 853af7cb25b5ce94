package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/godedup/internal/config"
	"github.com/dbsmedya/godedup/internal/dedupe"
	"github.com/dbsmedya/godedup/internal/lock"
	"github.com/dbsmedya/godedup/internal/logger"
	"github.com/dbsmedya/godedup/internal/report"
)

// runOptions holds the flags shared by scan and plan.
type runOptions struct {
	dryRun     bool
	keep       string
	reportPath string
	noProgress bool
	force      bool
	verify     bool
}

var scanOpts runOptions

var scanCmd = &cobra.Command{
	Use:   "scan [root]",
	Short: "Find duplicates and move them into quarantine",
	Long: `Scan hashes every file under root, groups files with identical content
and moves all but one copy of each group into the quarantine directory
(<root>/_Duplicates by default).

The scan runs in three steps:
  1. Hash every regular file under root (symlinks are followed)
  2. Group files by digest and pick a keeper per group
  3. Move the other copies into quarantine, renaming on collision

Nothing is deleted. Files that cannot be read or moved are reported and
the run exits with a non-zero status.

Example:
  godedup scan ~/Pictures
  godedup scan ~/Pictures --keep oldest --report dedup.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVarP(&scanOpts.dryRun, "dry-run", "n", false,
		"Plan moves without touching the filesystem")
	scanCmd.Flags().StringVarP(&scanOpts.keep, "keep", "k", "",
		"Keeper policy (first, oldest, newest, shortest-path)")
	scanCmd.Flags().StringVar(&scanOpts.reportPath, "report", "",
		"Path to save JSON report (optional)")
	scanCmd.Flags().BoolVar(&scanOpts.noProgress, "no-progress", false,
		"Disable the hashing progress bar")
	scanCmd.Flags().BoolVar(&scanOpts.verify, "verify", false,
		"Rehash every moved file at its destination")
	scanCmd.Flags().BoolVar(&scanOpts.force, "force", false,
		"Run even if the root is locked by another run (use with caution)")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	return executeRun(cmd, args, scanOpts)
}

// executeRun loads the configuration, takes the run lock and drives the
// engine for the root given in args (or scan.root).
func executeRun(cmd *cobra.Command, args []string, opts runOptions) error {
	var root string
	if len(args) > 0 {
		root = args[0]
	}

	cfg, err := loadConfig(cmd, config.Overrides{
		Root:       root,
		Keep:       opts.keep,
		ReportPath: opts.reportPath,
		DryRun:     opts.dryRun,
		Verify:     opts.verify,
		NoProgress: opts.noProgress,
	})
	if err != nil {
		return err
	}
	if cfg.Scan.Root == "" {
		return fmt.Errorf("no root directory given: pass it as an argument or set scan.root")
	}

	root, err = filepath.Abs(cfg.Scan.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %s: %w", cfg.Scan.Root, err)
	}

	// Initialize logger
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Infow("Starting deduplication run",
		"root", root,
		"config", GetConfigFile(),
		"dry_run", cfg.Relocation.DryRun,
	)

	fs := afero.NewOsFs()

	// A dry run never moves anything, so it does not need the lock.
	switch {
	case cfg.Relocation.DryRun:
	case opts.force:
		log.Warnw("Skipping run lock acquisition (--force flag used)", "root", root)
	default:
		runLock := lock.NewRunLock(fs, os.TempDir(), root)
		if err := runLock.AcquireOrFail(); err != nil {
			if errors.Is(err, lock.ErrLocked) {
				return fmt.Errorf("root '%s' is already being deduplicated by another run (use --force to override, or remove %s)", root, runLock.Path())
			}
			return fmt.Errorf("failed to acquire run lock: %w", err)
		}
		defer func() {
			if _, err := runLock.Release(); err != nil {
				log.Warnw("Failed to release run lock", "lock", runLock.Path(), "error", err)
			}
		}()
		log.Infow("Acquired run lock", "root", root, "lock", runLock.Path())
	}

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			log.Warn("Received shutdown signal - finishing current file...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var engineOpts []dedupe.Option
	var progress *hashProgress
	if cfg.Report.Progress {
		progress = newHashProgress(cmd.ErrOrStderr())
		engineOpts = append(engineOpts, dedupe.WithProgress(progress.Update))
	}

	engine, err := dedupe.NewEngine(cfg, fs, log, engineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	result, err := engine.Run(ctx, root)
	progress.Finish()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Run cancelled by user before any file was moved")
			return nil
		}
		return fmt.Errorf("deduplication failed: %w", err)
	}

	out := cmd.OutOrStdout()
	report.NewPrinter(out).Print(result)

	if cfg.Report.Path != "" {
		if err := report.WriteJSON(fs, cfg.Report.Path, result); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nReport saved to: %s\n", cfg.Report.Path)
	}

	if result.HasFailures() {
		return fmt.Errorf("%d file(s) could not be hashed and %d could not be moved",
			len(result.HashFailures), len(result.MoveFailures))
	}
	return nil
}
