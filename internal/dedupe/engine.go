// Package dedupe runs a full deduplication pass over one root directory:
// scan and hash every file, group identical contents, and relocate the
// redundant copies into the quarantine directory.
package dedupe

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/dbsmedya/godedup/internal/config"
	"github.com/dbsmedya/godedup/internal/grouper"
	"github.com/dbsmedya/godedup/internal/hasher"
	"github.com/dbsmedya/godedup/internal/logger"
	"github.com/dbsmedya/godedup/internal/relocator"
	"github.com/dbsmedya/godedup/internal/scanner"
)

// Option customizes an Engine.
type Option func(*Engine)

// WithProgress registers a callback invoked after every hashed file.
func WithProgress(fn scanner.ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// Engine coordinates the scan, group and relocate phases. The phases run
// strictly one after another: nothing is moved until every file is hashed.
type Engine struct {
	config   *config.Config
	fs       afero.Fs
	hasher   *hasher.Hasher
	policy   grouper.KeeperPolicy
	logger   *logger.Logger
	progress scanner.ProgressFunc
}

// NewEngine creates an engine from a validated configuration. A nil logger
// falls back to the default logger.
func NewEngine(cfg *config.Config, fs afero.Fs, log *logger.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if fs == nil {
		return nil, fmt.Errorf("filesystem is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	h, err := hasher.New(fs, hasher.Algorithm(cfg.Hashing.Algorithm), cfg.Hashing.BufferSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create hasher: %w", err)
	}

	policy, err := grouper.ParseKeeperPolicy(cfg.Relocation.Keep)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config: cfg,
		fs:     fs,
		hasher: h,
		policy: policy,
		logger: log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// QuarantinePath returns the quarantine directory used for root.
func (e *Engine) QuarantinePath(root string) string {
	return filepath.Join(filepath.Clean(root), e.config.Scan.QuarantineDir)
}

// Run deduplicates root. An empty root falls back to scan.root from the
// configuration.
//
// Invalid roots, unlistable directories and a cancelled scan are returned
// as errors before anything is moved. Per-file hash and move failures are
// collected in the result instead.
func (e *Engine) Run(ctx context.Context, root string) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}
	if root == "" {
		root = e.config.Scan.Root
	}
	root = filepath.Clean(root)

	result := &Result{
		Root:          root,
		QuarantineDir: e.QuarantinePath(root),
		Algorithm:     e.hasher.Algorithm(),
		Keep:          e.policy,
		DryRun:        e.config.Relocation.DryRun,
		StartedAt:     time.Now(),
	}

	log := e.logger.WithRoot(root)
	log.Infow("Starting deduplication",
		"quarantine", result.QuarantineDir,
		"algorithm", result.Algorithm,
		"keep", result.Keep,
		"dry_run", result.DryRun,
	)

	sc, err := scanner.New(e.fs, e.hasher, scanner.Options{
		QuarantineDir:     e.config.Scan.QuarantineDir,
		IncludeQuarantine: e.config.Scan.IncludeQuarantine,
		FollowSymlinks:    e.config.Scan.FollowSymlinks,
		OnProgress:        e.progress,
	}, e.logger.Named("scanner"))
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	outcome, err := sc.Scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	result.HashFailures = outcome.Failures

	result.Groups = grouper.Group(outcome.Index, e.policy)
	log.Infow("Grouped files by content",
		"groups", len(result.Groups),
		"distinct_digests", outcome.Index.Digests(),
	)

	var moved *relocator.Outcome
	if len(result.Groups) > 0 {
		opts := relocator.Options{DryRun: e.config.Relocation.DryRun}
		if e.config.Relocation.Verify {
			opts.Verifier = e.hasher
		}

		rel, err := relocator.New(e.fs, result.QuarantineDir, opts, e.logger.Named("relocator"))
		if err != nil {
			return nil, fmt.Errorf("failed to create relocator: %w", err)
		}

		moved, err = rel.Relocate(ctx, result.Groups)
		if err != nil {
			return nil, fmt.Errorf("relocation failed: %w", err)
		}
		result.Moves = moved.Moves
		result.MoveFailures = moved.Failures
		result.Interrupted = moved.Interrupted
	}

	result.Summary = Summarize(outcome, result.Groups, moved)
	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	log.Infow("Deduplication finished",
		"files", result.Summary.TotalFiles,
		"unique", result.Summary.UniqueFiles,
		"duplicates", result.Summary.DuplicateFiles,
		"moved", result.Summary.MovedFiles,
		"hash_failures", result.Summary.FailedFiles,
		"move_failures", result.Summary.MoveFailures,
		"interrupted", result.Interrupted,
		"duration", result.Duration,
	)

	return result, nil
}
