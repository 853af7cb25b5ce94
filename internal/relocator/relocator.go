// Package relocator moves the non-keeper members of duplicate groups into a
// quarantine directory without ever overwriting a file already there.
package relocator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/dbsmedya/godedup/internal/grouper"
	"github.com/dbsmedya/godedup/internal/logger"
)

// ErrVerifyMismatch is reported when a quarantined file no longer hashes to
// its group digest after the move.
var ErrVerifyMismatch = errors.New("quarantined file does not match group digest")

// MoveError reports a duplicate that could not be relocated. The source file
// is left where it was unless Err is ErrVerifyMismatch.
type MoveError struct {
	Source      string
	Destination string
	Err         error
}

func (e *MoveError) Error() string {
	if e.Destination == "" {
		return fmt.Sprintf("failed to move %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("failed to move %s to %s: %v", e.Source, e.Destination, e.Err)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

// Verifier rechecks a file's digest. *hasher.Hasher satisfies it.
type Verifier interface {
	Matches(path, digest string) (bool, error)
}

// Options controls relocation.
type Options struct {
	// DryRun plans destinations without touching the filesystem.
	DryRun bool
	// Verifier, when set, rehashes every moved file at its destination.
	Verifier Verifier
}

// Move is one entry in the move log.
type Move struct {
	Source      string
	Destination string
	Keeper      string
	Digest      string
	Size        int64
	Verified    bool
}

// Outcome is the result of relocating a batch of groups.
type Outcome struct {
	QuarantineDir string
	DryRun        bool
	Moves         []Move
	Failures      []*MoveError
	Interrupted   bool
	Duration      time.Duration
}

// Relocator moves duplicates into a single quarantine directory.
type Relocator struct {
	fs     afero.Fs
	dir    string
	opts   Options
	logger *logger.Logger
}

// New creates a Relocator targeting quarantineDir. A nil logger falls back
// to the default logger.
func New(fs afero.Fs, quarantineDir string, opts Options, log *logger.Logger) (*Relocator, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem is nil")
	}
	if quarantineDir == "" {
		return nil, fmt.Errorf("quarantine directory is empty")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Relocator{
		fs:     fs,
		dir:    filepath.Clean(quarantineDir),
		opts:   opts,
		logger: log,
	}, nil
}

// QuarantineDir returns the destination directory.
func (r *Relocator) QuarantineDir() string {
	return r.dir
}

// Relocate moves every non-keeper member of groups into the quarantine
// directory, in group order. Per-file failures are collected in the outcome
// and do not stop the batch. The quarantine directory is created before the
// first move; failing to create it is the only returned error.
//
// Members already in quarantine and files a symlink points at stay where
// they are. Symlink members are recreated with an absolute target.
//
// Cancelling ctx lets the move in progress finish and skips the rest.
func (r *Relocator) Relocate(ctx context.Context, groups []grouper.DuplicateGroup) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{QuarantineDir: r.dir, DryRun: r.opts.DryRun}
	reserved := make(map[string]bool)
	prepared := r.opts.DryRun

	for _, g := range groups {
		log := r.logger.WithDigest(g.Digest)
		keeper := g.Keeper()

		for _, f := range g.Duplicates() {
			if err := ctx.Err(); err != nil {
				out.Interrupted = true
				out.Duration = time.Since(start)
				r.logger.Warnw("Relocation interrupted, remaining duplicates left in place",
					"moved", len(out.Moves),
					"error", err,
				)
				return out, nil
			}

			if f.Quarantined {
				log.Debugw("Duplicate is already quarantined", "path", f.Path)
				continue
			}
			if f.Linked {
				log.Infow("Leaving duplicate in place, a symlink points at it", "path", f.Path)
				continue
			}

			if !prepared {
				if err := r.fs.MkdirAll(r.dir, 0755); err != nil {
					return out, fmt.Errorf("failed to create quarantine directory %s: %w", r.dir, err)
				}
				prepared = true
			}

			dest, err := r.resolveDestination(filepath.Base(f.Path), reserved)
			if err != nil {
				out.Failures = append(out.Failures, &MoveError{Source: f.Path, Err: err})
				log.Warnw("Could not choose quarantine name", "path", f.Path, "error", err)
				continue
			}

			move := Move{
				Source:      f.Path,
				Destination: dest,
				Keeper:      keeper.Path,
				Digest:      g.Digest,
				Size:        f.Size,
			}

			if r.opts.DryRun {
				reserved[dest] = true
				out.Moves = append(out.Moves, move)
				log.Debugw("Would move duplicate", "path", f.Path, "destination", dest)
				continue
			}

			if err := r.move(f, dest); err != nil {
				out.Failures = append(out.Failures, &MoveError{Source: f.Path, Destination: dest, Err: err})
				log.Warnw("Failed to move duplicate", "path", f.Path, "destination", dest, "error", err)
				continue
			}
			reserved[dest] = true

			if r.opts.Verifier != nil {
				ok, err := r.opts.Verifier.Matches(dest, g.Digest)
				switch {
				case err != nil:
					out.Failures = append(out.Failures, &MoveError{Source: f.Path, Destination: dest, Err: err})
				case !ok:
					out.Failures = append(out.Failures, &MoveError{Source: f.Path, Destination: dest, Err: ErrVerifyMismatch})
				default:
					move.Verified = true
				}
			}

			out.Moves = append(out.Moves, move)
			log.Infow("Moved duplicate",
				"path", f.Path,
				"destination", dest,
				"keeper", keeper.Path,
			)
		}
	}

	out.Duration = time.Since(start)
	return out, nil
}

// move renames src to dest. A symlink is recreated at dest pointing at the
// absolute path of its target and then removed, so a relative link does not
// dangle once it sits in the quarantine directory.
func (r *Relocator) move(f grouper.FileRecord, dest string) error {
	if !f.Link {
		return r.fs.Rename(f.Path, dest)
	}

	reader, okRead := r.fs.(afero.LinkReader)
	linker, okLink := r.fs.(afero.Linker)
	if !okRead || !okLink {
		return r.fs.Rename(f.Path, dest)
	}

	target, err := reader.ReadlinkIfPossible(f.Path)
	if err != nil {
		return err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(f.Path), target)
	}
	if err := linker.SymlinkIfPossible(target, dest); err != nil {
		return err
	}
	if err := r.fs.Remove(f.Path); err != nil {
		_ = r.fs.Remove(dest)
		return err
	}
	return nil
}

// resolveDestination returns the first free name for base inside the
// quarantine directory: base itself, then stem_1.ext, stem_2.ext and so on.
func (r *Relocator) resolveDestination(base string, reserved map[string]bool) (string, error) {
	stem, ext := splitName(base)
	candidate := filepath.Join(r.dir, base)

	for n := 1; ; n++ {
		taken, err := r.taken(candidate, reserved)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = filepath.Join(r.dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}
}

func (r *Relocator) taken(path string, reserved map[string]bool) (bool, error) {
	if reserved[path] {
		return true, nil
	}

	var err error
	if lst, ok := r.fs.(afero.Lstater); ok {
		_, _, err = lst.LstatIfPossible(path)
	} else {
		_, err = r.fs.Stat(path)
	}

	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}
}

// splitName splits a file name into stem and extension. Names that are all
// extension, like ".bashrc", keep the whole name as the stem.
func splitName(name string) (string, string) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		return name, ""
	}
	return stem, ext
}
