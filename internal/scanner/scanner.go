// Package scanner enumerates the files under a root directory and hashes
// each of them into a digest index.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/dbsmedya/godedup/internal/grouper"
	"github.com/dbsmedya/godedup/internal/hasher"
	"github.com/dbsmedya/godedup/internal/logger"
)

// ProgressFunc receives the number of files processed so far and the total.
type ProgressFunc func(processed, total int)

// Options controls enumeration.
type Options struct {
	// QuarantineDir is the directory name under the root that receives
	// duplicates. It is skipped unless IncludeQuarantine is set.
	QuarantineDir string
	// IncludeQuarantine scans the quarantine directory too. Its files are
	// marked as quarantined: they are never picked as keeper while a member
	// outside the quarantine exists, and they are never moved again.
	IncludeQuarantine bool
	FollowSymlinks    bool
	OnProgress        ProgressFunc
}

// Entry is one regular file found under the root. Info describes the file
// itself, or the link target when Link is set. Linked marks a regular file
// that a symlink under the root resolves to.
type Entry struct {
	Path        string
	Info        os.FileInfo
	Link        bool
	Linked      bool
	Quarantined bool
}

// Failure records a file that was found but could not be hashed.
type Failure struct {
	Path string
	Err  error
}

// Outcome is the result of a completed scan.
type Outcome struct {
	Root     string
	Files    int
	Index    *grouper.Index
	Failures []Failure
	Duration time.Duration
}

// Empty reports whether the root contained no files at all.
func (o *Outcome) Empty() bool {
	return o.Files == 0
}

// Hashed returns the number of files that made it into the index.
func (o *Outcome) Hashed() int {
	return o.Index.Len()
}

// Scanner walks a directory tree and hashes every regular file in it,
// one file at a time.
type Scanner struct {
	fs     afero.Fs
	hasher *hasher.Hasher
	opts   Options
	logger *logger.Logger
}

// New creates a Scanner. A nil logger falls back to the default logger.
func New(fs afero.Fs, h *hasher.Hasher, opts Options, log *logger.Logger) (*Scanner, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem is nil")
	}
	if h == nil {
		return nil, fmt.Errorf("hasher is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Scanner{
		fs:     fs,
		hasher: h,
		opts:   opts,
		logger: log,
	}, nil
}

// ValidateRoot checks that root exists and is a directory.
func (s *Scanner) ValidateRoot(root string) error {
	if root == "" {
		return &InvalidRootError{Root: root, Reason: "path is empty"}
	}
	info, err := s.fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return &InvalidRootError{Root: root, Reason: "does not exist", Err: err}
		}
		return &InvalidRootError{Root: root, Reason: "cannot be accessed", Err: err}
	}
	if !info.IsDir() {
		return &InvalidRootError{Root: root, Reason: "not a directory"}
	}
	return nil
}

// Enumerate lists every regular file under root, depth-first with the
// entries of each directory sorted by name. Directories are never returned.
//
// Paths that resolve to the same file (a symlink and its target, or hard
// links) are listed once. The regular path wins over a symlink and is
// marked Linked.
func (s *Scanner) Enumerate(root string) ([]Entry, error) {
	root = filepath.Clean(root)
	if err := s.ValidateRoot(root); err != nil {
		return nil, err
	}

	w := &walker{
		scanner:    s,
		quarantine: filepath.Join(root, s.opts.QuarantineDir),
		visited:    map[string]bool{s.dirKey(root): true},
	}
	if err := w.walk(root); err != nil {
		return nil, err
	}
	return s.collapseAliases(w.entries), nil
}

// collapseAliases drops entries that refer to a file already listed. When a
// symlink was listed first and its target shows up later, the target takes
// the link's place in the result.
func (s *Scanner) collapseAliases(entries []Entry) []Entry {
	bySize := make(map[int64][]int)
	drop := make([]bool, len(entries))

	for i, e := range entries {
		if e.Info == nil || e.Info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		size := e.Info.Size()
		alias := -1
		for _, j := range bySize[size] {
			if os.SameFile(entries[j].Info, e.Info) {
				alias = j
				break
			}
		}
		if alias < 0 {
			bySize[size] = append(bySize[size], i)
			continue
		}

		kept, dropped := alias, i
		if entries[alias].Link && !e.Link {
			kept, dropped = i, alias
			idx := bySize[size]
			for k := range idx {
				if idx[k] == alias {
					idx[k] = i
				}
			}
		}
		drop[dropped] = true
		if entries[dropped].Link && !entries[kept].Link {
			entries[kept].Linked = true
		}
		s.logger.Debugw("Skipping path that refers to an already listed file",
			"path", entries[dropped].Path,
			"same_as", entries[kept].Path,
		)
	}

	out := entries[:0]
	for i, e := range entries {
		if !drop[i] {
			out = append(out, e)
		}
	}
	return out
}

// Scan validates root, enumerates it, and hashes every file into a fresh
// index in discovery order. Files that cannot be hashed are recorded in
// Outcome.Failures and skipped. Cancelling ctx stops the scan between files.
func (s *Scanner) Scan(ctx context.Context, root string) (*Outcome, error) {
	start := time.Now()
	root = filepath.Clean(root)
	log := s.logger.WithRoot(root)

	entries, err := s.Enumerate(root)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Root:  root,
		Files: len(entries),
		Index: grouper.NewIndex(),
	}

	if len(entries) == 0 {
		log.Infow("No files found under root")
		outcome.Duration = time.Since(start)
		return outcome, nil
	}

	log.Infow("Hashing files",
		"files", len(entries),
		"algorithm", s.hasher.Algorithm(),
	)

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := s.hashEntry(outcome.Index, e); err != nil {
			outcome.Failures = append(outcome.Failures, Failure{Path: e.Path, Err: err})
			log.Warnw("Skipping file that could not be hashed",
				"path", e.Path,
				"error", err,
			)
		}

		if s.opts.OnProgress != nil {
			s.opts.OnProgress(i+1, len(entries))
		}
	}

	outcome.Duration = time.Since(start)
	log.Infow("Scan complete",
		"files", outcome.Files,
		"hashed", outcome.Hashed(),
		"failed", len(outcome.Failures),
		"distinct_digests", outcome.Index.Digests(),
		"duration", outcome.Duration,
	)

	return outcome, nil
}

func (s *Scanner) hashEntry(ix *grouper.Index, e Entry) error {
	digest, err := s.hasher.HashFile(e.Path)
	if err != nil {
		return err
	}

	rec := grouper.FileRecord{
		Path:        e.Path,
		Digest:      digest,
		Link:        e.Link,
		Linked:      e.Linked,
		Quarantined: e.Quarantined,
	}
	if e.Info != nil {
		rec.Size = e.Info.Size()
		rec.ModTime = e.Info.ModTime()
	}
	return ix.Add(rec)
}

// dirKey identifies a directory for symlink cycle detection. On the real
// filesystem symlinks are resolved; other filesystems use the cleaned path.
func (s *Scanner) dirKey(path string) string {
	if _, ok := s.fs.(*afero.OsFs); ok {
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			return resolved
		}
	}
	return filepath.Clean(path)
}

type walker struct {
	scanner    *Scanner
	quarantine string
	visited    map[string]bool
	entries    []Entry
	// inQuarantine is set while walking below the quarantine directory.
	inQuarantine bool
}

func (w *walker) walk(dir string) error {
	s := w.scanner

	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return &EnumerationError{Path: dir, Err: err}
	}

	for _, info := range infos {
		path := filepath.Join(dir, info.Name())
		link := false

		if info.Mode()&os.ModeSymlink != 0 {
			if !s.opts.FollowSymlinks {
				s.logger.Debugw("Skipping symlink", "path", path)
				continue
			}
			target, err := s.fs.Stat(path)
			if err != nil {
				// Dangling link: keep it so the hash failure gets reported.
				w.entries = append(w.entries, Entry{Path: path, Info: info, Link: true, Quarantined: w.inQuarantine})
				continue
			}
			info = target
			link = true
		}

		if info.IsDir() {
			isQuarantine := path == w.quarantine
			if isQuarantine && !s.opts.IncludeQuarantine {
				s.logger.Debugw("Skipping quarantine directory", "path", path)
				continue
			}
			key := s.dirKey(path)
			if w.visited[key] {
				s.logger.Warnw("Skipping directory already visited through a symlink", "path", path)
				continue
			}
			w.visited[key] = true
			outer := w.inQuarantine
			w.inQuarantine = outer || isQuarantine
			err := w.walk(path)
			w.inQuarantine = outer
			if err != nil {
				return err
			}
			continue
		}

		if !info.Mode().IsRegular() {
			s.logger.Debugw("Skipping non-regular file", "path", path, "mode", info.Mode().String())
			continue
		}

		w.entries = append(w.entries, Entry{Path: path, Info: info, Link: link, Quarantined: w.inQuarantine})
	}

	return nil
}
