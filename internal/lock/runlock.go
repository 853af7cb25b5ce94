// Package lock provides a per-root run lock so that two godedup processes
// never relocate files under the same root concurrently.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrLocked is returned when another run already holds the lock.
var ErrLocked = errors.New("root is locked by another run")

// RunLock is an exclusive lock file. It is created with O_EXCL, so only one
// holder can exist at a time. A lock left behind by a killed process has to
// be removed by hand (or bypassed with --force).
type RunLock struct {
	fs   afero.Fs
	path string
	held bool
}

// GenerateLockName derives a stable lock file name from a root path.
// Lock names follow the format "godedup-<base>-<hash>.lock", where base is
// the sanitized last path element and hash is the first 16 hex characters
// of the SHA-256 of the absolute root.
//
// Example: GenerateLockName("/srv/photos") → "godedup-photos-1b4f0e9851971998.lock"
func GenerateLockName(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	sum := sha256.Sum256([]byte(abs))

	base := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, filepath.Base(abs))

	return fmt.Sprintf("godedup-%s-%s.lock", base, hex.EncodeToString(sum[:])[:16])
}

// NewRunLock creates a lock for root whose file lives in lockDir.
// The lock is not acquired until TryAcquire or AcquireOrFail is called.
func NewRunLock(fs afero.Fs, lockDir, root string) *RunLock {
	return &RunLock{
		fs:   fs,
		path: filepath.Join(lockDir, GenerateLockName(root)),
	}
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	return l.path
}

// IsHeld returns true if this instance holds the lock.
func (l *RunLock) IsHeld() bool {
	return l.held
}

// TryAcquire attempts to create the lock file.
// Returns true if acquired, false if another holder exists.
// Returns an error only for filesystem failures.
func (l *RunLock) TryAcquire() (bool, error) {
	if l.held {
		return true, nil
	}

	f, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create lock file %s: %w", l.path, err)
	}

	_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = l.fs.Remove(l.path)
		return false, fmt.Errorf("failed to write lock file %s: %w", l.path, errors.Join(werr, cerr))
	}

	l.held = true
	return true, nil
}

// AcquireOrFail acquires the lock or returns an error wrapping ErrLocked.
func (l *RunLock) AcquireOrFail() error {
	acquired, err := l.TryAcquire()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: lock file %s exists", ErrLocked, l.path)
	}
	return nil
}

// Release removes the lock file.
// Returns true if the lock was released, false if it was not held.
func (l *RunLock) Release() (bool, error) {
	if !l.held {
		return false, nil
	}
	l.held = false
	if err := l.fs.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to remove lock file %s: %w", l.path, err)
	}
	return true, nil
}

// WithLock runs fn while holding the lock and releases it afterwards, even
// if fn panics.
func (l *RunLock) WithLock(fn func() error) (err error) {
	if err := l.AcquireOrFail(); err != nil {
		return err
	}
	defer func() {
		if _, rerr := l.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}
