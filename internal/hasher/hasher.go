// Package hasher computes content digests of individual files.
package hasher

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/spf13/afero"
)

// Algorithm names a supported digest function.
type Algorithm string

const (
	// SHA256 produces 64 hex characters.
	SHA256 Algorithm = "sha256"
	// SHA512 produces 128 hex characters.
	SHA512 Algorithm = "sha512"
)

// DefaultBufferSize is the read chunk used when none is configured.
const DefaultBufferSize = 64 * 1024

// HashError reports a file whose content could not be digested.
type HashError struct {
	Path string
	Err  error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("failed to hash %s: %v", e.Path, e.Err)
}

func (e *HashError) Unwrap() error {
	return e.Err
}

// Hasher streams files through a digest function with a fixed-size buffer,
// so memory use does not depend on file size.
type Hasher struct {
	fs         afero.Fs
	algorithm  Algorithm
	newHash    func() hash.Hash
	bufferSize int
}

// New creates a Hasher reading from fs. An empty algorithm selects SHA256
// and a non-positive bufferSize selects DefaultBufferSize.
func New(fs afero.Fs, algorithm Algorithm, bufferSize int) (*Hasher, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem is nil")
	}
	if algorithm == "" {
		algorithm = SHA256
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	var newHash func() hash.Hash
	switch algorithm {
	case SHA256:
		newHash = sha256.New
	case SHA512:
		newHash = sha512.New
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}

	return &Hasher{
		fs:         fs,
		algorithm:  algorithm,
		newHash:    newHash,
		bufferSize: bufferSize,
	}, nil
}

// Algorithm returns the digest function in use.
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// DigestLength returns the number of hex characters in every digest.
func (h *Hasher) DigestLength() int {
	return h.newHash().Size() * 2
}

// HashFile returns the lowercase hex digest of the file's full content.
// Any open or read failure is returned as a *HashError. The file is always
// closed before returning.
func (h *Hasher) HashFile(path string) (digest string, err error) {
	f, err := h.fs.Open(path)
	if err != nil {
		return "", &HashError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			digest, err = "", &HashError{Path: path, Err: cerr}
		}
	}()

	sum := h.newHash()
	buf := make([]byte, h.bufferSize)
	if _, err := io.CopyBuffer(sum, f, buf); err != nil {
		return "", &HashError{Path: path, Err: err}
	}

	return hex.EncodeToString(sum.Sum(nil)), nil
}

// Matches reports whether the file at path currently hashes to digest.
func (h *Hasher) Matches(path, digest string) (bool, error) {
	got, err := h.HashFile(path)
	if err != nil {
		return false, err
	}
	return got == digest, nil
}
