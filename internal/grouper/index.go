// Package grouper aggregates hashed files into content groups and picks the
// member of each group that stays in place.
package grouper

import (
	"fmt"
	"time"

	"github.com/elliotchance/orderedmap/v2"
)

// FileRecord is one successfully hashed file. Link marks a path reached
// through a symlink, Linked a file some symlink under the root points at.
// Quarantined marks a file already in the quarantine directory.
type FileRecord struct {
	Path        string
	Digest      string
	Size        int64
	ModTime     time.Time
	Link        bool
	Linked      bool
	Quarantined bool
}

// Index maps digest -> records in discovery order. Digest keys keep the
// order in which they were first seen, which is what ties in Group fall
// back to.
type Index struct {
	entries *orderedmap.OrderedMap[string, []FileRecord]
	paths   map[string]struct{}
	records int
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{
		entries: orderedmap.NewOrderedMap[string, []FileRecord](),
		paths:   make(map[string]struct{}),
	}
}

// Add appends rec to its digest's sequence. A path may only be added once.
func (ix *Index) Add(rec FileRecord) error {
	if rec.Digest == "" {
		return fmt.Errorf("record for %s has no digest", rec.Path)
	}
	if _, seen := ix.paths[rec.Path]; seen {
		return fmt.Errorf("path %s already indexed", rec.Path)
	}

	files, _ := ix.entries.Get(rec.Digest)
	ix.entries.Set(rec.Digest, append(files, rec))
	ix.paths[rec.Path] = struct{}{}
	ix.records++
	return nil
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return ix.records
}

// Digests returns the number of distinct digests.
func (ix *Index) Digests() int {
	return ix.entries.Len()
}

// Get returns the records sharing digest, in discovery order.
func (ix *Index) Get(digest string) []FileRecord {
	files, _ := ix.entries.Get(digest)
	return files
}

// Each calls fn for every digest in first-discovery order.
func (ix *Index) Each(fn func(digest string, files []FileRecord)) {
	for el := ix.entries.Front(); el != nil; el = el.Next() {
		fn(el.Key, el.Value)
	}
}
