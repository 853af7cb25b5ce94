package grouper

import (
	"fmt"
	"sort"
)

// KeeperPolicy decides which member of a group stays at its original path.
type KeeperPolicy string

const (
	// KeepFirst keeps the first file in scan-discovery order. Discovery order
	// follows directory listing order, so the keeper is stable for one
	// filesystem but may differ across platforms.
	KeepFirst KeeperPolicy = "first"
	// KeepOldest keeps the file with the earliest modification time.
	KeepOldest KeeperPolicy = "oldest"
	// KeepNewest keeps the file with the latest modification time.
	KeepNewest KeeperPolicy = "newest"
	// KeepShortestPath keeps the file with the shortest path.
	KeepShortestPath KeeperPolicy = "shortest-path"
)

// ParseKeeperPolicy converts a config value into a KeeperPolicy.
// The empty string maps to KeepFirst.
func ParseKeeperPolicy(s string) (KeeperPolicy, error) {
	switch KeeperPolicy(s) {
	case "", KeepFirst:
		return KeepFirst, nil
	case KeepOldest, KeepNewest, KeepShortestPath:
		return KeeperPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown keeper policy %q", s)
	}
}

// DuplicateGroup is a set of at least two files with the same digest.
// Files[0] is the keeper.
type DuplicateGroup struct {
	Digest string
	Files  []FileRecord
}

// Keeper returns the member that stays in place.
func (g DuplicateGroup) Keeper() FileRecord {
	return g.Files[0]
}

// Duplicates returns the members to relocate.
func (g DuplicateGroup) Duplicates() []FileRecord {
	return g.Files[1:]
}

// Group returns every digest with two or more members, largest groups
// first. Equal-sized groups keep digest-discovery order. The index is not
// modified.
func Group(ix *Index, policy KeeperPolicy) []DuplicateGroup {
	var groups []DuplicateGroup

	ix.Each(func(digest string, files []FileRecord) {
		if len(files) < 2 {
			return
		}
		members := make([]FileRecord, len(files))
		copy(members, files)
		orderMembers(members, policy)
		groups = append(groups, DuplicateGroup{Digest: digest, Files: members})
	})

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Files) > len(groups[j].Files)
	})

	return groups
}

// orderMembers moves the keeper chosen by policy to the front. Ties keep
// discovery order. Whatever the policy, files a symlink points at come
// first, then other regular files, then symlinks. Quarantined files go last.
func orderMembers(files []FileRecord, policy KeeperPolicy) {
	byPolicy(files, policy)
	sort.SliceStable(files, func(i, j int) bool {
		return rank(files[i]) < rank(files[j])
	})
}

func rank(f FileRecord) int {
	r := 1
	switch {
	case f.Linked:
		r = 0
	case f.Link:
		r = 2
	}
	if f.Quarantined {
		r += 3
	}
	return r
}

func byPolicy(files []FileRecord, policy KeeperPolicy) {
	switch policy {
	case KeepOldest:
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].ModTime.Before(files[j].ModTime)
		})
	case KeepNewest:
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].ModTime.After(files[j].ModTime)
		})
	case KeepShortestPath:
		sort.SliceStable(files, func(i, j int) bool {
			if len(files[i].Path) != len(files[j].Path) {
				return len(files[i].Path) < len(files[j].Path)
			}
			return files[i].Path < files[j].Path
		})
	}
}
