package dedupe

import (
	"time"

	"github.com/dbsmedya/godedup/internal/grouper"
	"github.com/dbsmedya/godedup/internal/hasher"
	"github.com/dbsmedya/godedup/internal/relocator"
	"github.com/dbsmedya/godedup/internal/scanner"
)

// Summary holds the counters reported at the end of a run.
type Summary struct {
	TotalFiles       int   `json:"total_files"`
	HashedFiles      int   `json:"hashed_files"`
	FailedFiles      int   `json:"failed_files"`
	UniqueFiles      int   `json:"unique_files"`
	DuplicateGroups  int   `json:"duplicate_groups"`
	DuplicateFiles   int   `json:"duplicate_files"`
	MovedFiles       int   `json:"moved_files"`
	MoveFailures     int   `json:"move_failures"`
	ReclaimableBytes int64 `json:"reclaimable_bytes"`
	MovedBytes       int64 `json:"moved_bytes"`
}

// Result is everything a run produced, for the presentation layer.
type Result struct {
	Root          string
	QuarantineDir string
	Algorithm     hasher.Algorithm
	Keep          grouper.KeeperPolicy
	DryRun        bool
	Interrupted   bool

	Groups       []grouper.DuplicateGroup
	HashFailures []scanner.Failure
	Moves        []relocator.Move
	MoveFailures []*relocator.MoveError
	Summary      Summary

	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
}

// HasFailures reports whether any file could not be hashed or moved.
func (r *Result) HasFailures() bool {
	return len(r.HashFailures) > 0 || len(r.MoveFailures) > 0
}

// Summarize derives the run counters from the scan outcome, the duplicate
// groups and the relocation outcome. Either outcome may be nil.
//
// UniqueFiles counts distinct contents among the hashed files, so it
// includes one keeper per group. Files that failed to hash are not unique,
// they are FailedFiles. In dry-run mode MovedFiles counts planned moves.
func Summarize(scan *scanner.Outcome, groups []grouper.DuplicateGroup, moved *relocator.Outcome) Summary {
	var s Summary

	if scan != nil {
		s.TotalFiles = scan.Files
		s.HashedFiles = scan.Hashed()
		s.FailedFiles = len(scan.Failures)
	}

	s.DuplicateGroups = len(groups)
	for _, g := range groups {
		for _, f := range g.Duplicates() {
			s.DuplicateFiles++
			if !f.Linked && !f.Quarantined {
				s.ReclaimableBytes += f.Size
			}
		}
	}
	s.UniqueFiles = s.HashedFiles - s.DuplicateFiles

	if moved != nil {
		s.MovedFiles = len(moved.Moves)
		s.MoveFailures = len(moved.Failures)
		for _, m := range moved.Moves {
			s.MovedBytes += m.Size
		}
	}

	return s
}
