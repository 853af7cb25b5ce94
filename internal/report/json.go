package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/dbsmedya/godedup/internal/dedupe"
)

// File actions recorded in the JSON report.
const (
	ActionKept      = "kept"
	ActionMoved     = "moved"
	ActionWouldMove = "would-move"
	ActionFailed    = "failed"
)

// FileEntry is one member of a duplicate group.
type FileEntry struct {
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	Action      string `json:"action"`
	Destination string `json:"destination,omitempty"`
	Verified    bool   `json:"verified,omitempty"`
	Error       string `json:"error,omitempty"`
}

// GroupEntry is one duplicate group.
type GroupEntry struct {
	Digest string      `json:"digest"`
	Files  []FileEntry `json:"files"`
}

// FailureEntry is a file that could not be hashed or moved.
type FailureEntry struct {
	Stage       string `json:"stage"`
	Path        string `json:"path"`
	Destination string `json:"destination,omitempty"`
	Error       string `json:"error"`
}

// Document is the JSON report layout.
type Document struct {
	ScannedAt   time.Time      `json:"scanned_at"`
	Root        string         `json:"root"`
	Quarantine  string         `json:"quarantine"`
	Algorithm   string         `json:"algorithm"`
	Keep        string         `json:"keep"`
	DryRun      bool           `json:"dry_run"`
	Interrupted bool           `json:"interrupted"`
	DurationMs  int64          `json:"duration_ms"`
	Groups      []GroupEntry   `json:"groups"`
	Failures    []FailureEntry `json:"failures"`
	Summary     dedupe.Summary `json:"summary"`
}

// Build converts a run result into the report document.
func Build(res *dedupe.Result) Document {
	doc := Document{
		ScannedAt:   res.StartedAt,
		Root:        res.Root,
		Quarantine:  res.QuarantineDir,
		Algorithm:   string(res.Algorithm),
		Keep:        string(res.Keep),
		DryRun:      res.DryRun,
		Interrupted: res.Interrupted,
		DurationMs:  res.Duration.Milliseconds(),
		Groups:      make([]GroupEntry, 0, len(res.Groups)),
		Failures:    make([]FailureEntry, 0),
		Summary:     res.Summary,
	}

	moved := make(map[string]int, len(res.Moves))
	for i, m := range res.Moves {
		moved[m.Source] = i
	}
	failed := make(map[string]error)
	for _, f := range res.MoveFailures {
		failed[f.Source] = f.Err
	}

	for _, g := range res.Groups {
		entry := GroupEntry{Digest: g.Digest, Files: make([]FileEntry, 0, len(g.Files))}
		for i, f := range g.Files {
			fe := FileEntry{Path: f.Path, Size: f.Size}
			if i == 0 {
				fe.Action = ActionKept
				entry.Files = append(entry.Files, fe)
				continue
			}

			if idx, ok := moved[f.Path]; ok {
				m := res.Moves[idx]
				fe.Action = ActionMoved
				if res.DryRun {
					fe.Action = ActionWouldMove
				}
				fe.Destination = m.Destination
				fe.Verified = m.Verified
			}
			if err, ok := failed[f.Path]; ok {
				// A failed verification keeps the destination of the move.
				if fe.Action == "" {
					fe.Action = ActionFailed
				}
				fe.Error = err.Error()
			}
			// Left untouched by an interrupted run.
			if fe.Action == "" {
				fe.Action = ActionKept
			}
			entry.Files = append(entry.Files, fe)
		}
		doc.Groups = append(doc.Groups, entry)
	}

	for _, f := range res.HashFailures {
		doc.Failures = append(doc.Failures, FailureEntry{Stage: "hash", Path: f.Path, Error: f.Err.Error()})
	}
	for _, f := range res.MoveFailures {
		doc.Failures = append(doc.Failures, FailureEntry{
			Stage:       "move",
			Path:        f.Source,
			Destination: f.Destination,
			Error:       f.Err.Error(),
		})
	}

	return doc
}

// WriteJSON writes the report for res to path.
func WriteJSON(fs afero.Fs, path string, res *dedupe.Result) error {
	data, err := json.MarshalIndent(Build(res), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
