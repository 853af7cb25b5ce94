// Package report renders deduplication results for people (colored
// terminal output) and for machines (a JSON file).
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/godedup/internal/dedupe"
)

// DefaultWidth is the column budget used when paths need truncating.
const DefaultWidth = 100

const labelWidth = 20

// Printer writes a human-readable report. Colors follow gookit/color's
// global switch, so output written to a pipe or with NO_COLOR set is plain.
type Printer struct {
	w     io.Writer
	width int
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, width: DefaultWidth}
}

// WithWidth sets the maximum line width. Non-positive values are ignored.
func (p *Printer) WithWidth(width int) *Printer {
	if width > 0 {
		p.width = width
	}
	return p
}

// Print renders groups, moves, failures and the summary, in that order.
func (p *Printer) Print(res *dedupe.Result) {
	p.PrintGroups(res)
	p.PrintMoves(res)
	p.PrintFailures(res)
	p.PrintSummary(res)
}

// PrintGroups lists every duplicate group with its members. The first
// member of each group is the keeper; members the relocator leaves in place
// are shown as kept too.
func (p *Printer) PrintGroups(res *dedupe.Result) {
	if len(res.Groups) == 0 {
		fmt.Fprintf(p.w, "\n%s\n", color.Green.Sprint("No duplicates found."))
		return
	}

	p.heading("Duplicate Groups")
	for i, g := range res.Groups {
		fmt.Fprintf(p.w, "%s  %s:%s  (%d copies)\n",
			color.Magenta.Sprintf("Group #%d", i+1),
			res.Algorithm,
			color.Green.Sprint(ShortDigest(g.Digest)),
			len(g.Files),
		)

		index := len(strconv.Itoa(len(g.Files)))
		for j, f := range g.Files {
			action := color.Yellow.Sprint("move")
			if j == 0 || f.Linked || f.Quarantined {
				action = color.Green.Sprint("keep")
			}
			num := runewidth.FillLeft(strconv.Itoa(j+1), index)
			size := runewidth.FillLeft(FormatSize(f.Size), 10)
			path := p.fit(f.Path, p.width-index-24)
			fmt.Fprintf(p.w, "  [%s] %s  %s  %s\n", num, action, size, path)
		}
		fmt.Fprintln(p.w)
	}
}

// PrintMoves lists the relocations that happened, or would happen in a
// dry run.
func (p *Printer) PrintMoves(res *dedupe.Result) {
	if len(res.Moves) == 0 {
		return
	}

	if res.DryRun {
		p.heading("Planned Moves (dry run)")
	} else {
		p.heading("Moves")
	}

	half := (p.width - 8) / 2
	for _, m := range res.Moves {
		mark := " "
		if m.Verified {
			mark = color.Green.Sprint("✓")
		}
		fmt.Fprintf(p.w, "%s %s → %s\n",
			mark,
			runewidth.FillRight(p.fit(m.Source, half), half),
			p.fit(m.Destination, half),
		)
	}
}

// PrintFailures lists every file that could not be hashed or moved.
func (p *Printer) PrintFailures(res *dedupe.Result) {
	if !res.HasFailures() {
		return
	}

	p.heading("Failures")
	for _, f := range res.HashFailures {
		fmt.Fprintf(p.w, "  %s  %s: %v\n", color.Red.Sprint("hash"), f.Path, f.Err)
	}
	for _, f := range res.MoveFailures {
		fmt.Fprintf(p.w, "  %s  %s: %v\n", color.Red.Sprint("move"), f.Source, f.Err)
	}
}

// PrintSummary renders the statistics block.
func (p *Printer) PrintSummary(res *dedupe.Result) {
	s := res.Summary

	title := "Summary"
	if res.DryRun {
		title = "Summary (dry run)"
	}
	p.heading(title)

	p.row("Root", res.Root, color.White)
	p.row("Total files", strconv.Itoa(s.TotalFiles), color.Cyan)
	p.row("Unique files", strconv.Itoa(s.UniqueFiles), color.Green)
	p.row("Duplicate groups", strconv.Itoa(s.DuplicateGroups), color.Magenta)
	p.row("Duplicates", strconv.Itoa(s.DuplicateFiles), color.Red)
	p.row("Reclaimable", FormatSize(s.ReclaimableBytes), color.Yellow)

	moved := "Moved files"
	if res.DryRun {
		moved = "Would move"
	}
	p.row(moved, fmt.Sprintf("%d (%s)", s.MovedFiles, FormatSize(s.MovedBytes)), color.Yellow)

	if s.FailedFiles > 0 {
		p.row("Hash failures", strconv.Itoa(s.FailedFiles), color.Red)
	}
	if s.MoveFailures > 0 {
		p.row("Move failures", strconv.Itoa(s.MoveFailures), color.Red)
	}
	if s.MovedFiles > 0 {
		p.row("Quarantine", res.QuarantineDir, color.Gray)
	}
	p.row("Duration", res.Duration.String(), color.White)

	if res.Interrupted {
		fmt.Fprintf(p.w, "\n%s\n", color.Yellow.Sprint("Run was interrupted: remaining duplicates were left in place."))
	}
}

func (p *Printer) heading(title string) {
	fmt.Fprintf(p.w, "\n%s\n", color.Cyan.Sprintf("=== %s ===", title))
}

func (p *Printer) row(label, value string, c color.Color) {
	fmt.Fprintf(p.w, "%s %s\n", runewidth.FillRight(label+":", labelWidth), c.Sprint(value))
}

// fit shortens s to width display cells, keeping the tail of the path
// where the file name is.
func (p *Printer) fit(s string, width int) string {
	w := runewidth.StringWidth(s)
	if width < 8 || w <= width {
		return s
	}
	return runewidth.TruncateLeft(s, w-width+1, "…")
}
