package cmd

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// hashProgress draws a progress bar for the hashing phase. The bar is
// created on the first update, once the number of files is known.
type hashProgress struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newHashProgress(w io.Writer) *hashProgress {
	return &hashProgress{w: w}
}

// Update matches scanner.ProgressFunc.
func (p *hashProgress) Update(processed, total int) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(15),
			progressbar.OptionSetDescription("Hashing files..."),
			progressbar.OptionShowElapsedTimeOnFinish(),
		)
	}
	_ = p.bar.Set(processed)
}

// Finish completes the bar. Safe on a nil receiver and before any update.
func (p *hashProgress) Finish() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	fmt.Fprintln(p.w)
}
