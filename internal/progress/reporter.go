// Package progress reports ingest progress on a terminal or in plain log
// lines.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives progress while a batch of documents is ingested.
type Reporter interface {
	Start(total int)
	// Step marks one more document done; failed marks it as skipped.
	Step(name string, failed bool)
	Finish()
}

// New returns a LineReporter when running under CI, where a redrawn bar
// would garble logs, and a BarReporter otherwise.
func New(w io.Writer, description string) Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &LineReporter{w: w}
	}
	return &BarReporter{w: w, description: description}
}

// BarReporter draws a progress bar.
type BarReporter struct {
	w           io.Writer
	description string
	bar         *progressbar.ProgressBar
}

func (r *BarReporter) Start(total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription(r.description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *BarReporter) Step(name string, failed bool) {
	if r.bar == nil {
		return
	}
	if failed {
		r.bar.Describe("skipped " + name)
	} else {
		r.bar.Describe(name)
	}
	_ = r.bar.Add(1)
}

func (r *BarReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// LineReporter prints one line per document.
type LineReporter struct {
	w           io.Writer
	total, done int
	failed      int
}

func (r *LineReporter) Start(total int) {
	r.total = total
	fmt.Fprintf(r.w, "Ingesting %d documents\n", total)
}

func (r *LineReporter) Step(name string, failed bool) {
	r.done++
	status := "ok"
	if failed {
		r.failed++
		status = "failed"
	}
	fmt.Fprintf(r.w, "[%d/%d] %s %s\n", r.done, r.total, name, status)
}

func (r *LineReporter) Finish() {
	fmt.Fprintf(r.w, "Ingest complete: %d ok, %d failed\n", r.done-r.failed, r.failed)
}
