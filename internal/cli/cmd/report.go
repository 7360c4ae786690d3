package cmd

import (
	"fmt"
	"io"
	"sync"

	"webmcut/internal/progress"
	"webmcut/internal/util/format"
)

// percentStep is the progress granularity printed without the TUI.
const percentStep = 10

// textReporter prints stage changes and coarse progress, one line each.
type textReporter struct {
	mu     sync.Mutex
	w      io.Writer
	stage  progress.Stage
	bucket int
}

func newTextReporter(w io.Writer) *textReporter {
	return &textReporter{w: w, bucket: -1}
}

func (r *textReporter) Update(u progress.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch u.Stage {
	case progress.StageCompleted:
		// The caller prints the outcome.
		return
	case progress.StageError, progress.StageCanceled:
		if u.Stage != r.stage {
			fmt.Fprintf(r.w, "%s: %s\n", u.Stage, u.Message)
		}
		r.stage = u.Stage
		return
	}
	if u.Stage != r.stage {
		r.stage = u.Stage
		r.bucket = -1
		fmt.Fprintf(r.w, "%s…\n", u.Stage)
	}
	if u.Percent < 0 {
		return
	}
	if b := int(u.Percent) / percentStep; b > r.bucket {
		r.bucket = b
		fmt.Fprintf(r.w, "  %s\n", format.Percent(float64(b*percentStep)))
	}
}

func (r *textReporter) Log(progress.Log)       {}
func (r *textReporter) Result(progress.Result) {}
