package driver

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// Tracer reports per-phase timing and region-variable/loan counts, the same way
// the teacher's Progress reports pipeline progress: elapsed-time
// prefixed lines written to an arbitrary writer, silent unless
// verbose. A nil *Tracer is valid and reports nothing, so callers that
// don't care about tracing can pass nil.
type Tracer struct {
	w       io.Writer
	start   time.Time
	verbose bool
	fn      string
}

// NewTracer creates a tracer for the named function, writing to w when
// verbose is true.
func NewTracer(w io.Writer, fn string, verbose bool) *Tracer {
	return &Tracer{w: w, start: time.Now(), verbose: verbose, fn: fn}
}

func (t *Tracer) phase(name string) {
	if t == nil || !t.verbose {
		return
	}
	t.logf("%s: entering %s", t.fn, name)
}

func (t *Tracer) countf(label string, n int) {
	if t == nil || !t.verbose {
		return
	}
	t.logf("%s: %s %s", t.fn, label, humanize.Comma(int64(n)))
}

func (t *Tracer) logf(format string, args ...any) {
	elapsed := time.Since(t.start)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60
	fmt.Fprintf(t.w, "[%02d:%02d] %s\n", mins, secs, fmt.Sprintf(format, args...))
}
