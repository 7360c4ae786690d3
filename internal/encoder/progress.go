package encoder

import (
	"math"
	"regexp"
	"strconv"
)

var frameRe = regexp.MustCompile(`frame=\s*([0-9]+)`)

// maxRunningPercent caps progress until the whole job has succeeded.
const maxRunningPercent = 99.0

// Tracker is the state of the log/progress reducer for one job. It is a
// value: Feed and the methods below return a new state and never modify
// the receiver.
type Tracker struct {
	TotalFrames int
	Weight      float64 // share of the progress budget of the current pass
	Percent     float64

	lastFrame int
	logLen    int    // length of the logical log
	lineStart int    // offset just past the last newline
	line      string // current logical line
	pendingCR bool   // a '\r' ended the previous chunk
	overwrite bool   // the next byte rewinds to lineStart
}

// Delta describes what one step changed.
type Delta struct {
	// The logical log becomes log[:TruncateTo] + Append.
	TruncateTo int
	Append     string

	Progress float64  // change of Percent, negative on failure
	Lines    []string // lines finished by '\n'
	Status   string   // last line finished by a lone '\r', if any
}

// Apply applies d to a logical log held by the caller.
func (d Delta) Apply(log string) string {
	if d.TruncateTo < len(log) {
		log = log[:d.TruncateTo]
	}
	return log + d.Append
}

// NewTracker starts a tracker for a job of totalFrames frames per pass.
func NewTracker(totalFrames int) Tracker {
	return Tracker{TotalFrames: totalFrames, Weight: 1}
}

// Feed consumes one raw output chunk. A lone '\r' means the next segment
// overwrites the current line; "\r\n" is a plain newline. A '\r' at the end
// of the chunk is held until the next chunk (or Flush) shows which it was.
func Feed(t Tracker, chunk []byte) (Tracker, Delta) {
	f := newFeeder(t)
	i := 0
	if f.t.pendingCR && len(chunk) > 0 {
		f.t.pendingCR = false
		if chunk[0] == '\n' {
			f.newline()
			i = 1
		} else {
			f.carriageReturn()
		}
	}
	for ; i < len(chunk); i++ {
		switch c := chunk[i]; c {
		case '\n':
			f.newline()
		case '\r':
			switch {
			case i+1 == len(chunk):
				f.t.pendingCR = true
			case chunk[i+1] == '\n':
				f.newline()
				i++
			default:
				f.carriageReturn()
			}
		default:
			f.write(c)
		}
	}
	return f.finish()
}

// Flush resolves a held '\r' as a newline. Call it when the stream ends.
func (t Tracker) Flush() (Tracker, Delta) {
	f := newFeeder(t)
	if f.t.pendingCR {
		f.t.pendingCR = false
		f.newline()
	}
	return f.finish()
}

// NextPass starts counting frames again for a pass with the given weight.
// The accumulated percentage is kept.
func (t Tracker) NextPass(weight float64) Tracker {
	t.Weight = weight
	t.lastFrame = 0
	return t
}

// Complete marks the job as finished successfully.
func (t Tracker) Complete() (Tracker, Delta) {
	d := Delta{TruncateTo: t.logLen, Progress: 100 - t.Percent}
	t.Percent = 100
	return t, d
}

// Fail resets progress to zero and appends reason (e.g. "exited with 1")
// on its own line.
func (t Tracker) Fail(reason string) (Tracker, Delta) {
	f := newFeeder(t)
	if f.t.pendingCR {
		f.t.pendingCR = false
		f.newline()
	}
	if f.t.logLen > f.t.lineStart {
		f.newline()
	}
	for i := 0; i < len(reason); i++ {
		f.write(reason[i])
	}
	f.newline()
	f.d.Progress -= f.t.Percent
	f.t.Percent = 0
	f.t.lastFrame = 0
	return f.finish()
}

type feeder struct {
	t       Tracker
	d       Delta
	truncTo int
	out     []byte // logical log content from truncTo on
	line    []byte
}

func newFeeder(t Tracker) *feeder {
	return &feeder{
		t:       t,
		truncTo: t.logLen,
		line:    []byte(t.line),
	}
}

func (f *feeder) rewind(to int) {
	if to < f.truncTo {
		f.truncTo = to
		f.out = f.out[:0]
	} else {
		f.out = f.out[:to-f.truncTo]
	}
	f.t.logLen = to
}

func (f *feeder) write(c byte) {
	if f.t.overwrite {
		f.rewind(f.t.lineStart)
		f.line = f.line[:0]
		f.t.overwrite = false
	}
	f.out = append(f.out, c)
	f.line = append(f.line, c)
	f.t.logLen++
}

func (f *feeder) newline() {
	line := string(f.line)
	f.match(line)
	f.d.Lines = append(f.d.Lines, line)
	f.out = append(f.out, '\n')
	f.t.logLen++
	f.t.lineStart = f.t.logLen
	f.line = f.line[:0]
	f.t.overwrite = false
}

func (f *feeder) carriageReturn() {
	line := string(f.line)
	f.match(line)
	f.d.Status = line
	f.t.overwrite = true
}

func (f *feeder) match(line string) {
	m := frameRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= f.t.lastFrame {
		return
	}
	delta := n - f.t.lastFrame
	f.t.lastFrame = n
	if f.t.TotalFrames <= 0 || f.t.Weight <= 0 {
		return
	}
	inc := float64(delta) * 100 * f.t.Weight / float64(f.t.TotalFrames)
	next := math.Min(f.t.Percent+inc, maxRunningPercent)
	if next > f.t.Percent {
		f.d.Progress += next - f.t.Percent
		f.t.Percent = next
	}
}

func (f *feeder) finish() (Tracker, Delta) {
	f.t.line = string(f.line)
	f.d.TruncateTo = f.truncTo
	f.d.Append = string(f.out)
	return f.t, f.d
}
