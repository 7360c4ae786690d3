package progress

import (
	"time"

	"webmcut/internal/model"
)

// Stage identifies a high-level step of an encode job.
type Stage string

const (
	StageProbe     Stage = "probe"
	StageTest      Stage = "test"
	StageEncoding  Stage = "encoding"
	StagePass1     Stage = "pass 1"
	StagePass2     Stage = "pass 2"
	StagePreview   Stage = "preview"
	StageConcat    Stage = "concat"
	StageCompleted Stage = "completed"
	StageError     Stage = "error"
	StageCanceled  Stage = "canceled"
)

// StageFor maps an invocation kind to the stage shown while it runs.
func StageFor(kind model.InvocationKind) Stage {
	switch kind {
	case model.KindTest:
		return StageTest
	case model.KindPass1:
		return StagePass1
	case model.KindPass2:
		return StagePass2
	case model.KindPreview:
		return StagePreview
	case model.KindConcat:
		return StageConcat
	default:
		return StageEncoding
	}
}

// LogStream indicates which stream produced a log line.
type LogStream int

const (
	StreamStdout LogStream = iota
	StreamStderr
)

// Update conveys progress or stage changes for a job.
// Percent is 0..100 when known; set to a negative value (e.g., -1) to mean unknown.
type Update struct {
	JobID   string
	Stage   Stage
	Percent float64 // 0..100, or <0 if unknown

	ETA     *time.Duration // optional
	CPU     *float64       // optional, percent of one core
	RSS     *uint64        // optional, resident memory in bytes
	Message string         // current status line
}

// Log is one finished log line associated with a job.
type Log struct {
	JobID  string
	Stream LogStream
	Line   string
}

// Result is emitted once per job run when it completes or fails.
type Result struct {
	JobID      string
	OutputPath string
	Bytes      int64
	Err        error // nil on success
}

// Reporter is implemented by UI or any observer interested in progress events.
type Reporter interface {
	Update(u Update)
	Log(l Log)
	Result(r Result)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Update(Update) {}
func (Nop) Log(Log)       {}
func (Nop) Result(Result) {}
