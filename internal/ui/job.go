package ui

import (
	"strings"

	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"webmcut/internal/progress"
)

// logTail is how many finished ffmpeg lines the view keeps.
const logTail = 8

type jobState struct {
	id     string
	title  string
	stage  progress.Stage
	status string
	err    error
	done   bool

	outputPath string
	bytes      int64
	percent    float64 // -1 means unknown

	cpu *float64
	rss *uint64

	spinner spinner.Model
	bar     bubblesprogress.Model

	logs []string
}

func newJobState(id, title string, styles Styles) jobState {
	sp := spinner.New()
	sp.Style = styles.Spinner
	return jobState{
		id:      id,
		title:   title,
		stage:   progress.StageProbe,
		status:  "Starting",
		percent: -1,
		spinner: sp,
		bar: bubblesprogress.New(
			bubblesprogress.WithDefaultGradient(),
			bubblesprogress.WithWidth(48),
		),
	}
}

func (js *jobState) applyUpdate(u progress.Update) {
	js.stage = u.Stage
	js.percent = u.Percent
	if u.Message != "" {
		js.status = u.Message
	}
	if u.CPU != nil {
		js.cpu = u.CPU
	}
	if u.RSS != nil {
		js.rss = u.RSS
	}
}

func (js *jobState) appendLog(l progress.Log) {
	line := strings.TrimRight(l.Line, "\r\n")
	if line == "" {
		return
	}
	js.logs = append(js.logs, line)
	if len(js.logs) > logTail {
		js.logs = js.logs[len(js.logs)-logTail:]
	}
}

func (js *jobState) applyResult(r progress.Result) {
	js.done = true
	js.err = r.Err
	js.cpu, js.rss = nil, nil
	if r.Err != nil {
		if js.stage != progress.StageCanceled {
			js.stage = progress.StageError
		}
		js.status = r.Err.Error()
		js.percent = -1
		return
	}
	js.stage = progress.StageCompleted
	js.percent = 100
	js.outputPath = r.OutputPath
	js.bytes = r.Bytes
}
