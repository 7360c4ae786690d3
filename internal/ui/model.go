package ui

import (
	"context"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"webmcut/internal/model"
	"webmcut/internal/pipeline"
	"webmcut/internal/progress"
)

// Model is the bubbletea model of a single encode job.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	opts     model.EncodeOptions
	test     bool
	warnings []string

	job    *jobState
	out    pipeline.Outcome
	err    error
	closed bool

	width  int
	styles Styles

	// Internal event channel used by the reporter to feed tea messages
	eventCh chan tea.Msg
}

// NewModel builds the view of job jobID. events must be the channel its
// reporter writes to (see NewReporter).
func NewModel(ctx context.Context, jobID string, o model.EncodeOptions, test bool, warnings []string, events chan tea.Msg) Model {
	c, cancel := context.WithCancel(ctx)
	sty := defaultStyles()
	js := newJobState(jobID, filepath.Base(o.Input), sty)
	return Model{
		ctx:      c,
		cancel:   cancel,
		opts:     o,
		test:     test,
		warnings: warnings,
		job:      &js,
		styles:   sty,
		eventCh:  events,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.job.spinner.Tick, m.listenEventsCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			// The encode sees the cancel, kills ffmpeg and reports back with
			// encodeDoneMsg.
			m.cancel()
			if !m.job.done {
				m.job.status = "Canceling…"
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 16; w > 10 {
			m.job.bar.Width = w
		}
	case jobUpdateMsg:
		if msg.U.JobID == m.job.id {
			m.job.applyUpdate(msg.U)
		}
		return m, m.listenEventsCmd()
	case jobLogMsg:
		if msg.L.JobID == m.job.id {
			m.job.appendLog(msg.L)
		}
		return m, m.listenEventsCmd()
	case jobResultMsg:
		if msg.R.JobID == m.job.id {
			m.job.applyResult(msg.R)
		}
		return m, m.listenEventsCmd()
	case encodeDoneMsg:
		m.out, m.err = msg.Out, msg.Err
		m.closed = true
		m.cancel()
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.job.spinner, cmd = m.job.spinner.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	s := m.viewHeader() + "\n\n" + m.viewJob()
	if summary := m.viewSummary(); summary != "" {
		s += "\n" + summary
	}
	return s
}

func (m Model) listenEventsCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case msg := <-m.eventCh:
			return msg
		}
	}
}

// teaReporter forwards job events into the program.
type teaReporter struct {
	ch chan tea.Msg
}

// NewReporter returns a reporter writing to events.
func NewReporter(events chan tea.Msg) progress.Reporter {
	return teaReporter{ch: events}
}

func (r teaReporter) Update(u progress.Update) {
	// Terminal stages must not be dropped.
	switch u.Stage {
	case progress.StageCompleted, progress.StageError, progress.StageCanceled:
		r.ch <- jobUpdateMsg{U: u}
		return
	}
	select {
	case r.ch <- jobUpdateMsg{U: u}:
	default:
	}
}

func (r teaReporter) Log(l progress.Log) {
	select {
	case r.ch <- jobLogMsg{L: l}:
	default:
	}
}

func (r teaReporter) Result(res progress.Result) {
	r.ch <- jobResultMsg{R: res}
}
