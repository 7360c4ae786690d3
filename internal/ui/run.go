package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"webmcut/internal/model"
	"webmcut/internal/pipeline"
	"webmcut/internal/progress"
)

// Run shows the progress view while encoding o. newService must build a
// Service that reports to the reporter it is given. Run returns only after
// the encode has finished, so the job's temp files are already handled.
func Run(ctx context.Context, newService func(progress.Reporter) *pipeline.Service, o model.EncodeOptions, test bool, warnings []string) (pipeline.Outcome, error) {
	events := make(chan tea.Msg, 256)
	svc := newService(NewReporter(events))

	m := NewModel(ctx, svc.JobID(), o, test, warnings, events)
	prog := tea.NewProgram(m, tea.WithContext(ctx))

	done := make(chan encodeDoneMsg, 1)
	go func() {
		out, err := svc.Encode(m.ctx, o, test)
		msg := encodeDoneMsg{Out: out, Err: err}
		done <- msg
		prog.Send(msg)
	}()

	_, perr := prog.Run()
	m.cancel()

	// Nothing reads events once the program has exited; drain them so the
	// reporter's blocking sends cannot stall the encode.
	var res encodeDoneMsg
	for waiting := true; waiting; {
		select {
		case res = <-done:
			waiting = false
		case <-events:
		}
	}
	if perr != nil && !errors.Is(perr, tea.ErrProgramKilled) {
		return res.Out, perr
	}
	return res.Out, res.Err
}
