package ui

import (
	"webmcut/internal/pipeline"
	"webmcut/internal/progress"
)

type jobUpdateMsg struct {
	U progress.Update
}

type jobLogMsg struct {
	L progress.Log
}

type jobResultMsg struct {
	R progress.Result
}

// encodeDoneMsg is sent once Service.Encode has returned.
type encodeDoneMsg struct {
	Out pipeline.Outcome
	Err error
}
