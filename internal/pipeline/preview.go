package pipeline

import (
	"sync"

	"webmcut/internal/encoder"
	"webmcut/internal/model"
	"webmcut/internal/validate"
)

// ArgsEditor backs the editable codec/filter text. It only recompiles from
// a valid option set; an invalid one leaves the previous text in place.
type ArgsEditor struct {
	mu   sync.Mutex
	text string
}

// Update feeds a validation result. It returns the text to display and the
// field errors to show next to it.
func (e *ArgsEditor) Update(res validate.Result) (string, []*validate.FieldError) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !res.Valid() {
		return e.text, res.Errors
	}
	block, _ := encoder.Block(res.Options, model.KindEncode)
	e.text = encoder.QuoteArgs(block)
	return e.text, nil
}

// Text is the last text compiled from a valid option set.
func (e *ArgsEditor) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}
