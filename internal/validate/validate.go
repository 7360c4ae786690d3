// Package validate turns raw option text into a checked model.EncodeOptions.
//
// Fields are validated by steps that declare which other fields they read.
// Steps run in dependency order, and a step whose dependency failed is
// skipped so that one bad field yields one error.
package validate

import (
	"errors"
	"fmt"
	"sort"

	"webmcut/internal/encoder"
	"webmcut/internal/model"
	"webmcut/internal/util/bitrate"
)

// FieldError is a user-correctable problem with one option.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Msg
}

// Result is the aggregated outcome of Validate. Options is only meaningful
// when Valid reports true.
type Result struct {
	Options  model.EncodeOptions
	Errors   []*FieldError
	Warnings []string
}

// Valid reports whether no field failed.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Err joins the field errors, or returns nil for a valid result.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// FieldErr returns the error recorded for field, if any.
func (r Result) FieldErr(field string) *FieldError {
	for _, e := range r.Errors {
		if e.Field == field {
			return e
		}
	}
	return nil
}

var order = mustOrder(steps)

// Order returns the field names in the order Validate checks them.
func Order() []string {
	out := make([]string, len(order))
	for i, idx := range order {
		out[i] = steps[idx].field
	}
	return out
}

// Dependencies returns the fields a field's check reads.
func Dependencies(field string) []string {
	for _, s := range steps {
		if s.field == field {
			return append([]string(nil), s.deps...)
		}
	}
	return nil
}

// Validate checks raw against the probed source. The filesystem checks for
// the output and temp directories run here, before any process is started.
func Validate(raw RawOptions, src model.Source) Result {
	st := &state{raw: raw, src: src}

	var res Result
	failed := make(map[string]bool, len(steps))
	for _, idx := range order {
		s := steps[idx]
		if anyFailed(failed, s.deps) {
			failed[s.field] = true
			continue
		}
		if err := s.run(st); err != nil {
			failed[s.field] = true
			res.Errors = append(res.Errors, &FieldError{Field: s.field, Msg: err.Error()})
		}
	}

	res.Options = st.o
	if !res.Valid() {
		return res
	}
	res.Warnings = append(st.warnings, advisories(st.o)...)
	return res
}

func anyFailed(failed map[string]bool, deps []string) bool {
	for _, d := range deps {
		if failed[d] {
			return true
		}
	}
	return false
}

// advisories are non-blocking hints about a valid option set.
func advisories(o model.EncodeOptions) []string {
	var out []string
	if o.Mode.Kind() == model.ModeLimit {
		if o.Duration < shortFragmentSecond {
			out = append(out, "fragment is short, consider CRF mode")
		}
		if !o.TwoPass {
			out = append(out, "two-pass is recommended for size-limited encodes")
		}
	}
	if o.Mode.Kind() != model.ModeCRF && o.Override == nil {
		w, h := encoder.OutputSize(o)
		maxDim := w
		if h > maxDim {
			maxDim = h
		}
		if maxDim > 0 {
			kbps := encoder.VideoKbps(o)
			band := bitrate.BandFor(maxDim)
			flags := bitrate.Classify(kbps, maxDim)
			switch {
			case flags.TooSmall:
				out = append(out, fmt.Sprintf("video bitrate %dk is low for %dpx output (recommended at least %dk)", kbps, maxDim, band.Small))
			case flags.TooBig:
				out = append(out, fmt.Sprintf("video bitrate %dk is high for %dpx output (recommended at most %dk)", kbps, maxDim, band.Big))
			}
		}
	}
	return out
}

// mustOrder sorts steps topologically with Kahn's algorithm. Among ready
// steps the earliest declared runs first.
func mustOrder(list []step) []int {
	idx, err := topoOrder(list)
	if err != nil {
		panic(err)
	}
	return idx
}

func topoOrder(list []step) ([]int, error) {
	index := make(map[string]int, len(list))
	for i, s := range list {
		if _, dup := index[s.field]; dup {
			return nil, fmt.Errorf("duplicate validation step %q", s.field)
		}
		index[s.field] = i
	}

	indegree := make([]int, len(list))
	dependents := make([][]int, len(list))
	for i, s := range list {
		for _, d := range s.deps {
			j, ok := index[d]
			if !ok {
				return nil, fmt.Errorf("step %q depends on unknown step %q", s.field, d)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready []int
	for i := range list {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	out := make([]int, 0, len(list))
	for len(ready) > 0 {
		sort.Ints(ready)
		next := ready[0]
		ready = ready[1:]
		out = append(out, next)
		for _, k := range dependents[next] {
			indegree[k]--
			if indegree[k] == 0 {
				ready = append(ready, k)
			}
		}
	}
	if len(out) != len(list) {
		return nil, errors.New("validation steps have a dependency cycle")
	}
	return out, nil
}
