package encoder

import (
	"math"
	"path/filepath"

	"webmcut/internal/model"
)

// Pass weights of a two-pass encode. Single pass gets the whole budget.
const (
	Pass1Weight = 0.3
	Pass2Weight = 0.7
)

// Plan is the ordered invocation list of one job.
type Plan struct {
	Invocations []model.Invocation `yaml:"invocations"`
	TotalFrames int                `yaml:"total_frames"`
	Output      string             `yaml:"output"`
	Test        bool               `yaml:"test"`
}

// TotalFrames is the expected frame count of a fragment.
func TotalFrames(duration, fps float64) int {
	if duration <= 0 || fps <= 0 {
		return 0
	}
	// Tolerate float noise such as 0.1*30 = 3.0000000000000004.
	return int(math.Ceil(duration*fps - 1e-9))
}

// NewJobPaths lays out the temp files of a job inside workdir.
func NewJobPaths(workdir string) model.JobPaths {
	return model.JobPaths{
		Workdir:    workdir,
		Test:       filepath.Join(workdir, "test.webm"),
		PassLog:    filepath.Join(workdir, "passlog"),
		Preview:    filepath.Join(workdir, "preview.webm"),
		ConcatList: filepath.Join(workdir, "concat.txt"),
		Main:       filepath.Join(workdir, "main.webm"),
	}
}

// NewPlan expands options into invocations: [pass1, pass2] or [encode],
// followed by [preview, concat] when a preview is requested. A test plan is
// a single fast pass into the job's test path.
func NewPlan(o model.EncodeOptions, paths model.JobPaths, test bool) Plan {
	p := Plan{
		TotalFrames: TotalFrames(o.Duration, o.FrameRate),
		Output:      o.Output,
		Test:        test,
	}

	if test {
		p.Output = paths.Test
		p.Invocations = []model.Invocation{{
			Kind:   model.KindTest,
			Args:   Compile(o, model.KindTest, paths),
			Output: paths.Test,
			Weight: 1,
		}}
		return p
	}

	if o.UsesTwoPass() {
		p.Invocations = append(p.Invocations,
			model.Invocation{
				Kind:    model.KindPass1,
				Args:    Compile(o, model.KindPass1, paths),
				Output:  NullDevice(),
				Pass:    1,
				PassLog: paths.PassLog,
				Weight:  Pass1Weight,
			},
			model.Invocation{
				Kind:    model.KindPass2,
				Args:    Compile(o, model.KindPass2, paths),
				Output:  mainOutput(o, paths),
				Pass:    2,
				PassLog: paths.PassLog,
				Weight:  Pass2Weight,
			},
		)
	} else {
		p.Invocations = append(p.Invocations, model.Invocation{
			Kind:   model.KindEncode,
			Args:   Compile(o, model.KindEncode, paths),
			Output: mainOutput(o, paths),
			Weight: 1,
		})
	}

	if o.Preview != nil {
		p.Invocations = append(p.Invocations,
			model.Invocation{
				Kind:   model.KindPreview,
				Args:   Compile(o, model.KindPreview, paths),
				Output: paths.Preview,
			},
			model.Invocation{
				Kind:   model.KindConcat,
				Args:   Compile(o, model.KindConcat, paths),
				Output: o.Output,
			},
		)
	}
	return p
}

// Intermediates lists the temp files a plan may leave behind, excluding
// the test output which outlives the run.
func Intermediates(paths model.JobPaths) []string {
	return []string{paths.Preview, paths.ConcatList, paths.Main}
}
