// Package pipeline orchestrates the webmcut workflow: probe the input,
// validate the options against it, compile the plan and run the encode job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/lithammer/shortuuid/v4"
	"github.com/sirupsen/logrus"

	"webmcut/internal/encoder"
	"webmcut/internal/logging"
	"webmcut/internal/model"
	"webmcut/internal/probe"
	"webmcut/internal/progress"
	"webmcut/internal/util"
	"webmcut/internal/util/format"
	"webmcut/internal/util/media"
	"webmcut/internal/validate"
)

// ErrInvalidOptions wraps the joined field errors of a failed validation.
var ErrInvalidOptions = errors.New("invalid options")

// overshootTolerance is how far above the size limit an output may land
// before it is flagged.
const overshootTolerance = 1.10

// Service runs jobs for a single configured ffmpeg/ffprobe pair.
type Service struct {
	ffmpegPath  string
	ffprobePath string
	runner      util.CmdRunner
	reporter    progress.Reporter
	logger      logrus.FieldLogger
	sampler     *util.UsageSampler
	jobID       string
	tempBase    string
	keepTemp    bool
	verbose     bool

	editor ArgsEditor
}

// Option configures a Service.
type Option func(*Service)

// WithFFmpegPath sets the ffmpeg binary path.
func WithFFmpegPath(p string) Option {
	return func(s *Service) {
		s.ffmpegPath = p
	}
}

// WithFFprobePath sets the ffprobe binary path.
func WithFFprobePath(p string) Option {
	return func(s *Service) {
		s.ffprobePath = p
	}
}

// WithRunner injects a custom command runner (useful for testing).
func WithRunner(r util.CmdRunner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// WithReporter attaches a progress reporter (used by the TUI).
func WithReporter(rp progress.Reporter) Option {
	return func(s *Service) {
		s.reporter = rp
	}
}

// WithLogger sets the logger handed to jobs.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithUsageSampler enables CPU/RSS sampling of the running encoder.
func WithUsageSampler(u *util.UsageSampler) Option {
	return func(s *Service) {
		s.sampler = u
	}
}

// WithJobID sets the job ID associated with reporter events and the workdir.
func WithJobID(id string) Option {
	return func(s *Service) {
		s.jobID = id
	}
}

// WithTempBase sets the parent directory of job workdirs.
func WithTempBase(dir string) Option {
	return func(s *Service) {
		s.tempBase = dir
	}
}

// WithKeepTemp leaves the job workdir in place after the run.
func WithKeepTemp(keep bool) Option {
	return func(s *Service) {
		s.keepTemp = keep
	}
}

// WithVerbose mirrors ffmpeg output to the terminal.
func WithVerbose(v bool) Option {
	return func(s *Service) {
		s.verbose = v
	}
}

// NewService constructs a Service. Missing collaborators get defaults.
func NewService(opts ...Option) *Service {
	s := &Service{}
	for _, o := range opts {
		o(s)
	}
	if s.runner == nil {
		s.runner = util.NewDefaultRunner()
	}
	if s.reporter == nil {
		s.reporter = progress.Nop{}
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.jobID == "" {
		s.jobID = shortuuid.New()
	}
	return s
}

// JobID is the ID used for reporter events.
func (s *Service) JobID() string { return s.jobID }

// ArgsText is the codec/filter block of the last valid Prepare.
func (s *Service) ArgsText() string { return s.editor.Text() }

// Prepared is a probed and validated request.
type Prepared struct {
	Source     model.Source
	Validation validate.Result
}

// Options returns the validated option set.
func (p Prepared) Options() model.EncodeOptions { return p.Validation.Options }

// Outcome is what Encode produced.
type Outcome struct {
	JobID  string
	Output string
	Bytes  int64
	Test   bool

	// TempDir is the kept workdir. Test encodes always keep it because the
	// test output lives there.
	TempDir string

	// NextOutput is the next free output path after a full encode, so that
	// a rerun does not overwrite this one.
	NextOutput string

	Overshot       bool
	OvershootRatio float64
}

// Probe reads the input's metadata with ffprobe.
func (s *Service) Probe(ctx context.Context, input string) (model.Source, error) {
	if s.ffprobePath == "" {
		return model.Source{}, errors.New("ffprobe path is required")
	}
	s.reporter.Update(progress.Update{
		JobID:   s.jobID,
		Stage:   progress.StageProbe,
		Percent: -1,
		Message: "Probing " + filepath.Base(input),
	})
	src, err := probe.Probe(ctx, s.runner, s.ffprobePath, input)
	if err != nil {
		return src, fmt.Errorf("probe: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"input":    input,
		"duration": src.Duration,
		"video":    len(src.Video),
		"audio":    len(src.Audio),
	}).Debug("probed input")
	return src, nil
}

// Prepare probes raw.Input and validates raw against it. An invalid option
// set is returned alongside an error wrapping ErrInvalidOptions.
func (s *Service) Prepare(ctx context.Context, raw validate.RawOptions) (Prepared, error) {
	src, err := s.Probe(ctx, raw.Input)
	if err != nil {
		return Prepared{}, err
	}
	res := validate.Validate(raw, src)
	p := Prepared{Source: src, Validation: res}
	s.editor.Update(res)
	if !res.Valid() {
		return p, fmt.Errorf("%w: %w", ErrInvalidOptions, res.Err())
	}
	for _, w := range res.Warnings {
		s.logger.WithField("job", s.jobID).Debug(w)
	}
	return p, nil
}

// Plan compiles the invocations Encode would run, without touching disk.
// The workdir shown is the parent the job will create its directory in.
func (s *Service) Plan(o model.EncodeOptions, test bool) encoder.Plan {
	base := s.tempBase
	if base == "" {
		base = util.DefaultTempBase()
	}
	paths := encoder.NewJobPaths(filepath.Join(base, "job-"+s.jobID))
	return encoder.NewPlan(o, paths, test)
}

// Encode runs a full or test encode of o. It never prints; the reporter
// receives progress and exactly one final Result.
func (s *Service) Encode(ctx context.Context, o model.EncodeOptions, test bool) (Outcome, error) {
	out := Outcome{JobID: s.jobID, Test: test}
	if s.ffmpegPath == "" {
		err := errors.New("ffmpeg path is required")
		s.emitFailed(err)
		return out, err
	}

	job, err := encoder.NewJob(o, test, encoder.Options{
		FFmpegPath: s.ffmpegPath,
		Verbose:    s.verbose,
		TempBase:   s.tempBase,
		JobID:      s.jobID,
		Runner:     s.runner,
		Reporter:   s.reporter,
		Logger:     s.logger,
		Sampler:    s.sampler,
	})
	if err != nil {
		s.emitFailed(err)
		return out, err
	}

	keep := s.keepTemp || test
	if keep {
		out.TempDir = job.Paths().Workdir
	} else {
		defer func() {
			if err := job.Close(); err != nil {
				s.logger.WithError(err).Debug("remove workdir")
			}
		}()
	}

	res, err := job.Run(ctx)
	if err != nil {
		s.emitFailed(err)
		return out, err
	}
	out.Output = res.OutputPath
	out.Bytes = res.Bytes

	if !test {
		next, aerr := media.AllocateOutputPath(o.Output)
		if aerr != nil {
			s.logger.WithError(aerr).Warn("could not allocate the next output path")
		} else {
			out.NextOutput = next
		}
		out.Overshot, out.OvershootRatio = checkOvershoot(o.Mode, res.Bytes)
		if out.Overshot {
			s.logger.WithField("ratio", out.OvershootRatio).Warn("output exceeds the size limit")
		}
	}

	s.emitSaved(out)
	return out, nil
}

// emitSaved sends a final "saved" update and reporter result.
func (s *Service) emitSaved(out Outcome) {
	name := filepath.Base(out.Output)
	verb := "Saved"
	if out.Test {
		verb = "Test encode"
	}
	s.reporter.Update(progress.Update{
		JobID:   s.jobID,
		Stage:   progress.StageCompleted,
		Percent: 100,
		Message: fmt.Sprintf("%s: %s (%s)", verb, name, format.HumanizeBytes(out.Bytes)),
	})
	s.reporter.Result(progress.Result{
		JobID:      s.jobID,
		OutputPath: out.Output,
		Bytes:      out.Bytes,
	})
}

func (s *Service) emitFailed(err error) {
	s.reporter.Result(progress.Result{JobID: s.jobID, Err: err})
}

// checkOvershoot reports whether a size-limited output is more than 10%
// over its limit, along with the size/limit ratio.
func checkOvershoot(m model.Mode, outBytes int64) (bool, float64) {
	kbit := m.LimitKbit()
	if kbit <= 0 {
		return false, 0
	}
	limitBytes := kbit * 1024 / 8
	ratio := float64(outBytes) / float64(limitBytes)
	return ratio > overshootTolerance, ratio
}
