package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"github.com/sirupsen/logrus"

	"webmcut/internal/logging"
	"webmcut/internal/model"
	"webmcut/internal/progress"
	"webmcut/internal/util"
)

var (
	// ErrJobRunning is returned by Start while a run is in flight.
	ErrJobRunning = errors.New("encode job is already running")
	// ErrEncodeFailed wraps the failure of an ffmpeg invocation.
	ErrEncodeFailed = errors.New("encode failed")
	// ErrCanceled is returned when Cancel aborted the run.
	ErrCanceled = errors.New("encode canceled")
	// ErrJobClosed is returned by Start after Close.
	ErrJobClosed = errors.New("encode job is closed")
)

// Options control ffmpeg execution.
type Options struct {
	FFmpegPath string
	Verbose    bool
	TempBase   string // parent of the job workdir; empty = $TMPDIR/webmcut
	JobID      string // generated when empty

	Runner   util.CmdRunner
	Reporter progress.Reporter
	Logger   logrus.FieldLogger
	Sampler  *util.UsageSampler // nil disables usage reporting
}

// Result is the outcome of one run.
type Result struct {
	JobID      string
	OutputPath string
	Bytes      int64
	Err        error
}

// Job runs the invocations of one encode sequentially. A job may be run
// again after it failed; it is never run twice concurrently.
type Job struct {
	opts  Options
	enc   model.EncodeOptions
	test  bool
	id    string
	paths model.JobPaths
	plan  Plan
	log   logrus.FieldLogger

	mu       sync.Mutex
	running  bool
	closed   bool
	canceled bool
	handle   util.Handle
	done     chan struct{}
	result   Result
	tracker  Tracker
	text     string // logical log
	stage    progress.Stage
}

// NewJob allocates the job's workdir and temp paths.
func NewJob(enc model.EncodeOptions, test bool, opts Options) (*Job, error) {
	if opts.FFmpegPath == "" {
		return nil, errors.New("ffmpeg path is required")
	}
	if opts.Runner == nil {
		opts.Runner = util.NewDefaultRunner()
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.Nop{}
	}
	if opts.JobID == "" {
		opts.JobID = shortuuid.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	workdir, err := util.MakeTempWorkdir(opts.TempBase, "job-"+opts.JobID)
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	paths := NewJobPaths(workdir)
	j := &Job{
		opts:  opts,
		enc:   enc,
		test:  test,
		id:    opts.JobID,
		paths: paths,
		plan:  NewPlan(enc, paths, test),
		log:   opts.Logger.WithField("job", opts.JobID),
	}
	return j, nil
}

func (j *Job) ID() string { return j.id }

// Paths returns the per-job temp paths.
func (j *Job) Paths() model.JobPaths { return j.paths }

func (j *Job) Plan() Plan { return j.plan }

// Log returns the logical log of the current or last run.
func (j *Job) Log() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.text
}

// Percent returns the progress of the current or last run.
func (j *Job) Percent() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.tracker.Percent
}

// Running reports whether invocations are in flight.
func (j *Job) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// Start launches the run in the background.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJobClosed
	}
	if j.running {
		return ErrJobRunning
	}
	j.running = true
	j.canceled = false
	j.done = make(chan struct{})
	j.result = Result{}
	j.tracker = NewTracker(j.plan.TotalFrames)
	j.text = ""
	go j.run(ctx, j.done)
	return nil
}

// Wait blocks until the current run finishes and returns its result.
func (j *Job) Wait() Result {
	j.mu.Lock()
	done := j.done
	j.mu.Unlock()
	if done == nil {
		return Result{JobID: j.id, Err: errors.New("encode job was not started")}
	}
	<-done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Run starts the job and waits for it.
func (j *Job) Run(ctx context.Context) (Result, error) {
	if err := j.Start(ctx); err != nil {
		return Result{JobID: j.id, Err: err}, err
	}
	res := j.Wait()
	return res, res.Err
}

// Cancel force-kills the running invocation and abandons the rest of the run.
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	j.canceled = true
	if j.handle != nil {
		if err := j.handle.Kill(); err != nil {
			j.log.WithError(err).Debug("kill ffmpeg")
		}
	}
}

// Close cancels a running job, waits for it and removes the workdir.
func (j *Job) Close() error {
	j.mu.Lock()
	running := j.running
	j.closed = true
	j.mu.Unlock()
	if running {
		j.Cancel()
		j.Wait()
	}
	return os.RemoveAll(j.paths.Workdir)
}

func (j *Job) run(ctx context.Context, done chan struct{}) {
	// A canceled context aborts the run like Cancel does, whether or not the
	// runner itself watches ctx.
	stop := context.AfterFunc(ctx, j.Cancel)

	var runErr error
	wroteOutput := false
	for _, inv := range j.plan.Invocations {
		if err := j.beginInvocation(ctx, inv); err != nil {
			runErr = err
			break
		}
		if inv.Kind == model.KindConcat {
			if err := WriteConcatList(j.paths.ConcatList, j.paths.Preview, j.paths.Main); err != nil {
				runErr = fmt.Errorf("write concat list: %w", err)
				break
			}
		}
		if inv.Output == j.plan.Output {
			wroteOutput = true
		}
		if err := j.runInvocation(ctx, inv); err != nil {
			runErr = err
			break
		}
	}
	stop()

	j.cleanupIntermediates()

	res := Result{JobID: j.id, OutputPath: j.plan.Output}
	if runErr == nil {
		if fi, err := os.Stat(j.plan.Output); err == nil {
			res.Bytes = fi.Size()
		}
	} else {
		// Only a partial file from this run is removed; an existing output
		// that no invocation opened is left alone.
		if wroteOutput {
			if err := util.RemoveIfExists(j.plan.Output); err != nil {
				j.log.WithError(err).Debug("remove partial output")
			}
		}
		res.OutputPath = ""
		res.Err = runErr
	}

	j.mu.Lock()
	canceled := j.canceled || ctx.Err() != nil
	if runErr == nil {
		j.applyLocked(j.tracker.Complete())
		j.stage = progress.StageCompleted
	} else {
		reason := failureReason(runErr)
		if canceled {
			res.Err = fmt.Errorf("%w: %s", ErrCanceled, reason)
			j.stage = progress.StageCanceled
		} else {
			j.stage = progress.StageError
		}
		j.applyLocked(j.tracker.Fail(reason))
	}
	j.result = res
	j.running = false
	j.handle = nil
	percent := j.tracker.Percent
	stage := j.stage
	j.mu.Unlock()

	if res.Err != nil {
		j.log.WithError(res.Err).Info("encode failed")
	} else {
		j.log.WithField("output", res.OutputPath).Info("encode finished")
	}
	j.opts.Reporter.Update(progress.Update{JobID: j.id, Stage: stage, Percent: percent, Message: statusMessage(stage, res)})
	close(done)
}

func (j *Job) beginInvocation(ctx context.Context, inv model.Invocation) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.canceled || ctx.Err() != nil {
		return errors.New("canceled before " + string(inv.Kind))
	}
	j.tracker = j.tracker.NextPass(inv.Weight)
	j.stage = progress.StageFor(inv.Kind)
	return nil
}

func (j *Job) runInvocation(ctx context.Context, inv model.Invocation) error {
	entry := j.log.WithFields(logrus.Fields{"kind": inv.Kind, "pass": inv.Pass})
	entry.Debugf("+ %s", util.ShellQuote(j.opts.FFmpegPath, inv.Args))

	h, err := j.opts.Runner.Start(ctx, util.CmdSpec{
		Path:        j.opts.FFmpegPath,
		Args:        inv.Args,
		Verbose:     j.opts.Verbose,
		StdoutChunk: func(b []byte) { j.feed(progress.StreamStdout, b) },
		StderrChunk: func(b []byte) { j.feed(progress.StreamStderr, b) },
	})
	if err != nil {
		return fmt.Errorf("%w: start ffmpeg: %v", ErrEncodeFailed, err)
	}

	j.mu.Lock()
	j.handle = h
	if j.canceled || ctx.Err() != nil {
		_ = h.Kill()
	}
	j.mu.Unlock()

	if j.opts.Sampler != nil {
		if err := j.opts.Sampler.Attach(h.Pid()); err != nil {
			entry.WithError(err).Debug("usage sampling unavailable")
		}
		defer j.opts.Sampler.Detach()
	}

	waitErr := h.Wait()

	j.mu.Lock()
	j.handle = nil
	j.applyLocked(j.tracker.Flush())
	j.mu.Unlock()

	if waitErr != nil {
		entry.WithError(waitErr).Debug("ffmpeg exited")
		return fmt.Errorf("%w: %s: %w", ErrEncodeFailed, inv.Kind, waitErr)
	}
	entry.Debug("ffmpeg exited cleanly")
	return nil
}

func (j *Job) feed(stream progress.LogStream, b []byte) {
	j.mu.Lock()
	var d Delta
	j.tracker, d = Feed(j.tracker, b)
	j.text = d.Apply(j.text)
	u := progress.Update{
		JobID:   j.id,
		Stage:   j.stage,
		Percent: j.tracker.Percent,
		Message: d.Status,
	}
	j.mu.Unlock()

	for _, line := range d.Lines {
		j.opts.Reporter.Log(progress.Log{JobID: j.id, Stream: stream, Line: line})
	}
	if d.Status == "" && d.Progress == 0 {
		return
	}
	if j.opts.Sampler != nil {
		if usage, fresh := j.opts.Sampler.Sample(); fresh {
			cpu, rss := usage.CPU, usage.RSS
			u.CPU, u.RSS = &cpu, &rss
		}
	}
	j.opts.Reporter.Update(u)
}

// applyLocked folds a tracker step into the job. Caller holds j.mu.
func (j *Job) applyLocked(t Tracker, d Delta) {
	j.tracker = t
	j.text = d.Apply(j.text)
	for _, line := range d.Lines {
		j.opts.Reporter.Log(progress.Log{JobID: j.id, Stream: progress.StreamStderr, Line: line})
	}
}

func (j *Job) cleanupIntermediates() {
	for _, p := range Intermediates(j.paths) {
		if err := util.RemoveIfExists(p); err != nil {
			j.log.WithError(err).Debug("remove intermediate")
		}
	}
	if err := util.RemoveGlob(j.paths.PassLog + "*"); err != nil {
		j.log.WithError(err).Debug("remove pass log")
	}
}

// failureReason is the log line appended when a run fails.
func failureReason(err error) string {
	var ee *util.ExitError
	if errors.As(err, &ee) {
		return ee.Error()
	}
	msg := err.Error()
	return strings.TrimPrefix(msg, ErrEncodeFailed.Error()+": ")
}

func statusMessage(stage progress.Stage, res Result) string {
	switch stage {
	case progress.StageCompleted:
		return "Done"
	case progress.StageCanceled:
		return "Canceled"
	default:
		if res.Err != nil {
			return failureReason(res.Err)
		}
		return ""
	}
}
