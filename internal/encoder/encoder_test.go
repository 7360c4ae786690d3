package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"webmcut/internal/model"
	"webmcut/internal/progress"
	"webmcut/internal/util"
)

type fakeHandle struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newFakeHandle() *fakeHandle { return &fakeHandle{done: make(chan struct{})} }

func (h *fakeHandle) finish(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

func (h *fakeHandle) Wait() error {
	<-h.done
	return h.err
}

func (h *fakeHandle) Kill() error {
	h.finish(&util.ExitError{Code: -1, Signal: "SIGKILL"})
	return nil
}

func (h *fakeHandle) Pid() int { return 0 }

// fakeRunner records invocations and lets each test script what the
// "ffmpeg" process does.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	step  func(n int, spec util.CmdSpec, h *fakeHandle)
}

func (r *fakeRunner) Start(_ context.Context, spec util.CmdSpec) (util.Handle, error) {
	r.mu.Lock()
	n := len(r.calls)
	r.calls = append(r.calls, spec.Args)
	step := r.step
	r.mu.Unlock()

	h := newFakeHandle()
	step(n, spec, h)
	return h, nil
}

func (r *fakeRunner) setStep(step func(n int, spec util.CmdSpec, h *fakeHandle)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.step = step
}

func (r *fakeRunner) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

type recordingReporter struct {
	mu      sync.Mutex
	updates []progress.Update
	logs    []progress.Log
	results []progress.Result
}

func (r *recordingReporter) Update(u progress.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recordingReporter) Log(l progress.Log) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
}

func (r *recordingReporter) Result(res progress.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func writeLastArg(t *testing.T, args []string) {
	t.Helper()
	out := args[len(args)-1]
	if out == NullDevice() {
		return
	}
	if err := os.WriteFile(out, []byte("webm"), 0o644); err != nil {
		t.Errorf("write fake output: %v", err)
	}
}

// succeed emits chunks on stderr, writes the output and exits 0.
func succeed(t *testing.T, chunks ...string) func(int, util.CmdSpec, *fakeHandle) {
	return func(_ int, spec util.CmdSpec, h *fakeHandle) {
		for _, c := range chunks {
			spec.StderrChunk([]byte(c))
		}
		writeLastArg(t, spec.Args)
		h.finish(nil)
	}
}

func argAfter(args []string, flag string) string {
	v, _ := flagValue(args, flag)
	return v
}

func newTestJob(t *testing.T, o model.EncodeOptions, test bool, runner util.CmdRunner, rep progress.Reporter) *Job {
	t.Helper()
	job, err := NewJob(o, test, Options{
		FFmpegPath: "ffmpeg",
		TempBase:   t.TempDir(),
		JobID:      "job1",
		Runner:     runner,
		Reporter:   rep,
	})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	t.Cleanup(func() { _ = job.Close() })
	return job
}

func jobOptions(t *testing.T) model.EncodeOptions {
	o := baseOptions()
	o.Output = filepath.Join(t.TempDir(), "out.webm")
	return o
}

func TestJob_CRFRun(t *testing.T) {
	o := jobOptions(t)
	runner := &fakeRunner{step: succeed(t, "frame=  150 fps=30\r", "frame=  300 fps=30\n")}
	rep := &recordingReporter{}
	job := newTestJob(t, o, false, runner, rep)

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.OutputPath != o.Output || res.Bytes != 4 || res.JobID != "job1" {
		t.Errorf("result = %+v", res)
	}
	if job.Percent() != 100 {
		t.Errorf("Percent = %v, want 100", job.Percent())
	}
	if _, err := os.Stat(o.Output); err != nil {
		t.Errorf("output missing: %v", err)
	}
	calls := runner.Calls()
	if len(calls) != 1 || !containsSeq(calls[0], "-crf", "25", "-b:v", "0") {
		t.Errorf("calls = %v", calls)
	}
	if got := job.Log(); got != "frame=  300 fps=30\n" {
		t.Errorf("log = %q", got)
	}

	rep.mu.Lock()
	defer rep.mu.Unlock()
	if len(rep.results) != 0 {
		t.Errorf("the job must leave the final result to its caller: %+v", rep.results)
	}
	last := rep.updates[len(rep.updates)-1]
	if last.Stage != progress.StageCompleted || last.Percent != 100 {
		t.Errorf("last update = %+v", last)
	}
	if job.Running() {
		t.Error("job still running")
	}
}

func TestJob_TwoPass(t *testing.T) {
	o := jobOptions(t)
	o.Mode = model.Limit(model.MiBToKbit(4))
	o.TwoPass = true
	runner := &fakeRunner{}
	runner.step = func(n int, spec util.CmdSpec, h *fakeHandle) {
		if n == 0 {
			log := argAfter(spec.Args, "-passlogfile") + "-0.log"
			if err := os.WriteFile(log, []byte("stats"), 0o644); err != nil {
				t.Errorf("write pass log: %v", err)
			}
		}
		spec.StderrChunk([]byte("frame=300\n"))
		writeLastArg(t, spec.Args)
		h.finish(nil)
	}
	rep := &recordingReporter{}
	job := newTestJob(t, o, false, runner, rep)

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	calls := runner.Calls()
	if len(calls) != 2 || !containsSeq(calls[0], "-pass", "1") || !containsSeq(calls[1], "-pass", "2") {
		t.Fatalf("calls = %v", calls)
	}
	if left, _ := filepath.Glob(job.Paths().PassLog + "*"); len(left) != 0 {
		t.Errorf("pass logs left behind: %v", left)
	}

	rep.mu.Lock()
	defer rep.mu.Unlock()
	var sawPass1, sawPass2 bool
	for _, u := range rep.updates {
		if u.Stage == progress.StagePass1 && almostEqual(u.Percent, 30) {
			sawPass1 = true
		}
		if u.Stage == progress.StagePass2 && u.Percent == maxRunningPercent {
			sawPass2 = true
		}
	}
	if !sawPass1 || !sawPass2 {
		t.Errorf("missing pass updates: %+v", rep.updates)
	}
}

func TestJob_Preview(t *testing.T) {
	o := jobOptions(t)
	o.Preview = &model.Preview{Time: 1}
	var list string
	runner := &fakeRunner{}
	runner.step = func(n int, spec util.CmdSpec, h *fakeHandle) {
		if n == 2 {
			data, err := os.ReadFile(argAfter(spec.Args, "-i"))
			if err != nil {
				t.Errorf("read concat list: %v", err)
			}
			list = string(data)
		}
		writeLastArg(t, spec.Args)
		h.finish(nil)
	}
	job := newTestJob(t, o, false, runner, nil)

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	paths := job.Paths()
	if want := ConcatList(paths.Preview, paths.Main); list != want {
		t.Errorf("concat list = %q, want %q", list, want)
	}
	for _, p := range Intermediates(paths) {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("intermediate %s not removed", p)
		}
	}
	if _, err := os.Stat(o.Output); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestJob_FailureThenRerun(t *testing.T) {
	o := jobOptions(t)
	runner := &fakeRunner{}
	runner.step = func(_ int, spec util.CmdSpec, h *fakeHandle) {
		spec.StderrChunk([]byte("frame=100\nInvalid data\n"))
		writeLastArg(t, spec.Args)
		h.finish(&util.ExitError{Code: 1})
	}
	job := newTestJob(t, o, false, runner, nil)

	res, err := job.Run(context.Background())
	if !errors.Is(err, ErrEncodeFailed) || !errors.Is(res.Err, ErrEncodeFailed) {
		t.Fatalf("err = %v, want ErrEncodeFailed", err)
	}
	if errors.Is(err, ErrCanceled) {
		t.Error("failure reported as cancel")
	}
	if res.OutputPath != "" {
		t.Errorf("OutputPath = %q on failure", res.OutputPath)
	}
	if job.Percent() != 0 {
		t.Errorf("Percent = %v after failure", job.Percent())
	}
	if got, want := job.Log(), "frame=100\nInvalid data\nexited with 1\n"; got != want {
		t.Errorf("log = %q, want %q", got, want)
	}
	if _, err := os.Stat(o.Output); !os.IsNotExist(err) {
		t.Error("partial output not removed")
	}

	runner.setStep(succeed(t, "frame=300\n"))
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if strings.Contains(job.Log(), "exited") {
		t.Errorf("log not reset on rerun: %q", job.Log())
	}
	if job.Percent() != 100 {
		t.Errorf("Percent = %v after rerun", job.Percent())
	}
}

func TestJob_CancelAndConcurrentStart(t *testing.T) {
	o := jobOptions(t)
	o.Mode = model.Limit(model.MiBToKbit(4))
	o.TwoPass = true
	started := make(chan struct{})
	runner := &fakeRunner{}
	runner.step = func(n int, spec util.CmdSpec, _ *fakeHandle) {
		spec.StderrChunk([]byte("frame=30\r"))
		if n == 0 {
			close(started)
		}
	}
	job := newTestJob(t, o, false, runner, nil)

	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	if err := job.Start(context.Background()); !errors.Is(err, ErrJobRunning) {
		t.Errorf("second Start = %v, want ErrJobRunning", err)
	}
	if !job.Running() {
		t.Error("Running() = false during run")
	}

	job.Cancel()
	res := job.Wait()
	if !errors.Is(res.Err, ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", res.Err)
	}
	if !strings.HasSuffix(job.Log(), "frame=30\nkilled by SIGKILL\n") {
		t.Errorf("log = %q", job.Log())
	}
	if len(runner.Calls()) != 1 {
		t.Errorf("pass 2 ran after cancel: %v", runner.Calls())
	}
	if job.Percent() != 0 || job.Running() {
		t.Errorf("Percent %v Running %v after cancel", job.Percent(), job.Running())
	}
}

func TestJob_TestEncodeKeepsOutput(t *testing.T) {
	o := jobOptions(t)
	o.Preview = &model.Preview{Time: 1}
	runner := &fakeRunner{step: succeed(t, "frame=300\n")}
	job := newTestJob(t, o, true, runner, nil)

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.OutputPath != job.Paths().Test {
		t.Errorf("OutputPath = %q, want %q", res.OutputPath, job.Paths().Test)
	}
	if _, err := os.Stat(job.Paths().Test); err != nil {
		t.Errorf("test output removed: %v", err)
	}
	if _, err := os.Stat(o.Output); !os.IsNotExist(err) {
		t.Error("test encode wrote the real output")
	}
	if len(runner.Calls()) != 1 {
		t.Errorf("test encode ran %d invocations", len(runner.Calls()))
	}
}

func TestJob_Close(t *testing.T) {
	o := jobOptions(t)
	job := newTestJob(t, o, false, &fakeRunner{step: succeed(t)}, nil)
	workdir := job.Paths().Workdir
	if _, err := os.Stat(workdir); err != nil {
		t.Fatalf("workdir missing: %v", err)
	}
	if err := job.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(workdir); !os.IsNotExist(err) {
		t.Error("workdir not removed")
	}
	if err := job.Start(context.Background()); !errors.Is(err, ErrJobClosed) {
		t.Errorf("Start after Close = %v", err)
	}
}

func TestJob_FailureKeepsUntouchedOutput(t *testing.T) {
	tests := []struct {
		name    string
		mode    model.Mode
		twoPass bool
		preview *model.Preview
		failAt  int
		keep    bool
	}{
		{name: "pass 1 fails", mode: model.CustomBitrate(1000), twoPass: true, failAt: 0, keep: true},
		{name: "main part fails before concat", mode: model.CRF(30), preview: &model.Preview{Time: 1}, failAt: 0, keep: true},
		{name: "preview fails", mode: model.CRF(30), preview: &model.Preview{Time: 1}, failAt: 1, keep: true},
		{name: "concat fails", mode: model.CRF(30), preview: &model.Preview{Time: 1}, failAt: 2},
		{name: "pass 2 fails", mode: model.CustomBitrate(1000), twoPass: true, failAt: 1},
		{name: "single pass fails", mode: model.CRF(30), failAt: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := jobOptions(t)
			o.Mode, o.TwoPass, o.Preview = tt.mode, tt.twoPass, tt.preview
			if err := os.WriteFile(o.Output, []byte("precious"), 0o644); err != nil {
				t.Fatal(err)
			}
			runner := &fakeRunner{}
			runner.step = func(n int, spec util.CmdSpec, h *fakeHandle) {
				if n == tt.failAt {
					h.finish(&util.ExitError{Code: 1})
					return
				}
				writeLastArg(t, spec.Args)
				h.finish(nil)
			}
			job := newTestJob(t, o, false, runner, nil)

			if _, err := job.Run(context.Background()); !errors.Is(err, ErrEncodeFailed) {
				t.Fatalf("err = %v, want ErrEncodeFailed", err)
			}
			data, err := os.ReadFile(o.Output)
			switch {
			case tt.keep && (err != nil || string(data) != "precious"):
				t.Errorf("existing output damaged: %q, %v", data, err)
			case !tt.keep && !os.IsNotExist(err):
				t.Errorf("partial output not removed: %v", err)
			}
		})
	}
}

func TestJob_ContextCancel(t *testing.T) {
	o := jobOptions(t)
	o.Mode = model.CustomBitrate(1000)
	o.TwoPass = true
	if err := os.WriteFile(o.Output, []byte("precious"), 0o644); err != nil {
		t.Fatal(err)
	}
	started := make(chan struct{})
	runner := &fakeRunner{}
	runner.step = func(n int, spec util.CmdSpec, _ *fakeHandle) {
		spec.StderrChunk([]byte("frame=30\r"))
		if n == 0 {
			close(started)
		}
	}
	rep := &recordingReporter{}
	job := newTestJob(t, o, false, runner, rep)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := job.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	cancel()

	res := job.Wait()
	if !errors.Is(res.Err, ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", res.Err)
	}
	if len(runner.Calls()) != 1 {
		t.Errorf("pass 2 ran after cancel: %v", runner.Calls())
	}
	if data, _ := os.ReadFile(o.Output); string(data) != "precious" {
		t.Errorf("existing output damaged: %q", data)
	}

	rep.mu.Lock()
	defer rep.mu.Unlock()
	if last := rep.updates[len(rep.updates)-1]; last.Stage != progress.StageCanceled {
		t.Errorf("last update = %+v, want canceled", last)
	}
}

func TestJob_CanceledContextBeforeStart(t *testing.T) {
	o := jobOptions(t)
	runner := &fakeRunner{step: succeed(t)}
	job := newTestJob(t, o, false, runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := job.Run(ctx); !errors.Is(err, ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if len(runner.Calls()) != 0 {
		t.Errorf("ffmpeg started on a canceled context: %v", runner.Calls())
	}
}
