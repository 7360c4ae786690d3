package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"webmcut/internal/encoder"
	"webmcut/internal/model"
	"webmcut/internal/progress"
	"webmcut/internal/util"
	"webmcut/internal/validate"
)

const probeJSON = `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "r_frame_rate": "25/1"},
    {"codec_type": "audio", "codec_name": "aac", "channels": 2, "sample_rate": "48000"}
  ],
  "format": {"duration": "20.000000"}
}`

type recordingReporter struct {
	mu      sync.Mutex
	updates []progress.Update
	results []progress.Result
	logs    []progress.Log
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

type fakeHandle struct{ err error }

func (h fakeHandle) Wait() error { return h.err }
func (h fakeHandle) Kill() error { return nil }
func (h fakeHandle) Pid() int    { return 0 }

// fakeRunner simulates ffprobe and ffmpeg. ffmpeg writes outputBytes bytes
// to its last argument unless it is told to fail.
type fakeRunner struct {
	t           *testing.T
	ffprobePath string
	probeOut    string
	outputBytes int
	ffmpegErr   error

	mu    sync.Mutex
	calls [][]string
}

func (f *fakeRunner) Start(_ context.Context, spec util.CmdSpec) (util.Handle, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{spec.Path}, spec.Args...))
	f.mu.Unlock()

	if spec.Path == f.ffprobePath {
		spec.StdoutChunk([]byte(f.probeOut))
		return fakeHandle{}, nil
	}

	spec.StderrChunk([]byte("frame=  250 fps=50\n"))
	if f.ffmpegErr != nil {
		spec.StderrChunk([]byte("Conversion failed!\n"))
		return fakeHandle{err: f.ffmpegErr}, nil
	}
	out := spec.Args[len(spec.Args)-1]
	if out != encoder.NullDevice() {
		if err := os.WriteFile(out, make([]byte, f.outputBytes), 0o644); err != nil {
			f.t.Errorf("write fake output: %v", err)
		}
	}
	return fakeHandle{}, nil
}

func (f *fakeRunner) ffmpegCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		if c[0] != f.ffprobePath {
			out = append(out, c[1:])
		}
	}
	return out
}

func newTestService(t *testing.T, r *fakeRunner, rep progress.Reporter, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithFFmpegPath("/bin/ffmpeg"),
		WithFFprobePath("/bin/ffprobe"),
		WithRunner(r),
		WithReporter(rep),
		WithJobID("job1"),
		WithTempBase(t.TempDir()),
	}
	return NewService(append(base, opts...)...)
}

func newRunner(t *testing.T) *fakeRunner {
	return &fakeRunner{t: t, ffprobePath: "/bin/ffprobe", probeOut: probeJSON, outputBytes: 2048}
}

func testRaw(t *testing.T) validate.RawOptions {
	t.Helper()
	dir := t.TempDir()
	return validate.RawOptions{
		Input:   filepath.Join(dir, "clip.mkv"),
		OutDir:  dir,
		TempDir: t.TempDir(),
	}
}

func TestService_PrepareAndEncode(t *testing.T) {
	r := newRunner(t)
	rep := &recordingReporter{}
	svc := newTestService(t, r, rep)

	raw := testRaw(t)
	raw.ModeCRF = true
	raw.Start = "5"
	raw.Duration = "10"
	p, err := svc.Prepare(context.Background(), raw)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	o := p.Options()
	if o.Mode.Kind() != model.ModeCRF || o.Start != 5 || o.Duration != 10 || o.FrameRate != 25 {
		t.Fatalf("options = %+v", o)
	}
	if !strings.Contains(svc.ArgsText(), "-crf") {
		t.Errorf("ArgsText = %q", svc.ArgsText())
	}

	out, err := svc.Encode(context.Background(), o, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if out.Output != filepath.Join(raw.OutDir, "clip.webm") || out.Bytes != 2048 {
		t.Errorf("outcome = %+v", out)
	}
	if out.NextOutput != filepath.Join(raw.OutDir, "clip-2.webm") {
		t.Errorf("NextOutput = %q", out.NextOutput)
	}
	if out.TempDir != "" {
		t.Errorf("TempDir = %q, workdir should have been removed", out.TempDir)
	}
	if calls := r.ffmpegCalls(); len(calls) != 1 {
		t.Errorf("ffmpeg calls = %v", calls)
	}

	rep.mu.Lock()
	defer rep.mu.Unlock()
	if len(rep.results) != 1 || rep.results[0].Err != nil || rep.results[0].Bytes != 2048 {
		t.Fatalf("results = %+v", rep.results)
	}
	if rep.updates[0].Stage != progress.StageProbe {
		t.Errorf("first update = %+v", rep.updates[0])
	}
	last := rep.updates[len(rep.updates)-1]
	if last.Stage != progress.StageCompleted || last.Message != "Saved: clip.webm (2.0 KiB)" {
		t.Errorf("last update = %+v", last)
	}
}

func TestService_PrepareInvalidKeepsArgsText(t *testing.T) {
	r := newRunner(t)
	svc := newTestService(t, r, nil)

	raw := testRaw(t)
	raw.ModeCRF = true
	raw.Quality = "20"
	if _, err := svc.Prepare(context.Background(), raw); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	before := svc.ArgsText()

	raw.Quality = "500"
	p, err := svc.Prepare(context.Background(), raw)
	if !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("err = %v, want ErrInvalidOptions", err)
	}
	if p.Validation.FieldErr(validate.FieldQuality) == nil {
		t.Errorf("errors = %v", p.Validation.Errors)
	}
	if svc.ArgsText() != before {
		t.Errorf("ArgsText changed on invalid input: %q -> %q", before, svc.ArgsText())
	}
}

func TestService_ProbeFailure(t *testing.T) {
	r := newRunner(t)
	r.probeOut = `{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`
	svc := newTestService(t, r, nil)

	if _, err := svc.Prepare(context.Background(), testRaw(t)); err == nil || !strings.HasPrefix(err.Error(), "probe:") {
		t.Fatalf("err = %v, want probe error", err)
	}
	if calls := r.ffmpegCalls(); len(calls) != 0 {
		t.Errorf("ffmpeg ran after a failed probe: %v", calls)
	}
}

func TestService_TestEncodeKeepsWorkdir(t *testing.T) {
	r := newRunner(t)
	rep := &recordingReporter{}
	svc := newTestService(t, r, rep)

	raw := testRaw(t)
	p, err := svc.Prepare(context.Background(), raw)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	out, err := svc.Encode(context.Background(), p.Options(), true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if out.TempDir == "" || !strings.HasPrefix(out.Output, out.TempDir) {
		t.Errorf("test output %q should live in kept workdir %q", out.Output, out.TempDir)
	}
	if _, err := os.Stat(out.Output); err != nil {
		t.Errorf("test output missing: %v", err)
	}
	if out.NextOutput != "" {
		t.Errorf("NextOutput = %q for a test encode", out.NextOutput)
	}
	if _, err := os.Stat(p.Options().Output); !os.IsNotExist(err) {
		t.Error("test encode wrote the real output")
	}
	rep.mu.Lock()
	defer rep.mu.Unlock()
	if last := rep.updates[len(rep.updates)-1]; !strings.HasPrefix(last.Message, "Test encode: ") {
		t.Errorf("last update = %+v", last)
	}
}

func TestService_EncodeFailure(t *testing.T) {
	r := newRunner(t)
	r.ffmpegErr = &util.ExitError{Code: 1}
	rep := &recordingReporter{}
	svc := newTestService(t, r, rep)

	raw := testRaw(t)
	p, err := svc.Prepare(context.Background(), raw)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	_, err = svc.Encode(context.Background(), p.Options(), false)
	if !errors.Is(err, encoder.ErrEncodeFailed) {
		t.Fatalf("err = %v, want ErrEncodeFailed", err)
	}
	var ee *util.ExitError
	if !errors.As(err, &ee) || ee.Code != 1 {
		t.Errorf("err = %v, want wrapped ExitError", err)
	}
	if _, err := os.Stat(p.Options().Output); !os.IsNotExist(err) {
		t.Error("partial output left behind")
	}
	rep.mu.Lock()
	defer rep.mu.Unlock()
	if len(rep.results) != 1 || rep.results[0].Err == nil {
		t.Errorf("results = %+v", rep.results)
	}
}

func TestService_MissingTools(t *testing.T) {
	svc := NewService(WithRunner(newRunner(t)))
	if _, err := svc.Probe(context.Background(), "x.mkv"); err == nil {
		t.Error("Probe without ffprobe path should fail")
	}
	if _, err := svc.Encode(context.Background(), model.EncodeOptions{}, false); err == nil {
		t.Error("Encode without ffmpeg path should fail")
	}
	if svc.JobID() == "" {
		t.Error("job ID should be generated")
	}
}

func TestService_Plan(t *testing.T) {
	r := newRunner(t)
	svc := newTestService(t, r, nil)
	raw := testRaw(t)
	raw.ModeLimit = true
	raw.Limit = "4"
	raw.TwoPass = true
	p, err := svc.Prepare(context.Background(), raw)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	pl := svc.Plan(p.Options(), false)
	if len(pl.Invocations) != 2 || pl.Invocations[0].Kind != model.KindPass1 {
		t.Fatalf("plan = %+v", pl)
	}
	if pl.TotalFrames != 500 {
		t.Errorf("TotalFrames = %d, want 500", pl.TotalFrames)
	}
	if calls := r.ffmpegCalls(); len(calls) != 0 {
		t.Errorf("Plan ran ffmpeg: %v", calls)
	}
}

func TestCheckOvershoot(t *testing.T) {
	tests := []struct {
		name      string
		mode      model.Mode
		bytes     int64
		wantOver  bool
		wantRatio float64
	}{
		{name: "crf never overshoots", mode: model.CRF(30), bytes: 1 << 40},
		{name: "under limit", mode: model.Limit(model.MiBToKbit(8)), bytes: 4 << 20, wantRatio: 0.5},
		{name: "within tolerance", mode: model.Limit(model.MiBToKbit(8)), bytes: 8 << 20, wantRatio: 1},
		{name: "over tolerance", mode: model.Limit(model.MiBToKbit(4)), bytes: 6 << 20, wantOver: true, wantRatio: 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			over, ratio := checkOvershoot(tt.mode, tt.bytes)
			if over != tt.wantOver || ratio != tt.wantRatio {
				t.Errorf("checkOvershoot = %v, %v; want %v, %v", over, ratio, tt.wantOver, tt.wantRatio)
			}
		})
	}
}
