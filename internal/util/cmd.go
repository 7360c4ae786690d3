package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// CmdSpec describes a subprocess to run. Args are passed to the binary
// directly; nothing goes through a shell.
type CmdSpec struct {
	Path    string   // Binary path
	Args    []string // Arguments
	Env     []string // Optional environment variables (KEY=VALUE). If nil, inherit.
	Dir     string   // Working directory; empty = inherit.
	Verbose bool     // Mirror output to the terminal while running

	// Called with every raw block read from the pipes, in order per stream.
	// Blocks are not line aligned.
	StdoutChunk func([]byte)
	StderrChunk func([]byte)
}

// CmdResult contains captured output and exit status.
type CmdResult struct {
	Stdout []byte
	Stderr []byte
	Code   int
	Err    error
}

// ExitError describes a process that did not exit cleanly.
type ExitError struct {
	Code   int    // exit status; -1 when killed by a signal
	Signal string // signal name when killed, e.g. "SIGKILL"
}

func (e *ExitError) Error() string {
	if e.Signal != "" {
		return "killed by " + e.Signal
	}
	return fmt.Sprintf("exited with %d", e.Code)
}

// Handle controls one started process.
type Handle interface {
	// Wait blocks until the process exits and its output has been delivered.
	// It returns nil on a zero exit and *ExitError otherwise.
	Wait() error
	// Kill terminates the process forcefully.
	Kill() error
	Pid() int
}

// CmdRunner starts processes. The default implementation wraps os/exec;
// tests inject fakes.
type CmdRunner interface {
	Start(ctx context.Context, spec CmdSpec) (Handle, error)
}

type execRunner struct{}

// NewDefaultRunner returns a CmdRunner backed by os/exec.
func NewDefaultRunner() CmdRunner {
	return execRunner{}
}

func (execRunner) Start(ctx context.Context, spec CmdSpec) (Handle, error) {
	if spec.Path == "" {
		return nil, errors.New("no binary given")
	}
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	// A killed ffmpeg wrapper can leave children holding the output pipes;
	// Wait gives up on them after pipeWaitDelay.
	cmd.Stdout = newChunkWriter(spec.StdoutChunk, spec.Verbose, os.Stdout)
	cmd.Stderr = newChunkWriter(spec.StderrChunk, spec.Verbose, os.Stderr)
	cmd.WaitDelay = pipeWaitDelay

	if spec.Verbose {
		fmt.Fprintf(os.Stderr, "+ %s\n", ShellQuote(spec.Path, spec.Args))
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execHandle{cmd: cmd}, nil
}

// pipeWaitDelay bounds how long Wait keeps reading output after the process
// has exited or been killed.
var pipeWaitDelay = 2 * time.Second

// chunkWriter hands every write to fn as its own copy, optionally mirroring
// it to the terminal.
type chunkWriter struct {
	fn     func([]byte)
	mirror io.Writer
}

func newChunkWriter(fn func([]byte), verbose bool, mirror io.Writer) *chunkWriter {
	w := &chunkWriter{fn: fn}
	if verbose {
		w.mirror = mirror
	}
	return w
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if w.fn != nil {
		chunk := make([]byte, len(p))
		copy(chunk, p)
		w.fn(chunk)
	}
	if w.mirror != nil {
		_, _ = w.mirror.Write(p)
	}
	return len(p), nil
}

type execHandle struct {
	cmd  *exec.Cmd
	once sync.Once
	err  error
}

func (h *execHandle) Wait() error {
	h.once.Do(func() {
		err := h.cmd.Wait()
		if errors.Is(err, exec.ErrWaitDelay) {
			// Clean exit; only an orphaned child kept the pipes open.
			err = nil
		}
		h.err = exitError(err)
	})
	return h.err
}

func (h *execHandle) Kill() error {
	if h.cmd.Process == nil {
		return nil
	}
	err := h.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (h *execHandle) Pid() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// exitError converts an exec wait error into *ExitError, keeping other
// errors (e.g. I/O failures) as they are.
func exitError(err error) error {
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		return err
	}
	if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return &ExitError{Code: -1, Signal: signalName(ws.Signal())}
	}
	return &ExitError{Code: ee.ExitCode()}
}

var signalNames = map[syscall.Signal]string{
	syscall.SIGHUP:  "SIGHUP",
	syscall.SIGINT:  "SIGINT",
	syscall.SIGQUIT: "SIGQUIT",
	syscall.SIGABRT: "SIGABRT",
	syscall.SIGKILL: "SIGKILL",
	syscall.SIGSEGV: "SIGSEGV",
	syscall.SIGPIPE: "SIGPIPE",
	syscall.SIGTERM: "SIGTERM",
}

func signalName(sig syscall.Signal) string {
	if n, ok := signalNames[sig]; ok {
		return n
	}
	return fmt.Sprintf("signal %d", int(sig))
}

// Run starts spec with r (the default runner when nil), waits for it and
// returns the captured output. On failure the error wraps *ExitError.
func Run(ctx context.Context, r CmdRunner, spec CmdSpec) (CmdResult, error) {
	if r == nil {
		r = NewDefaultRunner()
	}
	var mu sync.Mutex
	var stdoutBuf, stderrBuf bytes.Buffer

	userOut, userErr := spec.StdoutChunk, spec.StderrChunk
	spec.StdoutChunk = func(b []byte) {
		mu.Lock()
		stdoutBuf.Write(b)
		mu.Unlock()
		if userOut != nil {
			userOut(b)
		}
	}
	spec.StderrChunk = func(b []byte) {
		mu.Lock()
		stderrBuf.Write(b)
		mu.Unlock()
		if userErr != nil {
			userErr(b)
		}
	}

	h, err := r.Start(ctx, spec)
	if err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}
	waitErr := h.Wait()

	code := 0
	if waitErr != nil {
		code = -1
		var ee *ExitError
		if errors.As(waitErr, &ee) {
			code = ee.Code
		}
	}

	mu.Lock()
	res := CmdResult{
		Stdout: stdoutBuf.Bytes(),
		Stderr: stderrBuf.Bytes(),
		Code:   code,
		Err:    waitErr,
	}
	mu.Unlock()

	if waitErr != nil {
		return res, fmt.Errorf("%s failed: %w", spec.Path, waitErr)
	}
	return res, nil
}

// ShellQuote returns a printable shell-like command string for logging.
func ShellQuote(path string, args []string) string {
	b := &strings.Builder{}
	b.WriteString(quote(path))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(quote(a))
	}
	return b.String()
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n\"'\\$`(){}[]*&;|<>?!") {
		return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
	}
	return s
}
