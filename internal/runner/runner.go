// Package runner executes a selected update program as a child process,
// wrapping it in a privilege elevation launcher when required.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/swupdate/internal/probe"
	"github.com/blackwell-systems/swupdate/internal/program"
)

// killGrace bounds how long Wait keeps draining output after the process
// was killed on timeout.
const killGrace = 5 * time.Second

// OutputMode selects how the child's standard output is handled.
type OutputMode string

const (
	// OutputStream connects the child's stdout to the runner's writer live.
	OutputStream OutputMode = "stream"
	// OutputCapture buffers stdout, replays it after exit and keeps it in
	// the Result.
	OutputCapture OutputMode = "capture"
)

// ParseOutputMode converts a config value. Empty means stream.
func ParseOutputMode(s string) (OutputMode, error) {
	switch OutputMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputStream:
		return OutputStream, nil
	case OutputCapture:
		return OutputCapture, nil
	default:
		return OutputStream, fmt.Errorf("unknown output mode %q (want stream or capture)", s)
	}
}

// Status classifies how a child process ended.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSignaled  Status = "signaled"
	StatusTimedOut  Status = "timed-out"
)

// Result is the outcome of one program invocation.
type Result struct {
	Descriptor program.Descriptor
	Path       string
	Argv       []string
	Elevated   bool
	Status     Status
	ExitCode   int
	Signal     string
	Stdout     []byte // capture mode only
	StartedAt  time.Time
	Duration   time.Duration
}

// Success reports whether the program exited with status 0.
func (r Result) Success() bool {
	return r.Status == StatusSucceeded
}

// Describe returns a one-line human summary of the exit status.
func (r Result) Describe() string {
	switch r.Status {
	case StatusSucceeded:
		return "exit 0"
	case StatusSignaled:
		return fmt.Sprintf("terminated by signal %s", r.Signal)
	case StatusTimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("exit %d", r.ExitCode)
	}
}

// Options configures a Runner.
type Options struct {
	// Elevation is "auto", "none", or a launcher name such as "sudo".
	Elevation string
	Output    OutputMode
	// Timeout bounds each invocation; zero means wait indefinitely.
	Timeout time.Duration

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Logger *zerolog.Logger

	// LookPath and Elevated override launcher resolution (useful for testing).
	LookPath probe.LookPathFunc
	Elevated func() bool
}

// Runner starts update programs and waits for them to finish.
type Runner struct {
	elevation string
	output    OutputMode
	timeout   time.Duration
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	log       zerolog.Logger
	lookPath  probe.LookPathFunc
	elevated  func() bool
}

// New creates a Runner. Unset streams default to the process's own.
func New(opts Options) *Runner {
	r := &Runner{
		elevation: opts.Elevation,
		output:    opts.Output,
		timeout:   opts.Timeout,
		stdin:     opts.Stdin,
		stdout:    opts.Stdout,
		stderr:    opts.Stderr,
		lookPath:  opts.LookPath,
		elevated:  opts.Elevated,
		log:       zerolog.Nop(),
	}
	if r.output == "" {
		r.output = OutputStream
	}
	if r.stdin == nil {
		r.stdin = os.Stdin
	}
	if r.stdout == nil {
		r.stdout = os.Stdout
	}
	if r.stderr == nil {
		r.stderr = os.Stderr
	}
	if r.lookPath == nil {
		r.lookPath = exec.LookPath
	}
	if r.elevated == nil {
		r.elevated = processElevated
	}
	if opts.Logger != nil {
		r.log = opts.Logger.With().Str("component", "runner").Logger()
	}
	return r
}

// Command returns the argv that Execute would spawn for entry and whether
// it is wrapped in an elevation launcher.
func (r *Runner) Command(entry probe.Entry) ([]string, bool, error) {
	return r.command(entry)
}

// Execute runs the program and blocks until it exits. A non-zero exit is
// reported in the Result; the error is reserved for programs that could not
// be started, and is always a *SpawnError.
func (r *Runner) Execute(ctx context.Context, entry probe.Entry) (Result, error) {
	d := entry.Descriptor

	argv, elevated, err := r.command(entry)
	if err != nil {
		return Result{}, &SpawnError{Program: d.DisplayName, Path: entry.Path, Err: err}
	}

	// The program may have been removed between probe and spawn.
	if _, err := os.Stat(entry.Path); err != nil {
		return Result{}, &SpawnError{Program: d.DisplayName, Path: entry.Path, Err: err}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = r.stdin
	cmd.Stderr = r.stderr
	// Launchers relay SIGTERM to the program they forked but cannot relay
	// SIGKILL. WaitDelay kills whatever is left after killGrace.
	cmd.Cancel = func() error { return terminate(cmd.Process) }
	cmd.WaitDelay = killGrace

	var captured bytes.Buffer
	if r.output == OutputCapture {
		cmd.Stdout = &captured
	} else {
		cmd.Stdout = r.stdout
	}

	result := Result{
		Descriptor: d,
		Path:       entry.Path,
		Argv:       argv,
		Elevated:   elevated,
		StartedAt:  time.Now(),
	}

	r.log.Debug().
		Str("program", d.DisplayName).
		Strs("argv", argv).
		Bool("elevated", elevated).
		Msg("starting update program")

	if err := cmd.Start(); err != nil {
		return Result{}, &SpawnError{Program: d.DisplayName, Path: entry.Path, Err: err}
	}

	waitErr := cmd.Wait()
	result.Duration = time.Since(result.StartedAt)

	if r.output == OutputCapture {
		result.Stdout = captured.Bytes()
		if _, err := r.stdout.Write(result.Stdout); err != nil {
			r.log.Warn().Err(err).Msg("failed to replay captured output")
		}
	}

	classify(&result, ctx, cmd.ProcessState, waitErr)

	r.log.Debug().
		Str("program", d.DisplayName).
		Str("status", string(result.Status)).
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("update program finished")

	return result, nil
}

// classify fills in Status, ExitCode and Signal from the process state. A
// program that exited cleanly is never reported as timed out.
func classify(result *Result, ctx context.Context, state *os.ProcessState, waitErr error) {
	if waitErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Status = StatusTimedOut
		result.ExitCode = -1
		return
	}

	if state == nil {
		result.Status = StatusFailed
		result.ExitCode = -1
		return
	}

	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		result.Status = StatusSignaled
		result.ExitCode = -1
		result.Signal = ws.Signal().String()
		return
	}

	result.ExitCode = state.ExitCode()
	if result.ExitCode == 0 && waitErr == nil {
		result.Status = StatusSucceeded
		return
	}
	result.Status = StatusFailed
}
