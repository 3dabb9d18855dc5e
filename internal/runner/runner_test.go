package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/swupdate/internal/probe"
	"github.com/blackwell-systems/swupdate/internal/program"
)

// writeScript creates an executable shell script in dir and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("WriteFile %s: %v", name, err)
	}
	return path
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses shell scripts")
	}
}

type testEnv struct {
	dir    string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	skipOnWindows(t)
	return &testEnv{
		dir:    t.TempDir(),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
}

// runner builds a Runner whose only launcher is a fake sudo that records
// the wrap on stderr and execs its arguments.
func (e *testEnv) runner(t *testing.T, opts Options) *Runner {
	t.Helper()
	sudo := writeScript(t, e.dir, "sudo", `echo "sudo-wrapped" >&2
exec "$@"`)

	opts.Stdin = strings.NewReader("")
	opts.Stdout = e.stdout
	opts.Stderr = e.stderr
	if opts.LookPath == nil {
		opts.LookPath = func(file string) (string, error) {
			if file == "sudo" {
				return sudo, nil
			}
			return "", exec.ErrNotFound
		}
	}
	if opts.Elevated == nil {
		opts.Elevated = func() bool { return false }
	}
	return New(opts)
}

func entryFor(path string, elevate bool, args ...string) probe.Entry {
	name := filepath.Base(path)
	return probe.Entry{
		Descriptor: program.Descriptor{
			Family:            "test",
			ID:                program.ID(name),
			DisplayName:       name,
			Executable:        name,
			UpdateArgs:        args,
			RequiresElevation: elevate,
		},
		Path: path,
	}
}

func TestExecuteSuccessCapture(t *testing.T) {
	env := newTestEnv(t)
	script := writeScript(t, env.dir, "paru", `echo "updated $1"`)

	r := env.runner(t, Options{Output: OutputCapture})
	res, err := r.Execute(context.Background(), entryFor(script, false, "-Syu"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !res.Success() || res.Status != StatusSucceeded {
		t.Errorf("expected success, got %s", res.Status)
	}
	if res.Elevated {
		t.Error("paru must not be elevated")
	}
	if got := string(res.Stdout); got != "updated -Syu\n" {
		t.Errorf("captured stdout = %q", got)
	}
	if env.stdout.String() != "updated -Syu\n" {
		t.Errorf("captured output should be replayed, got %q", env.stdout.String())
	}
	if res.Argv[0] != script {
		t.Errorf("argv[0] = %q, want resolved path %q", res.Argv[0], script)
	}
}

func TestExecuteStreamDoesNotCapture(t *testing.T) {
	env := newTestEnv(t)
	script := writeScript(t, env.dir, "flatpak", `echo "streamed"`)

	r := env.runner(t, Options{Output: OutputStream})
	res, err := r.Execute(context.Background(), entryFor(script, false, "update"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Stdout != nil {
		t.Errorf("stream mode should not keep stdout, got %q", res.Stdout)
	}
	if env.stdout.String() != "streamed\n" {
		t.Errorf("stdout = %q", env.stdout.String())
	}
}

func TestExecuteNonZeroExitIsNotAnError(t *testing.T) {
	env := newTestEnv(t)
	script := writeScript(t, env.dir, "dnf", `exit 3`)

	r := env.runner(t, Options{})
	res, err := r.Execute(context.Background(), entryFor(script, false, "upgrade"))
	if err != nil {
		t.Fatalf("non-zero exit must not be an engine error: %v", err)
	}
	if res.Status != StatusFailed || res.ExitCode != 3 {
		t.Errorf("got status %s exit %d, want failed exit 3", res.Status, res.ExitCode)
	}
	if res.Describe() != "exit 3" {
		t.Errorf("Describe() = %q", res.Describe())
	}
}

func TestExecuteElevatedWrapsAndKeepsExitCode(t *testing.T) {
	env := newTestEnv(t)
	script := writeScript(t, env.dir, "pacman", `exit 7`)

	r := env.runner(t, Options{Elevation: ElevationAuto})
	res, err := r.Execute(context.Background(), entryFor(script, true, "-Syu"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !res.Elevated {
		t.Error("expected elevation wrapper")
	}
	if filepath.Base(res.Argv[0]) != "sudo" || res.Argv[1] != script || res.Argv[2] != "-Syu" {
		t.Errorf("argv = %v", res.Argv)
	}
	if res.ExitCode != 7 {
		t.Errorf("exit code = %d, want the child's 7", res.ExitCode)
	}
	if !strings.Contains(env.stderr.String(), "sudo-wrapped") {
		t.Error("expected the launcher to run")
	}
}

func TestExecuteAlreadyElevatedSkipsLauncher(t *testing.T) {
	env := newTestEnv(t)
	script := writeScript(t, env.dir, "pacman", `exit 0`)

	r := env.runner(t, Options{Elevated: func() bool { return true }})
	res, err := r.Execute(context.Background(), entryFor(script, true, "-Syu"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Elevated || res.Argv[0] != script {
		t.Errorf("root should run directly, argv = %v", res.Argv)
	}
}

func TestExecuteElevationNone(t *testing.T) {
	env := newTestEnv(t)
	script := writeScript(t, env.dir, "apk", `exit 0`)

	r := env.runner(t, Options{Elevation: ElevationNone})
	res, err := r.Execute(context.Background(), entryFor(script, true, "upgrade"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Elevated {
		t.Error("elevation=none must never wrap")
	}
}

func TestExecuteMissingLauncherIsSpawnFailure(t *testing.T) {
	env := newTestEnv(t)
	script := writeScript(t, env.dir, "pacman", `exit 0`)

	r := env.runner(t, Options{
		LookPath: func(string) (string, error) { return "", exec.ErrNotFound },
	})
	_, err := r.Execute(context.Background(), entryFor(script, true, "-Syu"))
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("expected ErrSpawn, got %v", err)
	}
	if !errors.Is(err, ErrNoLauncher) {
		t.Errorf("expected ErrNoLauncher in chain, got %v", err)
	}
}

func TestExecuteExplicitLauncher(t *testing.T) {
	env := newTestEnv(t)
	script := writeScript(t, env.dir, "zypper", `exit 0`)
	doas := writeScript(t, env.dir, "doas", `exec "$@"`)

	r := env.runner(t, Options{
		Elevation: "doas",
		LookPath: func(file string) (string, error) {
			if file == "doas" {
				return doas, nil
			}
			return "", exec.ErrNotFound
		},
	})
	res, err := r.Execute(context.Background(), entryFor(script, true, "update"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Argv[0] != doas {
		t.Errorf("argv[0] = %q, want %q", res.Argv[0], doas)
	}
}

func TestExecuteVanishedPath(t *testing.T) {
	env := newTestEnv(t)
	script := writeScript(t, env.dir, "yay", `exit 0`)
	if err := os.Remove(script); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	r := env.runner(t, Options{})
	_, err := r.Execute(context.Background(), entryFor(script, false, "-Syu"))
	var se *SpawnError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpawnError, got %v", err)
	}
	if se.Path != script {
		t.Errorf("SpawnError.Path = %q", se.Path)
	}
}

func TestExecuteNotExecutable(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "brew")
	if err := os.WriteFile(path, []byte("not a program"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := env.runner(t, Options{})
	_, err := r.Execute(context.Background(), entryFor(path, false, "upgrade"))
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("expected ErrSpawn, got %v", err)
	}
}

func TestExecuteTimeout(t *testing.T) {
	env := newTestEnv(t)
	script := writeScript(t, env.dir, "emerge", `exec sleep 5`)

	r := env.runner(t, Options{Timeout: 100 * time.Millisecond})
	start := time.Now()
	res, err := r.Execute(context.Background(), entryFor(script, false, "@world"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusTimedOut {
		t.Errorf("status = %s, want timed-out", res.Status)
	}
	if time.Since(start) > 4*time.Second {
		t.Error("timeout did not stop the program promptly")
	}
}

func TestExecuteSignaled(t *testing.T) {
	env := newTestEnv(t)
	script := writeScript(t, env.dir, "snap", `kill -TERM $$`)

	r := env.runner(t, Options{})
	res, err := r.Execute(context.Background(), entryFor(script, false, "refresh"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusSignaled {
		t.Fatalf("status = %s, want signaled", res.Status)
	}
	if res.Signal == "" {
		t.Error("expected signal name")
	}
}

func TestParseOutputMode(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputMode
		wantErr bool
	}{
		{"", OutputStream, false},
		{"stream", OutputStream, false},
		{"Capture", OutputCapture, false},
		{"tee", OutputStream, true},
	}
	for _, tt := range tests {
		got, err := ParseOutputMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputMode(%q) = %s, %v", tt.in, got, err)
		}
	}
}

func TestValidElevation(t *testing.T) {
	for _, mode := range []string{"", "auto", "none", "sudo", "doas", "pkexec", "run0"} {
		if !ValidElevation(mode) {
			t.Errorf("expected %q to be valid", mode)
		}
	}
	if ValidElevation("su") {
		t.Error("su should not be accepted")
	}
}

func TestLaunchersCoverExplicitModes(t *testing.T) {
	skipOnWindows(t)
	for _, name := range Launchers() {
		if !ValidElevation(name) {
			t.Errorf("auto launcher %q is not a valid explicit mode", name)
		}
	}
	if got := strings.Join(Launchers(), ","); got != "sudo,doas,pkexec,run0" {
		t.Errorf("Launchers() = %s", got)
	}
}
