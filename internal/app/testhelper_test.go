package app

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/swupdate/internal/osinfo"
	"github.com/blackwell-systems/swupdate/internal/probe"
	"github.com/blackwell-systems/swupdate/internal/router"
	"github.com/blackwell-systems/swupdate/internal/runner"
)

// fakeExecutor records what would have been spawned and returns a
// configured exit code per executable.
type fakeExecutor struct {
	mu    sync.Mutex
	exits map[string]int
	ran   []string
}

func (f *fakeExecutor) Execute(ctx context.Context, entry probe.Entry) (runner.Result, error) {
	d := entry.Descriptor

	f.mu.Lock()
	f.ran = append(f.ran, d.Executable)
	code := f.exits[d.Executable]
	f.mu.Unlock()

	res := runner.Result{
		Descriptor: d,
		Path:       entry.Path,
		Argv:       append([]string{entry.Path}, d.UpdateArgs...),
		ExitCode:   code,
		Status:     runner.StatusSucceeded,
		Stdout:     []byte(d.Executable + " output\n"),
	}
	if code != 0 {
		res.Status = runner.StatusFailed
	}
	return res, nil
}

func (f *fakeExecutor) Command(entry probe.Entry) ([]string, bool, error) {
	argv := append([]string{entry.Path}, entry.Descriptor.UpdateArgs...)
	if entry.Descriptor.RequiresElevation {
		return append([]string{"/usr/bin/sudo"}, argv...), true, nil
	}
	return argv, false, nil
}

func (f *fakeExecutor) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ran))
	copy(out, f.ran)
	return out
}

// appEnv is an isolated home directory with fake system access.
type appEnv struct {
	home      string
	exec      *fakeExecutor
	installed map[string]bool
	info      osinfo.Info
}

func (e *appEnv) lookPath(file string) (string, error) {
	if e.installed[file] {
		return "/usr/bin/" + file, nil
	}
	return "", exec.ErrNotFound
}

// setupApp points HOME at a temp dir, resets every flag variable and
// replaces system access with fakes. installed lists executables that
// resolve on the fake PATH. The detected system is Arch Linux.
func setupApp(t *testing.T, installed ...string) *appEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")

	env := &appEnv{
		home:      home,
		exec:      &fakeExecutor{exits: map[string]int{}},
		installed: map[string]bool{},
		info:      osinfo.Info{OS: "linux", Platform: "arch", Family: "arch", Hostname: "testbox"},
	}
	for _, name := range installed {
		env.installed[name] = true
	}

	origDetect, origProber, origExecutor := detectOS, newProber, newExecutor
	origInspector, origLauncher := newInspector, resolveLauncher
	t.Cleanup(func() {
		detectOS, newProber, newExecutor = origDetect, origProber, origExecutor
		newInspector, resolveLauncher = origInspector, origLauncher
		resetFlags()
	})

	detectOS = func() (osinfo.Info, error) { return env.info, nil }
	newProber = func() router.Prober { return probe.NewWithLookPath(env.lookPath) }
	newExecutor = func(runner.Options) router.Executor { return env.exec }
	newInspector = func() inspector { return probe.NewWithLookPath(env.lookPath) }
	resolveLauncher = func(runner.Options) (string, error) { return "/usr/bin/sudo", nil }

	resetFlags()
	return env
}

func resetFlags() {
	cfgFile, dbPath, logLevel, logFormat = "", "", "", ""

	updateFamilies = nil
	updateDryRun = false
	updateParallel = false
	updateJobs = 0
	updateTimeout = 0
	updateCapture = false
	updateNoHistory = false
	updateOutput = formatTable

	planFamilies = nil
	planWatch = false
	planOutput = formatTable

	historyLimit = 20
	historyOlderThan = "90d"
	listInstalled = false
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// runCommand calls fn with cmd's output captured and returns stdout and
// stderr.
func runCommand(t *testing.T, cmd *cobra.Command, fn func(*cobra.Command, []string) error, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &syncBuffer{}, &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})

	err := fn(cmd, args)
	return out.String(), errOut.String(), err
}
