package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunConfigInit(t *testing.T) {
	env := setupApp(t)

	out, _, err := runCommand(t, configInitCmd, runConfigInit)
	if err != nil {
		t.Fatalf("runConfigInit() error = %v", err)
	}

	path := filepath.Join(env.home, ".config", "swupdate", "config.yaml")
	if !strings.Contains(out, "✓ Wrote "+path) {
		t.Errorf("unexpected output: %s", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	_, _, err = runCommand(t, configInitCmd, runConfigInit)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second init should refuse to overwrite, got %v", err)
	}
}

func TestConfigPathCommand(t *testing.T) {
	setupApp(t)
	cfgFile = "/etc/swupdate.yaml"

	out, _, err := runCommand(t, configPathCmd, configPathCmd.RunE)
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if strings.TrimSpace(out) != "/etc/swupdate.yaml" {
		t.Errorf("config path = %q", out)
	}
}

func TestRunConfigShow(t *testing.T) {
	setupApp(t)

	dir := t.TempDir()
	cfgFile = filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(cfgFile, []byte("execution:\n  parallel: true\n  jobs: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SWUPDATE_LOG_LEVEL", "debug")

	out, _, err := runCommand(t, configShowCmd, runConfigShow)
	if err != nil {
		t.Fatalf("runConfigShow() error = %v", err)
	}
	for _, want := range []string{"parallel: true", "jobs: 2", "level: debug", "preferred_official: pacman"} {
		if !strings.Contains(out, want) {
			t.Errorf("effective config missing %q\n%s", want, out)
		}
	}
}

func TestRunConfigShow_Invalid(t *testing.T) {
	setupApp(t)
	t.Setenv("SWUPDATE_EXECUTION_OUTPUT", "tee")

	if _, _, err := runCommand(t, configShowCmd, runConfigShow); err == nil {
		t.Error("expected an invalid output mode to be rejected")
	}
}
