package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/swupdate/internal/config"
	"github.com/blackwell-systems/swupdate/internal/router"
)

func TestPlanOnce_NeverExecutes(t *testing.T) {
	env := setupApp(t, "pacman", "paru", "rustup", "cargo")

	var out, errOut bytes.Buffer
	if err := planOnce(context.Background(), &out, &errOut); err != nil {
		t.Fatalf("planOnce() error = %v", err)
	}
	if got := env.exec.executed(); len(got) != 0 {
		t.Errorf("plan executed %v", got)
	}

	s := out.String()
	for _, want := range []string{
		"/usr/bin/sudo /usr/bin/pacman -Syu",
		"/usr/bin/paru -Sua",
		"Rustup",
		"Cargo",
		"3 planned",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("plan missing %q\n%s", want, s)
		}
	}
}

func TestPlanOnce_JSON(t *testing.T) {
	setupApp(t, "pacman")
	planOutput = formatJSON

	var out, errOut bytes.Buffer
	if err := planOnce(context.Background(), &out, &errOut); err != nil {
		t.Fatalf("planOnce() error = %v", err)
	}

	var view runView
	if err := json.Unmarshal(out.Bytes(), &view); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out.String())
	}
	if !view.DryRun || view.RunID != "" {
		t.Errorf("plan view should be a dry run without ID: %+v", view)
	}
	official := view.Reports[0]
	if official.Outcome != "planned" || len(official.Commands) != 1 || !official.Commands[0].Elevated {
		t.Errorf("arch official = %+v", official)
	}
}

func TestRunPlan_WatchReplansOnConfigChange(t *testing.T) {
	setupApp(t, "pacman", "paru", "yay")
	planWatch = true

	path, err := configPath()
	if err != nil {
		t.Fatal(err)
	}
	if err := config.WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	planCmd.SetContext(ctx)

	out, errOut := &syncBuffer{}, &syncBuffer{}
	planCmd.SetOut(out)
	planCmd.SetErr(errOut)
	t.Cleanup(func() {
		planCmd.SetOut(nil)
		planCmd.SetErr(nil)
		planCmd.SetContext(context.Background())
	})

	done := make(chan error, 1)
	go func() { done <- runPlan(planCmd, nil) }()

	edited := "os:\n  linux:\n    arch:\n      preferred_aur: yay\n"
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "config changed") {
		if time.Now().After(deadline) {
			t.Fatalf("no re-plan after config edit\n%s", out.String())
		}
		if err := os.WriteFile(path, []byte(edited), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(400 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runPlan() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runPlan did not stop after cancel")
	}

	s := out.String()
	first, rest, _ := strings.Cut(s, "config changed")
	if !strings.Contains(first, "Paru") {
		t.Errorf("initial plan should use paru\n%s", first)
	}
	if !strings.Contains(rest, "Yay") {
		t.Errorf("re-plan should use the edited preference\n%s", rest)
	}
}

func TestRunPlan_WatchStartsWithBrokenConfig(t *testing.T) {
	setupApp(t, "pacman")
	planWatch = true

	path, err := configPath()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("execution:\n  elevation: su\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	planCmd.SetContext(ctx)

	out, errOut := &syncBuffer{}, &syncBuffer{}
	planCmd.SetOut(out)
	planCmd.SetErr(errOut)
	t.Cleanup(func() {
		planCmd.SetOut(nil)
		planCmd.SetErr(nil)
		planCmd.SetContext(context.Background())
	})

	done := make(chan error, 1)
	go func() { done <- runPlan(planCmd, nil) }()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "Watching") {
		if time.Now().After(deadline) {
			t.Fatalf("watch never started\nstderr:\n%s", errOut.String())
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(errOut.String(), "invalid configuration") {
		t.Errorf("startup error should be reported\n%s", errOut.String())
	}

	for !strings.Contains(out.String(), "Pacman") {
		select {
		case err := <-done:
			t.Fatalf("watch stopped on a broken config: %v\n%s", err, errOut.String())
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("no plan after fixing the config\nstdout:\n%s\nstderr:\n%s", out.String(), errOut.String())
		}
		if err := os.WriteFile(path, []byte("execution:\n  elevation: sudo\n"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(400 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runPlan() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runPlan did not stop after cancel")
	}
}

func TestRunPlan_WatchMissingConfigDir(t *testing.T) {
	setupApp(t, "pacman")
	planWatch = true
	cfgFile = filepath.Join(t.TempDir(), "absent", "config.yaml")

	_, _, err := runCommand(t, planCmd, runPlan)
	if err == nil {
		t.Error("watching a config in a missing directory should fail")
	}
}

func TestFilterRequests(t *testing.T) {
	reqs := []router.Request{
		{Label: "arch official", Ecosystem: "manjaro"},
		{Label: "arch aur", Ecosystem: "aur"},
		{Label: "rust", Ecosystem: "rust"},
	}

	tests := []struct {
		name     string
		families []string
		want     []string
		wantErr  bool
	}{
		{"no filter keeps all", nil, []string{"arch official", "arch aur", "rust"}, false},
		{"by label", []string{"rust"}, []string{"rust"}, false},
		{"label is case insensitive", []string{"Arch AUR"}, []string{"arch aur"}, false},
		{"by ecosystem", []string{"manjaro"}, []string{"arch official"}, false},
		{"by resolved family", []string{"arch"}, []string{"arch official"}, false},
		{"keeps request order", []string{"rust", "aur"}, []string{"arch aur", "rust"}, false},
		{"unknown name", []string{"rust", "pip"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := filterRequests(reqs, tt.families)
			if (err != nil) != tt.wantErr {
				t.Fatalf("filterRequests() error = %v, wantErr %v", err, tt.wantErr)
			}
			var labels []string
			for _, r := range got {
				labels = append(labels, r.Label)
			}
			if strings.Join(labels, ",") != strings.Join(tt.want, ",") {
				t.Errorf("filterRequests() = %v, want %v", labels, tt.want)
			}
		})
	}
}
