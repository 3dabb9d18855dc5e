package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/blackwell-systems/swupdate/internal/program"
	"github.com/blackwell-systems/swupdate/internal/router"
	"github.com/blackwell-systems/swupdate/internal/runner"
)

func sampleReports() []router.Report {
	return []router.Report{
		{
			Label:    "arch official",
			Family:   program.Arch,
			Outcome:  router.OutcomeSucceeded,
			Results:  []runner.Result{{Status: runner.StatusSucceeded}},
			Duration: 2 * time.Second,
		},
		{
			Label:   "arch aur",
			Family:  program.AUR,
			Outcome: router.OutcomeFailed,
			Results: []runner.Result{{Status: runner.StatusFailed, ExitCode: 1}},
		},
	}
}

// gauge returns the value of the gauge named name whose labels are exactly
// labels.
func gauge(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matches(metric, labels) {
				return metric.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("no %s metric with labels %v", name, labels)
	return 0
}

func matches(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range metric.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestObserve(t *testing.T) {
	m := New()
	start := time.Unix(1_700_000_000, 0)
	m.Observe(sampleReports(), start, start.Add(5*time.Second))

	arch := map[string]string{"label": "arch official", "family": "arch"}
	aur := map[string]string{"label": "arch aur", "family": "aur"}

	if got := gauge(t, m, "swupdate_family_success", arch); got != 1 {
		t.Errorf("arch success = %v", got)
	}
	if got := gauge(t, m, "swupdate_family_success", aur); got != 0 {
		t.Errorf("aur success = %v", got)
	}
	if got := gauge(t, m, "swupdate_family_exit_code", aur); got != 1 {
		t.Errorf("aur exit code = %v", got)
	}
	if got := gauge(t, m, "swupdate_last_run_failed_families", nil); got != 1 {
		t.Errorf("failed families = %v", got)
	}
	if got := gauge(t, m, "swupdate_last_run_duration_seconds", nil); got != 5 {
		t.Errorf("last run duration = %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	now := time.Now()
	m.Observe(sampleReports(), now.Add(-time.Second), now)

	path := filepath.Join(t.TempDir(), "textfile", "swupdate.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"swupdate_family_success",
		`label="arch official"`,
		"swupdate_last_run_timestamp_seconds",
		`outcome="failed"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %s", want)
		}
	}
}
