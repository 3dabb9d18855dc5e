package probe

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"github.com/blackwell-systems/swupdate/internal/program"
)

func fakeLookPath(installed map[string]string) LookPathFunc {
	return func(file string) (string, error) {
		if p, ok := installed[file]; ok {
			return p, nil
		}
		return "", exec.ErrNotFound
	}
}

func aurDescriptors(t *testing.T) []program.Descriptor {
	t.Helper()
	table, ok := program.Lookup(program.AUR)
	if !ok {
		t.Fatal("expected AUR table")
	}
	return table.Descriptors
}

func TestProbeKeepsDeclarationOrder(t *testing.T) {
	p := NewWithLookPath(fakeLookPath(map[string]string{
		"paru":   "/usr/bin/paru",
		"yay":    "/usr/bin/yay",
		"pikaur": "/usr/bin/pikaur",
	}))

	avail := p.Probe(aurDescriptors(t))
	if avail.Len() != 3 {
		t.Fatalf("expected 3 available, got %d", avail.Len())
	}

	var got []program.ID
	for _, e := range avail.Entries() {
		got = append(got, e.Descriptor.ID)
	}
	want := []program.ID{"yay", "pikaur", "paru"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestProbeSkipsFailuresWithoutAborting(t *testing.T) {
	calls := 0
	p := NewWithLookPath(func(file string) (string, error) {
		calls++
		if file == "yay" {
			return "", errors.New("permission denied")
		}
		if file == "pamac" {
			return "/usr/bin/pamac", nil
		}
		return "", exec.ErrNotFound
	})

	descs := aurDescriptors(t)
	avail := p.Probe(descs)
	if calls != len(descs) {
		t.Errorf("expected %d lookups, got %d", len(descs), calls)
	}
	first, ok := avail.First()
	if !ok || first.Descriptor.ID != "pamac" {
		t.Errorf("expected pamac to be the only entry, got %+v", avail.Entries())
	}
}

func TestProbeEmpty(t *testing.T) {
	p := NewWithLookPath(fakeLookPath(nil))
	avail := p.Probe(aurDescriptors(t))
	if avail.Len() != 0 {
		t.Errorf("expected empty availability, got %d", avail.Len())
	}
	if _, ok := avail.First(); ok {
		t.Error("First() should report false on empty availability")
	}
}

func TestProbeIdempotent(t *testing.T) {
	p := NewWithLookPath(fakeLookPath(map[string]string{
		"paru":  "/usr/bin/paru",
		"pamac": "/usr/bin/pamac",
	}))

	first := p.Probe(aurDescriptors(t))
	second := p.Probe(aurDescriptors(t))
	if !reflect.DeepEqual(first.Entries(), second.Entries()) {
		t.Errorf("probe not idempotent:\n%v\n%v", first.Entries(), second.Entries())
	}
}

func TestProbeNoCaching(t *testing.T) {
	installed := map[string]string{}
	p := NewWithLookPath(fakeLookPath(installed))

	if p.Probe(aurDescriptors(t)).Len() != 0 {
		t.Fatal("expected nothing available yet")
	}
	installed["paru"] = "/usr/bin/paru"
	if p.Probe(aurDescriptors(t)).Len() != 1 {
		t.Error("expected a fresh probe to see the newly installed program")
	}
}

func TestProbeSameExecutableDistinctDescriptors(t *testing.T) {
	table, _ := program.Lookup(program.Deb)
	p := NewWithLookPath(fakeLookPath(map[string]string{"apt": "/usr/bin/apt"}))

	avail := p.Probe(table.Descriptors)
	if avail.Len() != 2 {
		t.Fatalf("expected apt and apt-full to both resolve, got %d", avail.Len())
	}
	if _, ok := avail.Lookup(program.Key{Family: program.Deb, ID: "apt-full"}); !ok {
		t.Error("expected apt-full to be present")
	}
	if _, ok := avail.Lookup(program.Key{Family: program.Deb, ID: "aptitude"}); ok {
		t.Error("aptitude should not be present")
	}
}

func TestInspectReportsErrors(t *testing.T) {
	p := NewWithLookPath(fakeLookPath(map[string]string{"paru": "/usr/bin/paru"}))
	candidates := p.Inspect(aurDescriptors(t))

	for _, c := range candidates {
		if c.Descriptor.ID == "paru" {
			if !c.Available() {
				t.Error("paru should be available")
			}
			continue
		}
		if c.Available() || c.Err == nil {
			t.Errorf("%s should be unavailable with an error", c.Descriptor.ID)
		}
	}
}

func TestProbeRealSearchPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses shell scripts")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "paru")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("PATH", dir)

	avail := New().Probe(aurDescriptors(t))
	entry, ok := avail.First()
	if !ok {
		t.Fatal("expected paru to resolve from PATH")
	}
	if entry.Path != script {
		t.Errorf("path = %q, want %q", entry.Path, script)
	}
}
