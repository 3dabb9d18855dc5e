package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestProgress_NonTTYPrintsOneLinePerFamily(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(2)
	p.SetWriter(buf)

	p.Done("arch official", "succeeded")
	p.Done("arch aur", "skipped")
	p.Finish()

	want := "[1/2] arch official: succeeded\n[2/2] arch aur: skipped\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestProgress_DoesNotExceedTotal(t *testing.T) {
	p := NewProgress(1)
	p.SetWriter(&bytes.Buffer{})

	p.Done("a", "succeeded")
	p.Done("b", "succeeded")

	if got := p.Current(); got != 1 {
		t.Errorf("Current() = %d, want 1", got)
	}
}

func TestProgress_Concurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(50)
	p.SetWriter(buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Done("family", "succeeded")
		}()
	}
	wg.Wait()

	if got := p.Current(); got != 50 {
		t.Errorf("Current() = %d, want 50", got)
	}
	if n := strings.Count(buf.String(), "\n"); n != 50 {
		t.Errorf("expected 50 lines, got %d", n)
	}
	if !strings.Contains(buf.String(), "[50/50]") {
		t.Error("missing final count")
	}
}

func TestProgress_Bar(t *testing.T) {
	p := NewProgress(4)
	p.current = 2

	bar := p.bar()
	if len(bar) != p.width+2 {
		t.Errorf("bar width = %d, want %d", len(bar), p.width+2)
	}
	if !strings.Contains(bar, ">") {
		t.Errorf("half-full bar should contain an arrow: %q", bar)
	}
}

func TestWriterIsTTY_Buffer(t *testing.T) {
	if writerIsTTY(&bytes.Buffer{}) {
		t.Error("bytes.Buffer should not be a TTY")
	}
}
