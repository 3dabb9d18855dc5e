package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// Progress tracks families finishing during a parallel update.
// Example: [==========>         ] 2/4 arch aur
//
// On a terminal the bar is redrawn in place. Elsewhere one line is printed
// per finished family so logs stay readable. Done is safe for concurrent use.
type Progress struct {
	total   int
	current int
	width   int
	mu      sync.Mutex
	writer  io.Writer
}

// NewProgress creates a progress tracker for total families.
func NewProgress(total int) *Progress {
	return &Progress{
		total:  total,
		width:  30,
		writer: os.Stderr,
	}
}

// SetWriter sets the output writer (useful for testing).
func (p *Progress) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = w
}

// Done marks one family as finished and redraws.
func (p *Progress) Done(label, outcome string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current < p.total {
		p.current++
	}

	if writerIsTTY(p.writer) {
		fmt.Fprintf(p.writer, "\r\033[K%s %d/%d %s", p.bar(), p.current, p.total, label)
		return
	}
	fmt.Fprintf(p.writer, "[%d/%d] %s: %s\n", p.current, p.total, label, outcome)
}

// Finish clears the bar on a terminal. It is a no-op elsewhere.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writerIsTTY(p.writer) {
		fmt.Fprint(p.writer, "\r\033[K")
	}
}

// Current returns the number of finished families.
func (p *Progress) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// bar draws the bar (must be called with lock held).
func (p *Progress) bar() string {
	filled := 0
	if p.total > 0 {
		filled = (p.current * p.width) / p.total
	}

	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < p.width; i++ {
		switch {
		case i < filled-1:
			sb.WriteString("=")
		case i == filled-1:
			sb.WriteString(">")
		default:
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
