// Package probe resolves candidate update programs against the executable
// search path.
package probe

import (
	"os/exec"

	"github.com/blackwell-systems/swupdate/internal/program"
)

// LookPathFunc resolves an executable name to a path.
type LookPathFunc func(file string) (string, error)

// Entry is a descriptor that resolved on the search path.
type Entry struct {
	Descriptor program.Descriptor
	Path       string
}

// Availability is the ordered set of resolved descriptors. Order follows the
// descriptor table's declaration order.
type Availability struct {
	entries []Entry
}

// NewAvailability builds an Availability from entries in priority order.
func NewAvailability(entries ...Entry) Availability {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return Availability{entries: out}
}

// Len returns the number of resolved descriptors.
func (a Availability) Len() int {
	return len(a.entries)
}

// Entries returns a copy of the resolved entries in priority order.
func (a Availability) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// First returns the highest-priority resolved entry.
func (a Availability) First() (Entry, bool) {
	if len(a.entries) == 0 {
		return Entry{}, false
	}
	return a.entries[0], true
}

// Lookup returns the entry for an exact descriptor identity.
func (a Availability) Lookup(key program.Key) (Entry, bool) {
	for _, e := range a.entries {
		if e.Descriptor.Key() == key {
			return e, true
		}
	}
	return Entry{}, false
}

// Candidate is the lookup outcome for a single descriptor.
type Candidate struct {
	Descriptor program.Descriptor
	Path       string
	Err        error
}

// Available reports whether the descriptor resolved.
func (c Candidate) Available() bool {
	return c.Err == nil && c.Path != ""
}

// Prober resolves descriptors. It performs no caching.
type Prober struct {
	lookPath LookPathFunc
}

// New creates a Prober that uses exec.LookPath.
func New() *Prober {
	return &Prober{lookPath: exec.LookPath}
}

// NewWithLookPath creates a Prober with a custom resolver (useful for testing).
func NewWithLookPath(fn LookPathFunc) *Prober {
	if fn == nil {
		fn = exec.LookPath
	}
	return &Prober{lookPath: fn}
}

// Inspect resolves every descriptor and reports each outcome, including
// failures. One failed lookup never stops the others.
func (p *Prober) Inspect(descriptors []program.Descriptor) []Candidate {
	out := make([]Candidate, 0, len(descriptors))
	for _, d := range descriptors {
		path, err := p.lookPath(d.Executable)
		if err == nil && path == "" {
			err = exec.ErrNotFound
		}
		out = append(out, Candidate{Descriptor: d, Path: path, Err: err})
	}
	return out
}

// Probe returns the descriptors that resolved, in declaration order.
func (p *Prober) Probe(descriptors []program.Descriptor) Availability {
	var entries []Entry
	for _, c := range p.Inspect(descriptors) {
		if !c.Available() {
			continue
		}
		entries = append(entries, Entry{Descriptor: c.Descriptor, Path: c.Path})
	}
	return Availability{entries: entries}
}
