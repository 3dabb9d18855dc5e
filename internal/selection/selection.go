// Package selection picks which available program to run for a family.
package selection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blackwell-systems/swupdate/internal/probe"
	"github.com/blackwell-systems/swupdate/internal/program"
)

// ErrNoProgramAvailable is matched by every "nothing to run" error.
var ErrNoProgramAvailable = errors.New("no program available")

// NoProgramAvailableError reports that no candidate resolved for a family.
type NoProgramAvailableError struct {
	Family  program.Family
	Purpose string
}

func (e *NoProgramAvailableError) Error() string {
	return fmt.Sprintf("no available %s found", e.Purpose)
}

func (e *NoProgramAvailableError) Is(target error) bool {
	return target == ErrNoProgramAvailable
}

// PreferredUnavailableError is returned under PolicyStrict when the
// configured program is not installed.
type PreferredUnavailableError struct {
	Family    program.Family
	Purpose   string
	Preferred program.ID
}

func (e *PreferredUnavailableError) Error() string {
	return fmt.Sprintf("preferred %s %q is not available", e.Purpose, e.Preferred)
}

func (e *PreferredUnavailableError) Is(target error) bool {
	return target == ErrNoProgramAvailable
}

// Policy decides what happens when the preferred program is missing.
type Policy int

const (
	// PolicyFallback silently selects the first available program.
	PolicyFallback Policy = iota
	// PolicyStrict fails with PreferredUnavailableError.
	PolicyStrict
)

// ParsePolicy converts a config value into a Policy. Empty means fallback.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fallback":
		return PolicyFallback, nil
	case "strict":
		return PolicyStrict, nil
	default:
		return PolicyFallback, fmt.Errorf("unknown preferred policy %q (want fallback or strict)", s)
	}
}

func (p Policy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "fallback"
}

// Kind distinguishes a single pick from a combined one.
type Kind int

const (
	Single Kind = iota
	Combined
)

func (k Kind) String() string {
	if k == Combined {
		return "combined"
	}
	return "single"
}

// Selection is the outcome of one resolution call. A Combined selection
// holds two or more entries that are run sequentially in order.
type Selection struct {
	Kind    Kind
	entries []probe.Entry
}

// Entries returns the selected programs in run order.
func (s Selection) Entries() []probe.Entry {
	out := make([]probe.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Primary returns the first selected program.
func (s Selection) Primary() probe.Entry {
	if len(s.entries) == 0 {
		return probe.Entry{}
	}
	return s.entries[0]
}

// Names returns the display names of the selected programs.
func (s Selection) Names() []string {
	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.Descriptor.DisplayName)
	}
	return names
}

// Select picks one program from available. A preferred ID that is present
// wins by exact identity; otherwise the first declared available program is
// chosen. preferred may be empty.
func Select(table program.Table, available probe.Availability, preferred program.ID, policy Policy) (Selection, error) {
	if preferred != "" {
		key := program.Key{Family: table.Family, ID: preferred}
		if entry, ok := available.Lookup(key); ok {
			return Selection{Kind: Single, entries: []probe.Entry{entry}}, nil
		}
		if policy == PolicyStrict {
			return Selection{}, &PreferredUnavailableError{
				Family:    table.Family,
				Purpose:   table.Purpose,
				Preferred: preferred,
			}
		}
	}

	entry, ok := available.First()
	if !ok {
		return Selection{}, &NoProgramAvailableError{Family: table.Family, Purpose: table.Purpose}
	}
	return Selection{Kind: Single, entries: []probe.Entry{entry}}, nil
}

// SelectCombined resolves a request for several programs of a composite
// family. If every requested program is available the result is Combined;
// if only some are, the available subset is returned; if none are, the
// result is a NoProgramAvailableError. Entries keep declaration order.
func SelectCombined(table program.Table, available probe.Availability, requested []program.ID) (Selection, error) {
	want := make(map[program.ID]bool, len(requested))
	for _, id := range requested {
		want[id] = true
	}

	var picked []probe.Entry
	for _, e := range available.Entries() {
		if want[e.Descriptor.ID] {
			picked = append(picked, e)
		}
	}

	switch len(picked) {
	case 0:
		return Selection{}, &NoProgramAvailableError{Family: table.Family, Purpose: table.Purpose}
	case 1:
		return Selection{Kind: Single, entries: picked}, nil
	default:
		return Selection{Kind: Combined, entries: picked}, nil
	}
}
