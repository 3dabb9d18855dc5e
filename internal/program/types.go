// Package program holds the static descriptor tables for every supported
// update program, grouped by family.
package program

import "fmt"

// Family identifies a group of mutually-substitutable update programs.
type Family string

// ID identifies one program within a family.
type ID string

// Key is the identity of a descriptor. Two descriptors that share an
// executable but differ in arguments have different keys.
type Key struct {
	Family Family
	ID     ID
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Family, k.ID)
}

// Descriptor describes one candidate update program.
// Descriptors are declared once at package init and never modified.
type Descriptor struct {
	Family            Family
	ID                ID
	DisplayName       string
	Executable        string
	UpdateArgs        []string
	RequiresElevation bool
}

// Key returns the descriptor's identity.
func (d Descriptor) Key() Key {
	return Key{Family: d.Family, ID: d.ID}
}

// Args returns a copy of the update argument vector.
func (d Descriptor) Args() []string {
	args := make([]string, len(d.UpdateArgs))
	copy(args, d.UpdateArgs)
	return args
}

// Table is the ordered candidate list for one family. The first declared
// descriptor has the highest implicit priority.
type Table struct {
	Family      Family
	Purpose     string // noun used in messages, e.g. "AUR helper"
	Composite   bool   // programs may be run together in one logical step
	Descriptors []Descriptor
}

// Find returns the descriptor with the given ID.
func (t Table) Find(id ID) (Descriptor, bool) {
	for _, d := range t.Descriptors {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// IDs returns the IDs of the table's descriptors in declaration order.
func (t Table) IDs() []ID {
	ids := make([]ID, 0, len(t.Descriptors))
	for _, d := range t.Descriptors {
		ids = append(ids, d.ID)
	}
	return ids
}

// Empty reports whether the table has no candidates.
func (t Table) Empty() bool {
	return len(t.Descriptors) == 0
}
