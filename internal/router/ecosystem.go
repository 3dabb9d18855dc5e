package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/blackwell-systems/swupdate/internal/program"
)

// ErrUnsupportedEcosystem is matched by every UnsupportedEcosystemError.
var ErrUnsupportedEcosystem = errors.New("unsupported ecosystem")

// UnsupportedEcosystemError reports an identifier with no descriptor table.
type UnsupportedEcosystemError struct {
	Ecosystem string
}

func (e *UnsupportedEcosystemError) Error() string {
	return fmt.Sprintf("unsupported ecosystem %q", e.Ecosystem)
}

func (e *UnsupportedEcosystemError) Is(target error) bool {
	return target == ErrUnsupportedEcosystem
}

// ecosystems maps distribution IDs (as found in os-release ID / ID_LIKE)
// and tool identities to families. Family names map to themselves and are
// added in init.
var ecosystems = map[string]program.Family{
	// Arch and derivatives
	"arch":        program.Arch,
	"archlinux":   program.Arch,
	"manjaro":     program.Arch,
	"endeavouros": program.Arch,
	"garuda":      program.Arch,
	"artix":       program.Arch,

	// Debian and derivatives
	"debian":     program.Deb,
	"ubuntu":     program.Deb,
	"linuxmint":  program.Deb,
	"pop":        program.Deb,
	"elementary": program.Deb,
	"raspbian":   program.Deb,
	"kali":       program.Deb,
	"neon":       program.Deb,
	"zorin":      program.Deb,

	// RPM based
	"fedora":    program.RPM,
	"rhel":      program.RPM,
	"centos":    program.RPM,
	"rocky":     program.RPM,
	"almalinux": program.RPM,
	"amzn":      program.RPM,
	"ol":        program.RPM,
	"suse":      program.RPM,
	"sles":      program.RPM,

	"gentoo": program.Portage,
	"solus":  program.Eopkg,
	"alpine": program.Apk,
	"nixos":  program.Nix,

	// Tool identities
	"nix-channel": program.Nix,
	"homebrew":    program.Brew,
	"chocolatey":  program.Choco,
	"cargo":       program.Rust,
	"rustup":      program.Rust,
	"node":        program.JS,
	"npm":         program.JS,
}

func init() {
	for _, f := range program.Families() {
		ecosystems[string(f)] = f
	}
}

// ResolveEcosystem maps an ecosystem identifier to its family. Matching is
// case-insensitive; any "opensuse*" identifier maps to the RPM family.
func ResolveEcosystem(id string) (program.Family, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if f, ok := ecosystems[key]; ok {
		return f, nil
	}
	if strings.HasPrefix(key, "opensuse") {
		return program.RPM, nil
	}
	return "", &UnsupportedEcosystemError{Ecosystem: id}
}

// Supported reports whether ResolveEcosystem accepts id.
func Supported(id string) bool {
	_, err := ResolveEcosystem(id)
	return err == nil
}

// Ecosystems returns every known identifier, sorted.
func Ecosystems() []string {
	ids := make([]string, 0, len(ecosystems))
	for id := range ecosystems {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
