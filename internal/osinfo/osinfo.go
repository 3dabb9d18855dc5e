// Package osinfo detects the operating system and Linux distribution the
// updater runs on.
package osinfo

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// hostInfo is overridden in tests.
var hostInfo = host.Info

// Info describes the running system.
type Info struct {
	OS       string // runtime.GOOS: linux, darwin, windows, ...
	Platform string // distribution ID, e.g. "ubuntu"
	Family   string // distribution family, e.g. "debian"
	Version  string
	Kernel   string
	Hostname string
}

// Detect queries the host. When the platform lookup fails the returned Info
// still carries OS and the error is returned alongside it.
func Detect() (Info, error) {
	info := Info{OS: runtime.GOOS}

	stat, err := hostInfo()
	if err != nil {
		return info, fmt.Errorf("failed to detect platform: %w", err)
	}

	info.Platform = strings.ToLower(stat.Platform)
	info.Family = strings.ToLower(stat.PlatformFamily)
	info.Version = stat.PlatformVersion
	info.Kernel = stat.KernelVersion
	info.Hostname = stat.Hostname
	if stat.OS != "" {
		info.OS = stat.OS
	}
	return info, nil
}

// IsLinux reports whether the system is Linux.
func (i Info) IsLinux() bool {
	return i.OS == "linux"
}

// Candidates returns the ecosystem identifiers to try, most specific first:
// the platform ID, then the platform family. Duplicates and empty values
// are dropped.
func (i Info) Candidates() []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range []string{i.Platform, i.Family} {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Ecosystem returns the first candidate accepted by known.
func (i Info) Ecosystem(known func(id string) bool) (string, bool) {
	for _, c := range i.Candidates() {
		if known(c) {
			return c, true
		}
	}
	return "", false
}

func (i Info) String() string {
	if i.Platform == "" {
		return i.OS
	}
	if i.Version == "" {
		return fmt.Sprintf("%s (%s)", i.Platform, i.OS)
	}
	return fmt.Sprintf("%s %s (%s)", i.Platform, i.Version, i.OS)
}
