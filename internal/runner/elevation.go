package runner

import (
	"fmt"
	"strings"

	"github.com/blackwell-systems/swupdate/internal/probe"
)

// Elevation modes accepted in configuration besides an explicit launcher name.
const (
	ElevationAuto = "auto"
	ElevationNone = "none"
)

// ValidElevation reports whether mode is a recognised elevation setting.
func ValidElevation(mode string) bool {
	switch strings.ToLower(mode) {
	case "", ElevationAuto, ElevationNone, "sudo", "doas", "pkexec", "run0":
		return true
	}
	return false
}

// Launchers returns the launchers tried, in order, by the auto mode on this
// platform. It is empty where wrapping is not supported.
func Launchers() []string {
	out := make([]string, len(defaultLaunchers))
	copy(out, defaultLaunchers)
	return out
}

// IsElevated reports whether the current process already has elevated
// privileges.
func IsElevated() bool {
	return processElevated()
}

// ResolveLauncher returns the path of the launcher the runner would use for
// an elevated invocation, or "" when no wrapping is needed.
func (r *Runner) ResolveLauncher() (string, error) {
	mode := strings.ToLower(r.elevation)
	if mode == "" {
		mode = ElevationAuto
	}

	if mode == ElevationNone || r.elevated() || !elevationSupported {
		return "", nil
	}

	candidates := defaultLaunchers
	if mode != ElevationAuto {
		candidates = []string{mode}
	}

	for _, name := range candidates {
		if path, err := r.lookPath(name); err == nil && path != "" {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w (tried %s)", ErrNoLauncher, strings.Join(candidates, ", "))
}

// command builds the argv for an entry, wrapping it in the elevation
// launcher when the descriptor requires it.
func (r *Runner) command(entry probe.Entry) ([]string, bool, error) {
	d := entry.Descriptor
	direct := append([]string{entry.Path}, d.UpdateArgs...)

	if !d.RequiresElevation {
		return direct, false, nil
	}

	launcher, err := r.ResolveLauncher()
	if err != nil {
		return nil, false, err
	}
	if launcher == "" {
		if !elevationSupported && !r.elevated() {
			r.log.Warn().
				Str("program", d.DisplayName).
				Msg("elevation required but not supported on this platform, running directly")
		}
		return direct, false, nil
	}

	return append([]string{launcher}, direct...), true, nil
}
