//go:build !windows

package runner

import (
	"os"
	"syscall"
)

const elevationSupported = true

var defaultLaunchers = []string{"sudo", "doas", "pkexec", "run0"}

// processElevated returns true if the process runs with UID 0 (root).
func processElevated() bool {
	return os.Geteuid() == 0
}

// terminate asks the process to exit.
func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
