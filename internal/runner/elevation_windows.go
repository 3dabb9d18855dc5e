//go:build windows

package runner

import (
	"os"

	"golang.org/x/sys/windows"
)

// Wrapping a child in a UAC prompt is not supported; elevated programs are
// started directly and fail on their own if the token is not elevated.
const elevationSupported = false

var defaultLaunchers []string

func processElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// terminate kills the process; Windows has no SIGTERM.
func terminate(p *os.Process) error {
	return p.Kill()
}
