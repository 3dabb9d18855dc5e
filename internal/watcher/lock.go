package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrLocked is returned by AcquireLock when another live process holds the lock.
var ErrLocked = errors.New("another update is already running")

// LockedError carries the PID of the process holding the lock.
type LockedError struct {
	PID     int
	PIDFile string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("another update is already running (PID %d, lock file: %s)", e.PID, e.PIDFile)
}

func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}

// Lock is a held PID file.
type Lock struct {
	path string
}

// AcquireLock writes the current PID to pidFile. A PID file left behind by
// a dead process is replaced.
func AcquireLock(pidFile string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(pidFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(pidFile)
				return nil, fmt.Errorf("failed to write PID file: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: pidFile}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create PID file: %w", err)
		}

		running, pid, err := IsRunning(pidFile)
		if err != nil {
			return nil, err
		}
		if running {
			return nil, &LockedError{PID: pid, PIDFile: pidFile}
		}
		// IsRunning removed the stale file; try again.
	}

	return nil, fmt.Errorf("failed to acquire lock %s", pidFile)
}

// Path returns the PID file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the PID file if it still belongs to this process.
func (l *Lock) Release() error {
	pid, err := readPID(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// IsRunning checks whether the process recorded in pidFile is alive.
// A stale or unparsable PID file is removed.
func IsRunning(pidFile string) (bool, int, error) {
	pid, err := readPID(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		if errors.Is(err, strconv.ErrSyntax) || errors.Is(err, strconv.ErrRange) {
			os.Remove(pidFile)
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	if !alive(pid) {
		os.Remove(pidFile)
		return false, pid, nil
	}
	return true, pid, nil
}

func readPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", pidFile, err)
	}
	return pid, nil
}

// alive sends signal 0 to pid.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
