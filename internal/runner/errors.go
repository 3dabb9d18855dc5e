package runner

import (
	"errors"
	"fmt"
)

// ErrSpawn is matched by every SpawnError.
var ErrSpawn = errors.New("spawn failure")

// ErrNoLauncher indicates that elevation was required but no launcher
// could be found.
var ErrNoLauncher = errors.New("no privilege elevation launcher found")

// SpawnError reports that a program could not be started at all.
type SpawnError struct {
	Program string
	Path    string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s (%s): %v", e.Program, e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

func (e *SpawnError) Is(target error) bool {
	return target == ErrSpawn
}
