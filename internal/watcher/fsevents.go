package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the watcher waits after the last event
// before reporting a change.
const DefaultDebounce = 300 * time.Millisecond

// ConfigWatcher reports changes to a single configuration file.
//
// The parent directory is watched rather than the file itself, since most
// editors save by writing a new file and renaming it over the old one.
type ConfigWatcher struct {
	path     string
	debounce time.Duration
	log      zerolog.Logger
}

// NewConfigWatcher creates a watcher for path.
func NewConfigWatcher(path string, logger zerolog.Logger) *ConfigWatcher {
	return &ConfigWatcher{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		log:      logger.With().Str("component", "watcher").Logger(),
	}
}

// SetDebounce overrides the debounce interval (useful for testing).
func (w *ConfigWatcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run calls onChange once per burst of writes to the file until ctx is
// cancelled. onChange runs on the watcher goroutine; a slow callback delays
// the next notification but never drops it.
func (w *ConfigWatcher) Run(ctx context.Context, onChange func()) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.log.Debug().Str("path", w.path).Msg("watching config file")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("config event")
			timer.Reset(w.debounce)

		case <-timer.C:
			onChange()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *ConfigWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}
