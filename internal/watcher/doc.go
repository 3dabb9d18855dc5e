// Package watcher holds the long-running helpers of swupdate.
//
// It provides two pieces:
//   - ConfigWatcher, which reports debounced changes to the configuration
//     file so that `swupdate plan --watch` can re-plan after every edit
//   - Lock, a PID file that keeps two update runs from driving the system
//     package managers at the same time
//
// Example usage:
//
//	lock, err := watcher.AcquireLock("~/.swupdate/update.pid")
//	if err != nil {
//		return err
//	}
//	defer lock.Release()
//
//	w := watcher.NewConfigWatcher(cfgPath, logger)
//	err = w.Run(ctx, func() {
//		// reload config and re-plan
//	})
package watcher
